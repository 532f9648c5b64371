package migrations

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

func init() {
	AddMigration(3, "canonical_vendor_fields", upCanonicalVendorFields, downCanonicalVendorFields)
}

// legacyVendorFields maps the non secret field names written by older clients
// to their canonical names. Credentials are not renamed: they are sealed by
// the vendor encrypt command.
var legacyVendorFields = [][2]string{
	{"payment_processor", "processor"},
	{"company_name", "companyName"},
	{"paddle_vendor_id", "paddleVendorId"},
}

func upCanonicalVendorFields(ctx context.Context, database *mongo.Database) error {
	vendors := database.Collection("vendors")
	for _, field := range legacyVendorFields {
		if err := renameField(ctx, vendors, field[0], field[1]); err != nil {
			return err
		}
	}
	return nil
}

func downCanonicalVendorFields(ctx context.Context, database *mongo.Database) error {
	vendors := database.Collection("vendors")
	for _, field := range legacyVendorFields {
		if err := renameField(ctx, vendors, field[1], field[0]); err != nil {
			return err
		}
	}
	return nil
}
