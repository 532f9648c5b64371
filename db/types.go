package db

import (
	"time"

	"github.com/cancelready/backend/internal"
	"github.com/cancelready/backend/processor"
	"github.com/cancelready/backend/secrets"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Vendor is the document stored in the vendors collection. The _id is the
// vendor key.
type Vendor struct {
	VendorKey      string          `json:"vendorKey" bson:"_id"`
	CompanyName    string          `json:"companyName" bson:"companyName,omitempty"`
	Email          string          `json:"email,omitempty" bson:"email,omitempty"`
	Processor      processor.Type  `json:"processor" bson:"processor,omitempty"`
	Credential     *secrets.Sealed `json:"-" bson:"credential,omitempty"`
	PaddleVendorID string          `json:"paddleVendorId,omitempty" bson:"paddleVendorId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt" bson:"updatedAt"`

	Legacy LegacyVendorFields `json:"-" bson:",inline"`
}

// LegacyVendorFields groups the field names written by older clients of the
// vendors collection. Only the vendor resolver and the vendor encrypt command
// look at them.
type LegacyVendorFields struct {
	PaymentProcessor string            `bson:"payment_processor,omitempty"`
	CompanyName      string            `bson:"company_name,omitempty"`
	PaddleVendorID   string            `bson:"paddle_vendor_id,omitempty"`
	StripeKey        *LegacyCredential `bson:"stripeKey,omitempty"`
	StripeAPIKey     *LegacyCredential `bson:"stripe_api_key,omitempty"`
	PaddleAPIKey     *LegacyCredential `bson:"paddleApiKey,omitempty"`
	PaddleAPIKeyAlt  *LegacyCredential `bson:"paddle_api_key,omitempty"`
}

// LegacyCredentialFields lists the bson names of the legacy credential fields.
var LegacyCredentialFields = []string{"stripeKey", "stripe_api_key", "paddleApiKey", "paddle_api_key"}

// StripeCredential returns the first legacy Stripe credential found.
func (l *LegacyVendorFields) StripeCredential() *LegacyCredential {
	if !l.StripeKey.IsZero() {
		return l.StripeKey
	}
	if !l.StripeAPIKey.IsZero() {
		return l.StripeAPIKey
	}
	return nil
}

// PaddleCredential returns the first legacy Paddle credential found.
func (l *LegacyVendorFields) PaddleCredential() *LegacyCredential {
	if !l.PaddleAPIKey.IsZero() {
		return l.PaddleAPIKey
	}
	if !l.PaddleAPIKeyAlt.IsZero() {
		return l.PaddleAPIKeyAlt
	}
	return nil
}

// HasCredential reports whether any legacy credential field is set.
func (l *LegacyVendorFields) HasCredential() bool {
	return l.StripeCredential() != nil || l.PaddleCredential() != nil
}

// LegacyCredential is a credential stored by an older client, either as a
// plaintext string or as a legacy AES-GCM object. A value of any other shape
// is kept as Unreadable so the vendor still decodes.
type LegacyCredential struct {
	Plain      string
	Encrypted  *secrets.LegacyCiphertext
	Unreadable *bson.RawValue
}

// IsZero reports whether the credential holds nothing.
func (lc *LegacyCredential) IsZero() bool {
	return lc == nil || (lc.Plain == "" && lc.Encrypted.IsZero() && lc.Unreadable == nil)
}

// MarshalBSONValue writes the credential back in the shape it was read.
func (lc *LegacyCredential) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if lc.Unreadable != nil {
		return lc.Unreadable.Type, lc.Unreadable.Value, nil
	}
	if lc.Encrypted != nil {
		return bson.MarshalValue(lc.Encrypted)
	}
	return bson.MarshalValue(lc.Plain)
}

// UnmarshalBSONValue accepts a string or an embedded {iv, encryptedData, tag}
// document. Anything else, including a document that does not decode as a
// legacy ciphertext, is stored as Unreadable.
func (lc *LegacyCredential) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: append([]byte(nil), data...)}
	switch t {
	case bsontype.String:
		lc.Plain = raw.StringValue()
	case bsontype.EmbeddedDocument:
		enc := &secrets.LegacyCiphertext{}
		if err := raw.Unmarshal(enc); err != nil {
			lc.Unreadable = &raw
			return nil
		}
		lc.Encrypted = enc
	case bsontype.Null, bsontype.Undefined:
	default:
		lc.Unreadable = &raw
	}
	return nil
}

// CancellationRecord is one entry of the append-only cancels collection.
type CancellationRecord struct {
	ID                 internal.ObjectID `json:"cancellationId" bson:"_id"`
	VendorKey          string            `json:"vendorKey" bson:"vendorKey"`
	UserID             string            `json:"userId" bson:"userId"`
	Processor          processor.Type    `json:"processor" bson:"processor"`
	Status             processor.Status  `json:"status" bson:"status"`
	Error              string            `json:"error,omitempty" bson:"error,omitempty"`
	Time               time.Time         `json:"time" bson:"time"`
	Email              string            `json:"email" bson:"email"`
	Reason             string            `json:"reason" bson:"reason"`
	Feedback           string            `json:"feedback" bson:"feedback"`
	ProcessorReference string            `json:"processorReference,omitempty" bson:"processorReference,omitempty"`
	Metadata           map[string]any    `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// VendorCollection is the JSON dump of the vendors collection.
type VendorCollection struct {
	Vendors []Vendor `json:"vendors"`
}

// MigrationRecord represents a migration record stored in MongoDB.
type MigrationRecord struct {
	Version   int       `bson:"version"`
	AppliedAt time.Time `bson:"applied_at"`
}
