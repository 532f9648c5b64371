// Package main provides the vendor administration tool. It onboards vendors,
// updates their processor settings, reports how their credentials are stored,
// seals the credentials still kept in legacy fields and lists the recorded
// cancellations of a vendor.
//
// Usage:
//
//	cli vendor add --company "Acme" --processor stripe --credential sk_live_...
//	cli vendor update --key vk_... --credential sk_live_...
//	cli vendor check
//	cli vendor encrypt [--legacy-secret ...] [--dry-run]
//	cli cancellations --key vk_... [--limit 20]
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/cancelready/backend/db"
	"github.com/cancelready/backend/secrets"
	"github.com/cancelready/backend/validator"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.vocdoni.io/dvote/log"
)

func main() {
	// Define command-line flags
	flag.String("mongo-url", "", "MongoDB connection URL")
	flag.String("mongo-db", "cancelready", "MongoDB database name")
	flag.StringP("secret", "s", "", "secret used to seal the vendor credentials")
	flag.String("legacy-secret", "", "secret of the legacy credential encryption (vendor encrypt)")
	flag.StringP("key", "k", "", "vendor key")
	flag.String("company", "", "vendor company name")
	flag.String("email", "", "vendor contact email")
	flag.String("processor", "", "payment processor: stripe, paddle or none")
	flag.String("credential", "", "payment processor API key")
	flag.String("paddle-vendor-id", "", "Paddle vendor id")
	flag.Bool("dry-run", false, "report what vendor encrypt would do without writing")
	flag.Int64("limit", 20, "maximum number of cancellations listed")
	flag.String("env-file", ".env", "optional file with environment variables")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s vendor add|update|check|encrypt, or %s cancellations\n",
			os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}

	// Parse flags
	flag.Parse()
	if envFile, _ := flag.CommandLine.GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}

	// Initialize Viper for environment variable support
	viper.SetEnvPrefix("CANCELREADY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		log.Fatalf("could not bind flags: %v", err)
	}
	viper.AutomaticEnv()
	// Initialize logger
	log.Init("info", "stdout", nil)

	command := strings.Join(flag.Args(), " ")
	if command == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Validate required parameters
	mongoURL := viper.GetString("mongo-url")
	if mongoURL == "" {
		log.Fatal("mongo-url is required")
	}
	secret := viper.GetString("secret")
	if secret == "" {
		log.Fatal("secret is required")
	}
	box, err := secrets.NewBox(secret)
	if err != nil {
		log.Fatalf("could not create the credentials box: %v", err)
	}

	// Initialize MongoDB database
	database, err := db.New(mongoURL, viper.GetString("mongo-db"))
	if err != nil {
		log.Fatalf("could not connect to MongoDB: %v", err)
	}
	defer database.Close()

	a := &admin{
		store:     database,
		box:       box,
		validator: validator.New(),
		out:       os.Stdout,
	}
	input := &vendorInput{
		VendorKey:      viper.GetString("key"),
		CompanyName:    viper.GetString("company"),
		Email:          viper.GetString("email"),
		Processor:      strings.ToLower(viper.GetString("processor")),
		Credential:     viper.GetString("credential"),
		PaddleVendorID: viper.GetString("paddle-vendor-id"),
	}

	switch command {
	case "vendor add":
		key, err := a.add(input)
		if err != nil {
			log.Fatalf("could not add vendor: %v", err)
		}
		fmt.Println(key)
	case "vendor update":
		if err := a.update(input); err != nil {
			log.Fatalf("could not update vendor: %v", err)
		}
		fmt.Printf("vendor %s updated\n", input.VendorKey)
	case "vendor check":
		if _, err := a.check(); err != nil {
			log.Fatalf("could not check vendors: %v", err)
		}
	case "vendor encrypt":
		sealed, err := a.encrypt(viper.GetString("legacy-secret"), viper.GetBool("dry-run"))
		fmt.Printf("%d vendor credentials sealed\n", sealed)
		if err != nil {
			log.Fatalf("some credentials could not be sealed: %v", err)
		}
	case "cancellations":
		if err := a.cancellations(input.VendorKey, viper.GetInt64("limit")); err != nil {
			log.Fatalf("could not list cancellations: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}
