package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	root "github.com/cancelready/backend"
	"github.com/cancelready/backend/api"
	"github.com/cancelready/backend/cancellation"
	"github.com/cancelready/backend/db"
	"github.com/cancelready/backend/notifications"
	"github.com/cancelready/backend/notifications/mailqueue"
	"github.com/cancelready/backend/notifications/mailtemplates"
	"github.com/cancelready/backend/notifications/smtp"
	"github.com/cancelready/backend/paddle"
	"github.com/cancelready/backend/processor"
	"github.com/cancelready/backend/secrets"
	"github.com/cancelready/backend/stripe"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.vocdoni.io/dvote/log"
)

func main() {
	// define flags
	flag.StringP("host", "h", "0.0.0.0", "listen address")
	flag.IntP("port", "p", 8080, "listen port")
	flag.StringP("secret", "s", "", "secret used to seal the vendor credentials")
	flag.String("mongo-url", "", "The URL of the MongoDB server")
	flag.String("mongo-db", "cancelready", "The name of the MongoDB database")
	flag.Duration("processor-timeout", stripe.DefaultTimeout, "timeout of every payment processor call")
	flag.String("paddle-api-url", paddle.LiveAPIURL, "Paddle Billing API URL (use the sandbox URL for testing)")
	flag.String("stripe-api-url", "", "Stripe API URL override, empty for the default endpoint")
	flag.String("smtp-server", "", "SMTP server to send the confirmation emails, empty to disable them")
	flag.Int("smtp-port", 587, "SMTP server port")
	flag.String("smtp-username", "", "SMTP username")
	flag.String("smtp-password", "", "SMTP password")
	flag.String("email-from-address", "", "email address of the confirmation emails sender")
	flag.String("email-from-name", "CancelReady", "name of the confirmation emails sender")
	flag.Duration("mail-throttle", mailqueue.DefaultThrottle, "minimum time between two confirmation emails")
	flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.String("env-file", ".env", "optional file with environment variables")
	// parse flags
	flag.Parse()
	// load the env file before viper reads the environment
	if envFile, _ := flag.CommandLine.GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}
	// initialize Viper
	viper.SetEnvPrefix("CANCELREADY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		panic(err)
	}
	viper.AutomaticEnv()
	log.Init(viper.GetString("log-level"), "stdout", nil)
	// read the configuration
	host := viper.GetString("host")
	port := viper.GetInt("port")
	secret := viper.GetString("secret")
	if secret == "" {
		log.Fatal("secret is required")
	}
	mongoURL := viper.GetString("mongo-url")
	mongoDB := viper.GetString("mongo-db")
	processorTimeout := viper.GetDuration("processor-timeout")
	// initialize the MongoDB database
	database, err := db.New(mongoURL, mongoDB)
	if err != nil {
		log.Fatalf("could not create the MongoDB database: %v", err)
	}
	defer database.Close()
	// the credentials box and the processor adapters
	box, err := secrets.NewBox(secret)
	if err != nil {
		log.Fatalf("could not create the credentials box: %v", err)
	}
	dispatcher := processor.NewDispatcher(
		stripe.New(&stripe.Config{
			APIURL:  viper.GetString("stripe-api-url"),
			Timeout: processorTimeout,
		}, box),
		paddle.New(&paddle.Config{
			APIURL:  viper.GetString("paddle-api-url"),
			Timeout: processorTimeout,
		}, box),
	)
	// the confirmation emails are optional
	var mailService notifications.NotificationService
	if smtpServer := viper.GetString("smtp-server"); smtpServer != "" {
		if err := mailtemplates.Load(root.Assets, root.MailTemplatesDir); err != nil {
			log.Fatalf("could not load the mail templates: %v", err)
		}
		mailService = new(smtp.Email)
		if err := mailService.New(&smtp.Config{
			FromName:     viper.GetString("email-from-name"),
			FromAddress:  viper.GetString("email-from-address"),
			SMTPUsername: viper.GetString("smtp-username"),
			SMTPPassword: viper.GetString("smtp-password"),
			SMTPServer:   smtpServer,
			SMTPPort:     viper.GetInt("smtp-port"),
		}); err != nil {
			log.Fatalf("could not create the mail service: %v", err)
		}
		log.Infow("mail service available", "templates", mailtemplates.Available())
	}
	service, err := cancellation.New(&cancellation.Config{
		Store:        database,
		Dispatcher:   dispatcher,
		Mail:         mailService,
		MailThrottle: viper.GetDuration("mail-throttle"),
	})
	if err != nil {
		log.Fatalf("could not create the cancellation service: %v", err)
	}
	// create the local API server
	server := api.New(&api.Config{
		Host:         host,
		Port:         port,
		Cancellation: service,
	})
	server.Start()
	log.Infow("server started", "host", host, "port", port,
		"processorTimeout", processorTimeout.String(), "paddleAPI", viper.GetString("paddle-api-url"))
	// wait for a termination signal, as the server is running in a goroutine
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Warnw("could not stop the API server gracefully", "error", err)
	}
	if err := service.Close(ctx); err != nil {
		log.Warnw("confirmation emails dropped on shutdown", "error", err)
	}
}
