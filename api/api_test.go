package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cancelready/backend/cancellation"
	"github.com/cancelready/backend/db"
	"github.com/cancelready/backend/notifications/smtp"
	"github.com/cancelready/backend/paddle"
	"github.com/cancelready/backend/processor"
	"github.com/cancelready/backend/secrets"
	"github.com/cancelready/backend/stripe"
	"github.com/cancelready/backend/test"
)

const (
	testSecret = "super-secret"
	testHost   = "127.0.0.1"
	testPort   = 7788

	adminEmail = "cancellations@test.com"

	stripeVendorKey  = "vk_stripe"
	paddleVendorKey  = "vk_paddle"
	noneVendorKey    = "vk_none"
	legacyVendorKey  = "vk_legacy"
	noPaddleIDVendor = "vk_paddle_noid"
	foreignVendorKey = "vk_foreign"
)

// testDB is the MongoDB storage for the tests. Make it global so it can be
// accessed by the tests directly.
var testDB *db.MongoStorage

// testMailService is the test mail service for the tests. Make it global so it
// can be accessed by the tests directly.
var testMailService *smtp.Email

// testService is the cancellation service behind the API, used to wait for
// the confirmation emails.
var testService *cancellation.Service

// testURL helper function returns the full URL for the given path using the
// test host and port.
func testURL(path string) string {
	return fmt.Sprintf("http://%s:%d%s", testHost, testPort, path)
}

// mustMarshal helper function marshalls the input interface into a byte slice.
// It panics if the marshalling fails.
func mustMarshal(i any) []byte {
	b, err := json.Marshal(i)
	if err != nil {
		panic(err)
	}
	return b
}

// pingAPI helper function pings the API endpoint and retries the request
// if it fails until the retries limit is reached.
func pingAPI(endpoint string, retries int) error {
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	var pingErr error
	for i := 0; i < retries; i++ {
		var resp *http.Response
		if resp, pingErr = http.DefaultClient.Do(req); pingErr == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			pingErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		time.Sleep(time.Second)
	}
	return pingErr
}

// request helper sends a request to the test API and returns the status code
// and the decoded JSON body.
func request(method, path string, body []byte, headers map[string]string) (int, map[string]any) {
	req, err := http.NewRequest(method, testURL(path), bytes.NewReader(body))
	if err != nil {
		panic(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		panic(err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(err)
	}
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

// fakeStripeAPI answers subscription cancellations. sub_missing does not
// exist.
func fakeStripeAPI() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
		if r.Method != http.MethodDelete || id == "sub_missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprintf(w, `{"error":{"type":"invalid_request_error","code":"resource_missing",`+
				`"message":"No such subscription: '%s'"}}`, id)
			return
		}
		_, _ = fmt.Fprintf(w, `{"id":%q,"object":"subscription","status":"canceled"}`, id)
	})
}

// fakePaddleAPI answers subscription cancellations. sub_missing does not
// exist and sub_active stays active after the request.
func fakePaddleAPI() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/subscriptions/"), "/cancel")
		switch id {
		case "sub_missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"request_error","code":"not_found",` +
				`"detail":"Subscription not found"}}`))
		case "sub_active":
			_, _ = fmt.Fprintf(w, `{"data":{"id":%q,"status":"active"}}`, id)
		default:
			_, _ = fmt.Fprintf(w, `{"data":{"id":%q,"status":"canceled"}}`, id)
		}
	})
}

// seedVendors stores the vendors used by the tests.
func seedVendors(box *secrets.Box) error {
	seal := func(vendorKey, credential string) *secrets.Sealed {
		sealed, err := box.Seal(vendorKey, credential)
		if err != nil {
			panic(err)
		}
		return sealed
	}
	foreignBox, err := secrets.NewBox("another-secret")
	if err != nil {
		return err
	}
	foreign, err := foreignBox.Seal(foreignVendorKey, "sk_test_foreign")
	if err != nil {
		return err
	}
	for _, vendor := range []*db.Vendor{
		{
			VendorKey:   stripeVendorKey,
			CompanyName: "Stripe Co",
			Processor:   processor.Stripe,
			Credential:  seal(stripeVendorKey, "sk_test_stripe"),
		},
		{
			VendorKey:      paddleVendorKey,
			CompanyName:    "Paddle Co",
			Processor:      processor.Paddle,
			Credential:     seal(paddleVendorKey, "pdl_test_paddle"),
			PaddleVendorID: "12345",
		},
		{
			VendorKey:  noPaddleIDVendor,
			Processor:  processor.Paddle,
			Credential: seal(noPaddleIDVendor, "pdl_test_paddle"),
		},
		{
			VendorKey:   noneVendorKey,
			CompanyName: "No Processor Co",
			Processor:   processor.None,
		},
		{
			VendorKey: legacyVendorKey,
			Legacy: db.LegacyVendorFields{
				PaymentProcessor: "stripe",
				CompanyName:      "Legacy Co",
				StripeAPIKey:     &db.LegacyCredential{Plain: "sk_live_plaintext"},
			},
		},
		{
			VendorKey:  foreignVendorKey,
			Processor:  processor.Stripe,
			Credential: foreign,
		},
	} {
		if err := testDB.SetVendor(vendor); err != nil {
			return err
		}
	}
	return nil
}

// TestMain function starts the MongoDB and MailHog containers, the fake
// payment processors and the API server before running the tests.
func TestMain(m *testing.M) {
	ctx := context.Background()
	// start a MongoDB container for testing
	dbContainer, err := test.StartMongoContainer(ctx)
	if err != nil {
		panic(err)
	}
	// get the MongoDB connection string
	mongoURI, err := dbContainer.Endpoint(ctx, "mongodb")
	if err != nil {
		panic(err)
	}
	// set reset db env var to true
	_ = os.Setenv(db.ResetEnv, "true")
	// create a new MongoDB connection with the test database
	if testDB, err = db.New(mongoURI, test.RandomDatabaseName()); err != nil {
		panic(err)
	}
	// start test mail server
	testMailServer, err := test.StartMailService(ctx)
	if err != nil {
		panic(err)
	}
	// get the host, the SMTP port and the API port
	mailHost, err := testMailServer.Host(ctx)
	if err != nil {
		panic(err)
	}
	smtpPort, err := testMailServer.MappedPort(ctx, test.MailSMTPPort)
	if err != nil {
		panic(err)
	}
	apiPort, err := testMailServer.MappedPort(ctx, test.MailAPIPort)
	if err != nil {
		panic(err)
	}
	// create test mail service
	testMailService = new(smtp.Email)
	if err := testMailService.New(&smtp.Config{
		FromName:    "Cancellations",
		FromAddress: adminEmail,
		SMTPServer:  mailHost,
		SMTPPort:    smtpPort.Int(),
		TestAPIPort: apiPort.Int(),
	}); err != nil {
		panic(err)
	}
	// fake payment processors
	stripeServer := httptest.NewServer(fakeStripeAPI())
	paddleServer := httptest.NewServer(fakePaddleAPI())

	box, err := secrets.NewBox(testSecret)
	if err != nil {
		panic(err)
	}
	if err := seedVendors(box); err != nil {
		panic(err)
	}
	testService, err = cancellation.New(&cancellation.Config{
		Store: testDB,
		Dispatcher: processor.NewDispatcher(
			stripe.New(&stripe.Config{APIURL: stripeServer.URL, Timeout: 5 * time.Second}, box),
			paddle.New(&paddle.Config{APIURL: paddleServer.URL, Timeout: 5 * time.Second}, box),
		),
		Mail: testMailService,
	})
	if err != nil {
		panic(err)
	}
	// start the API
	New(&Config{
		Host:         testHost,
		Port:         testPort,
		Cancellation: testService,
	}).Start()
	// wait for the API to start
	if err := pingAPI(testURL(pingEndpoint), 5); err != nil {
		panic(err)
	}
	// run the tests
	code := m.Run()

	closeCtx, closeCancel := context.WithTimeout(ctx, 10*time.Second)
	_ = testService.Close(closeCtx)
	closeCancel()
	stripeServer.Close()
	paddleServer.Close()
	testDB.Close()
	_ = testMailServer.Terminate(ctx)
	_ = dbContainer.Terminate(ctx)
	os.Exit(code)
}
