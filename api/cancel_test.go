package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cancelready/backend/cancellation"
	"github.com/cancelready/backend/db"
	"github.com/cancelready/backend/internal"
	"github.com/cancelready/backend/processor"
	qt "github.com/frankban/quicktest"
)

// storedRecord fetches the cancellation record referenced by a response.
func storedRecord(c *qt.C, body map[string]any) *db.CancellationRecord {
	rawID, ok := body["cancellationId"].(string)
	c.Assert(ok, qt.IsTrue, qt.Commentf("response without cancellationId: %v", body))
	id, err := internal.ObjectIDFromHex(rawID)
	c.Assert(err, qt.IsNil)
	record, err := testDB.Cancellation(id)
	c.Assert(err, qt.IsNil)
	return record
}

func TestCancelStripe(t *testing.T) {
	c := qt.New(t)

	status, body := request(http.MethodPost, cancelEndpoint, mustMarshal(&CancelRequest{
		VendorKey: stripeVendorKey,
		UserID:    "sub_123",
		Reason:    "too expensive",
	}), map[string]string{"Origin": "https://shop.example.com", "User-Agent": "api-test"})
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%v", body))
	c.Assert(body["status"], qt.Equals, "success")
	c.Assert(body["processor"], qt.Equals, "stripe")
	c.Assert(body["message"], qt.Equals, "Stripe subscription cancelled successfully.")
	c.Assert(body["processorReference"], qt.Equals, "sub_123")
	c.Assert(body["stripeSubscriptionId"], qt.Equals, "sub_123")

	record := storedRecord(c, body)
	c.Assert(record.Status, qt.Equals, processor.StatusCompleted)
	c.Assert(record.Processor, qt.Equals, processor.Stripe)
	c.Assert(record.Email, qt.Equals, cancellation.DefaultEmail)
	c.Assert(record.Reason, qt.Equals, "too expensive")
	c.Assert(record.Metadata["origin"], qt.Equals, "https://shop.example.com")
	c.Assert(record.Metadata["userAgent"], qt.Equals, "api-test")

	t.Run("UpstreamError", func(t *testing.T) {
		c := qt.New(t)
		status, body := request(http.MethodPost, cancelEndpoint, mustMarshal(&CancelRequest{
			VendorKey: stripeVendorKey,
			UserID:    "sub_missing",
		}), nil)
		c.Assert(status, qt.Equals, http.StatusInternalServerError)
		c.Assert(body["code"], qt.Equals, float64(50005))
		c.Assert(body["error"], qt.Equals, "payment processor error: No such subscription: 'sub_missing'")
		record := storedRecord(c, body)
		c.Assert(record.Status, qt.Equals, processor.StatusFailed)
		c.Assert(record.Error, qt.Equals, "No such subscription: 'sub_missing'")
	})

	t.Run("CredentialSealedWithAnotherSecret", func(t *testing.T) {
		c := qt.New(t)
		status, body := request(http.MethodPost, cancelEndpoint, mustMarshal(&CancelRequest{
			VendorKey: foreignVendorKey,
			UserID:    "sub_123",
		}), nil)
		c.Assert(status, qt.Equals, http.StatusInternalServerError)
		c.Assert(body["code"], qt.Equals, float64(50004))
		c.Assert(body["error"], qt.Equals, "processor credential could not be opened")
		c.Assert(storedRecord(c, body).Status, qt.Equals, processor.StatusFailed)
	})
}

func TestCancelPaddle(t *testing.T) {
	c := qt.New(t)

	status, body := request(http.MethodPost, cancelEndpoint, mustMarshal(&CancelRequest{
		VendorKey: paddleVendorKey,
		UserID:    "sub_01h",
	}), nil)
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("%v", body))
	c.Assert(body["message"], qt.Equals, "Paddle subscription cancelled")
	c.Assert(body["processor"], qt.Equals, "paddle")
	_, hasStripeID := body["stripeSubscriptionId"]
	c.Assert(hasStripeID, qt.IsFalse)
	record := storedRecord(c, body)
	c.Assert(record.Status, qt.Equals, processor.StatusCompleted)
	c.Assert(record.Metadata["paddleStatus"], qt.Equals, "canceled")
	c.Assert(record.Metadata["paddleVendorId"], qt.Equals, "12345")

	t.Run("SoftSuccess", func(t *testing.T) {
		c := qt.New(t)
		status, body := request(http.MethodPost, cancelEndpoint, mustMarshal(&CancelRequest{
			VendorKey: paddleVendorKey,
			UserID:    "sub_active",
		}), nil)
		c.Assert(status, qt.Equals, http.StatusOK)
		record := storedRecord(c, body)
		c.Assert(record.Status, qt.Equals, processor.StatusCompleted)
		c.Assert(record.Metadata["softSuccess"], qt.Equals, true)
		c.Assert(record.Metadata["paddleStatus"], qt.Equals, "active")
	})

	t.Run("UpstreamError", func(t *testing.T) {
		c := qt.New(t)
		status, body := request(http.MethodPost, cancelEndpoint, mustMarshal(&CancelRequest{
			VendorKey: paddleVendorKey,
			UserID:    "sub_missing",
		}), nil)
		c.Assert(status, qt.Equals, http.StatusInternalServerError)
		c.Assert(body["error"], qt.Equals, "payment processor error: Subscription not found")
		c.Assert(storedRecord(c, body).Error, qt.Equals, "Subscription not found")
	})

	t.Run("MissingPaddleVendorID", func(t *testing.T) {
		c := qt.New(t)
		status, body := request(http.MethodPost, cancelEndpoint, mustMarshal(&CancelRequest{
			VendorKey: noPaddleIDVendor,
			UserID:    "sub_01h",
		}), nil)
		c.Assert(status, qt.Equals, http.StatusForbidden)
		c.Assert(body["code"], qt.Equals, float64(40006))
		record := storedRecord(c, body)
		c.Assert(record.Status, qt.Equals, processor.StatusFailed)
		c.Assert(record.Processor, qt.Equals, processor.Paddle)
	})
}

func TestCancelConfirmationEmail(t *testing.T) {
	c := qt.New(t)
	const to = "customer@example.com"

	status, body := request(http.MethodPost, cancelEndpoint, mustMarshal(&CancelRequest{
		VendorKey: stripeVendorKey,
		UserID:    "sub_mail",
		Email:     to,
	}), nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(storedRecord(c, body).Email, qt.Equals, to)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.Assert(testService.Wait(ctx), qt.IsNil)
	var mailBody string
	var err error
	for ctx.Err() == nil {
		if mailBody, err = testMailService.FindEmail(ctx, to); err == nil {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}
	c.Assert(err, qt.IsNil)
	c.Assert(mailBody, qt.Contains, body["cancellationId"].(string))
	c.Assert(mailBody, qt.Contains, "Stripe Co")
}

func TestCancelErrors(t *testing.T) {
	for _, tc := range []struct {
		name       string
		body       []byte
		wantStatus int
		wantCode   float64
		wantError  string
		recorded   bool
	}{
		{
			name:       "MalformedBody",
			body:       []byte(`{"vendorKey":`),
			wantStatus: http.StatusBadRequest,
			wantCode:   40001,
			wantError:  "invalid JSON request body",
		},
		{
			name:       "MissingUserID",
			body:       mustMarshal(&CancelRequest{VendorKey: stripeVendorKey}),
			wantStatus: http.StatusBadRequest,
			wantCode:   40002,
			wantError:  "vendorKey & userId required",
		},
		{
			name:       "MissingVendorKey",
			body:       mustMarshal(&CancelRequest{UserID: "sub_123"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   40002,
			wantError:  "vendorKey & userId required",
		},
		{
			name:       "BlankUserID",
			body:       mustMarshal(&CancelRequest{VendorKey: stripeVendorKey, UserID: "   "}),
			wantStatus: http.StatusBadRequest,
			wantCode:   40002,
			wantError:  "vendorKey & userId required",
		},
		{
			name:       "UnknownVendorWithPunctuation",
			body:       mustMarshal(&CancelRequest{VendorKey: "vendor.key", UserID: "sub_123"}),
			wantStatus: http.StatusForbidden,
			wantCode:   40003,
			wantError:  "Invalid vendorKey",
		},
		{
			name:       "UnknownVendor",
			body:       mustMarshal(&CancelRequest{VendorKey: "vk_unknown", UserID: "sub_123"}),
			wantStatus: http.StatusForbidden,
			wantCode:   40003,
			wantError:  "Invalid vendorKey",
		},
		{
			name:       "UnsupportedProcessor",
			body:       mustMarshal(&CancelRequest{VendorKey: noneVendorKey, UserID: "sub_123"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   40005,
			wantError:  "Unsupported payment processor",
			recorded:   true,
		},
		{
			name:       "PlaintextLegacyCredential",
			body:       mustMarshal(&CancelRequest{VendorKey: legacyVendorKey, UserID: "sub_123"}),
			wantStatus: http.StatusForbidden,
			wantCode:   40006,
			wantError:  "processor configuration error: credential is not encrypted at rest",
			recorded:   true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := qt.New(t)
			status, body := request(http.MethodPost, cancelEndpoint, tc.body, nil)
			c.Assert(status, qt.Equals, tc.wantStatus)
			c.Assert(body["code"], qt.Equals, tc.wantCode)
			c.Assert(body["error"], qt.Equals, tc.wantError)
			_, hasID := body["cancellationId"]
			c.Assert(hasID, qt.Equals, tc.recorded)
			if tc.recorded {
				c.Assert(storedRecord(c, body).Status, qt.Equals, processor.StatusFailed)
			}
		})
	}

	t.Run("UnsupportedProcessorRecord", func(t *testing.T) {
		c := qt.New(t)
		_, body := request(http.MethodPost, cancelEndpoint,
			mustMarshal(&CancelRequest{VendorKey: noneVendorKey, UserID: "sub_456"}), nil)
		record := storedRecord(c, body)
		c.Assert(record.Processor, qt.Equals, processor.None)
		c.Assert(record.Error, qt.Equals, "Unsupported payment processor")
	})

	t.Run("LongFeedbackRecorded", func(t *testing.T) {
		c := qt.New(t)
		status, body := request(http.MethodPost, cancelEndpoint, mustMarshal(&CancelRequest{
			VendorKey: noneVendorKey,
			UserID:    "sub_789",
			Feedback:  strings.Repeat("f", 20000),
		}), nil)
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(body["code"], qt.Equals, float64(40005))
		record := storedRecord(c, body)
		c.Assert(record.UserID, qt.Equals, "sub_789")
		c.Assert(len(record.Feedback), qt.Equals, 5000)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		c := qt.New(t)
		status, body := request(http.MethodGet, cancelEndpoint, nil, nil)
		c.Assert(status, qt.Equals, http.StatusMethodNotAllowed)
		c.Assert(body["error"], qt.Equals, "POST only")
	})
}

func TestCancelPreflight(t *testing.T) {
	c := qt.New(t)

	req, err := http.NewRequest(http.MethodOptions, testURL(cancelEndpoint), nil)
	c.Assert(err, qt.IsNil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	// embeds may send headers of their own
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Embed-Version")
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	_ = resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusNoContent)
	c.Assert(resp.Header.Get("Access-Control-Allow-Origin"), qt.Equals, "*")
	allowed := strings.ToLower(resp.Header.Get("Access-Control-Allow-Headers"))
	c.Assert(allowed, qt.Contains, "content-type")
	c.Assert(allowed, qt.Contains, "x-embed-version")

	// plain OPTIONS request
	status, _ := request(http.MethodOptions, cancelEndpoint, nil, nil)
	c.Assert(status, qt.Equals, http.StatusNoContent)
}

func TestTwoCallsTwoRecords(t *testing.T) {
	c := qt.New(t)

	req := mustMarshal(&CancelRequest{VendorKey: paddleVendorKey, UserID: "sub_twice"})
	_, first := request(http.MethodPost, cancelEndpoint, req, nil)
	_, second := request(http.MethodPost, cancelEndpoint, req, nil)
	c.Assert(first["cancellationId"], qt.Not(qt.Equals), second["cancellationId"])

	records, err := testDB.CancellationsByVendor(paddleVendorKey, 0)
	c.Assert(err, qt.IsNil)
	count := 0
	for _, record := range records {
		if record.UserID == "sub_twice" {
			count++
		}
	}
	c.Assert(count, qt.Equals, 2)
}

func TestVendorInfo(t *testing.T) {
	c := qt.New(t)

	status, body := request(http.MethodGet, "/vendors/"+legacyVendorKey, nil, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(body, qt.DeepEquals, map[string]any{
		"vendorKey":   legacyVendorKey,
		"companyName": "Legacy Co",
		"processor":   "stripe",
	})

	status, body = request(http.MethodGet, "/vendors/vk_unknown", nil, nil)
	c.Assert(status, qt.Equals, http.StatusNotFound)
	c.Assert(body["error"], qt.Equals, "Vendor not found")

	status, body = request(http.MethodPost, "/vendors/"+stripeVendorKey, nil, nil)
	c.Assert(status, qt.Equals, http.StatusMethodNotAllowed)
	c.Assert(body["error"], qt.Equals, "GET only")
}
