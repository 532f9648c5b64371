// Package errors provides the coded errors returned by the HTTP API.
//
//nolint:lll
package errors

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the caller's fault, codes in the
// 50001-59999 range are the server's fault. There's no correlation between
// Code and HTTP Status.
//
// NEVER change any of the current error codes, only append new errors after
// the current last 4XXX or 5XXX. Gaps are codes used in the past and must not
// be reused.
var (
	// Validation errors (400)
	ErrMalformedBody        = Error{Code: 40001, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid JSON request body")}
	ErrMissingFields        = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("vendorKey & userId required")}
	ErrUnsupportedProcessor = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("Unsupported payment processor"), LogLevel: "info"}
	ErrInvalidRequest       = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid cancellation request")}
	ErrMalformedURLParam    = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid URL parameter")}

	// Vendor errors (403/404)
	ErrInvalidVendorKey       = Error{Code: 40003, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("Invalid vendorKey"), LogLevel: "info"}
	ErrProcessorMisconfigured = Error{Code: 40006, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("processor configuration error"), LogLevel: "warn"}
	ErrVendorNotFound         = Error{Code: 40004, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("Vendor not found")}

	// Method errors (405)
	ErrMethodNotAllowed = Error{Code: 40007, HTTPstatus: http.StatusMethodNotAllowed, Err: fmt.Errorf("POST only")}
	ErrGetOnly          = Error{Code: 40009, HTTPstatus: http.StatusMethodNotAllowed, Err: fmt.Errorf("GET only")}

	// Server errors (500)
	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("failed to marshal server response")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrStorageFailure             = Error{Code: 50003, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("cancellation could not be recorded")}
	ErrCredentialUnavailable      = Error{Code: 50004, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("processor credential could not be opened")}
	ErrUpstreamProcessor          = Error{Code: 50005, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("payment processor error")}
)
