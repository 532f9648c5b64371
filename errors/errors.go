package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"go.vocdoni.io/dvote/log"
)

// Error is used by handler functions to wrap errors, assigning a unique error code
// and also specifying which HTTP Status should be used.
type Error struct {
	Err        error  // Original error
	Code       int    // Error code
	HTTPstatus int    // HTTP status code to return
	LogLevel   string // Log level for this error (defaults to "debug")
	Data       any    // Optional data to include in the error response
	// CancellationID references the cancellation record written before the
	// error was detected, if any.
	CancellationID string
}

// MarshalJSON returns a JSON containing Err.Error(), Code and the
// cancellation id when set. Field HTTPstatus is ignored.
//
// Example output: {"error":"Invalid vendorKey","code":40003}
func (e Error) MarshalJSON() ([]byte, error) {
	// json.Marshal doesn't call Err.Error(), so the message is copied into an
	// anonymous struct
	return json.Marshal(
		struct {
			Error          string `json:"error"`
			Code           int    `json:"code"`
			CancellationID string `json:"cancellationId,omitempty"`
			Data           any    `json:"data,omitempty"`
		}{
			Error:          e.Err.Error(),
			Code:           e.Code,
			CancellationID: e.CancellationID,
			Data:           e.Data,
		})
}

// Error returns the Message contained inside the APIerror
func (e Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the original error.
func (e Error) Unwrap() error {
	return e.Err
}

// Write serializes the error as JSON with the HTTP status of the error. It
// also logs the error with appropriate level.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn(err)
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}

	pc, file, line, _ := runtime.Caller(1)
	caller := runtime.FuncForPC(pc).Name()

	if e.HTTPstatus >= 500 {
		log.Errorw(e.Err, fmt.Sprintf("API error response [%d]: %s (code: %d, cancellation: %s, caller: %s, file: %s:%d)",
			e.HTTPstatus, e.Error(), e.Code, e.CancellationID, caller, file, line))
	} else if log.Level() == log.LogLevelDebug {
		errMsg := fmt.Sprintf("API error response [%d]: %s (code: %d, caller: %s)",
			e.HTTPstatus, e.Error(), e.Code, caller)
		switch e.LogLevel {
		case "info":
			log.Infow(errMsg)
		case "warn":
			log.Warnw(errMsg)
		default:
			log.Debugw(errMsg)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.HTTPstatus)
	if _, err := w.Write(msg); err != nil {
		log.Warnw("failed to write error response", "error", err)
	}
}

// Withf returns a copy of Error with the Sprintf formatted string appended at the end of e.Err
func (e Error) Withf(format string, args ...any) Error {
	e.Err = fmt.Errorf("%w: %v", e.Err, fmt.Sprintf(format, args...))
	return e
}

// With returns a copy of Error with the string appended at the end of e.Err
func (e Error) With(s string) Error {
	e.Err = fmt.Errorf("%w: %v", e.Err, s)
	return e
}

// WithErr returns a copy of Error with err.Error() appended at the end of e.Err
func (e Error) WithErr(err error) Error {
	e.Err = fmt.Errorf("%w: %v", e.Err, err.Error())
	return e
}

// WithLogLevel returns a copy of Error with the specified log level
func (e Error) WithLogLevel(level string) Error {
	e.LogLevel = level
	return e
}

// WithData returns a copy of Error with the data attached to the response.
func (e Error) WithData(data any) Error {
	e.Data = data
	return e
}

// WithCancellation returns a copy of Error referencing the cancellation
// record provided.
func (e Error) WithCancellation(id string) Error {
	e.CancellationID = id
	return e
}
