package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/cancelready/backend/cancellation"
	"github.com/cancelready/backend/errors"
	"github.com/cancelready/backend/processor"
	"github.com/cancelready/backend/validator"
	"github.com/go-chi/chi/v5"
)

// cancelHandler cancels the subscription of an end user on the payment
// processor of the vendor and records the attempt. Every response after the
// vendor is resolved carries the id of the cancellation record.
func (a *API) cancelHandler(w http.ResponseWriter, r *http.Request) {
	body := &CancelRequest{}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(body); err != nil {
		errors.ErrMalformedBody.Write(w)
		return
	}
	res, err := a.cancellation.Cancel(r.Context(), &cancellation.Request{
		VendorKey: body.VendorKey,
		UserID:    body.UserID,
		Email:     body.Email,
		Reason:    body.Reason,
		Feedback:  body.Feedback,
		Origin:    r.Header.Get("Origin"),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		cancelError(err, res).Write(w)
		return
	}
	resp := &CancelResponse{
		Status:             "success",
		Processor:          res.Processor,
		CancellationID:     res.CancellationID,
		Message:            res.Message,
		ProcessorReference: res.ProcessorReference,
	}
	if res.Processor == processor.Stripe {
		resp.StripeSubscriptionID = res.ProcessorReference
	}
	httpWriteJSON(w, resp)
}

// cancelError maps the errors of the cancellation pipeline onto API errors.
// The upstream and configuration details are passed through, the credential
// and storage ones are not.
func cancelError(err error, res *cancellation.Result) errors.Error {
	var apiErr errors.Error
	switch {
	case stderrors.Is(err, cancellation.ErrMissingIdentifiers):
		apiErr = errors.ErrMissingFields
	case stderrors.Is(err, cancellation.ErrValidation):
		apiErr = errors.ErrInvalidRequest
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			apiErr = apiErr.WithData(verrs)
		}
	case stderrors.Is(err, cancellation.ErrVendorNotFound):
		apiErr = errors.ErrInvalidVendorKey
	case stderrors.Is(err, cancellation.ErrUnsupportedProcessor):
		apiErr = errors.ErrUnsupportedProcessor
	case stderrors.Is(err, cancellation.ErrConfiguration):
		apiErr = withDetail(errors.ErrProcessorMisconfigured, err, cancellation.ErrConfiguration)
	case stderrors.Is(err, cancellation.ErrCredentialUnavailable):
		apiErr = errors.ErrCredentialUnavailable
	case stderrors.Is(err, cancellation.ErrUpstream):
		apiErr = withDetail(errors.ErrUpstreamProcessor, err, cancellation.ErrUpstream)
	case stderrors.Is(err, cancellation.ErrPersistence):
		apiErr = errors.ErrStorageFailure
	default:
		apiErr = errors.ErrGenericInternalServerError
	}
	if res != nil {
		apiErr = apiErr.WithCancellation(res.CancellationID)
	}
	return apiErr
}

// withDetail appends to apiErr the part of err that follows the sentinel
// message.
func withDetail(apiErr errors.Error, err, sentinel error) errors.Error {
	detail := strings.TrimPrefix(err.Error(), sentinel.Error())
	detail = strings.TrimPrefix(detail, ": ")
	if detail == "" {
		return apiErr
	}
	return apiErr.With(detail)
}

// vendorHandler returns the public information of a vendor: its key, company
// name and processor.
func (a *API) vendorHandler(w http.ResponseWriter, r *http.Request) {
	vendorKey := chi.URLParam(r, "vendorKey")
	if strings.TrimSpace(vendorKey) == "" {
		errors.ErrMalformedURLParam.With("vendorKey required").Write(w)
		return
	}
	info, err := a.cancellation.Vendor(vendorKey)
	if err != nil {
		if stderrors.Is(err, cancellation.ErrVendorNotFound) {
			errors.ErrVendorNotFound.Write(w)
			return
		}
		errors.ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &VendorResponse{
		VendorKey:   info.VendorKey,
		CompanyName: info.CompanyName,
		Processor:   info.Processor,
	})
}
