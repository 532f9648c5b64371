package validator

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

type testRequest struct {
	VendorKey string `json:"vendorKey" validate:"required,nonblank,vendorkey,max=16"`
	UserID    string `json:"userId" validate:"required,nonblank"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Processor string `json:"processor" validate:"omitempty,processor"`
}

func TestValidate(t *testing.T) {
	c := qt.New(t)
	v := New()

	c.Assert(v.Validate(&testRequest{VendorKey: "vk_1", UserID: "sub_1"}), qt.IsNil)
	c.Assert(v.Validate(&testRequest{VendorKey: "vk_1", UserID: "sub_1", Processor: "paddle"}), qt.IsNil)

	err := v.Validate(&testRequest{})
	c.Assert(err, qt.DeepEquals, ValidationErrors{
		{Field: "vendorKey", Message: "This field is required"},
		{Field: "userId", Message: "This field is required"},
	})
	c.Assert(err.Error(), qt.Equals, "vendorKey: This field is required, userId: This field is required")

	err = v.Validate(&testRequest{VendorKey: "vk 1", UserID: "   "})
	c.Assert(err, qt.DeepEquals, ValidationErrors{
		{Field: "vendorKey", Message: "Must contain only letters, digits, '-' and '_'"},
		{Field: "userId", Message: "This field is required"},
	})

	err = v.Validate(&testRequest{VendorKey: "vk_0123456789abcdef", UserID: "sub_1", Email: "nope", Processor: "braintree"})
	c.Assert(err, qt.DeepEquals, ValidationErrors{
		{Field: "vendorKey", Message: "Must be at most 16 characters long"},
		{Field: "email", Message: "Invalid email format"},
		{Field: "processor", Message: "Must be one of stripe, paddle or none"},
	})
}
