package validation

import (
	"errors"
	"testing"

	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/core/ports"
)

func TestStruct_RegisterInput(t *testing.T) {
	err := Struct(ports.RegisterInput{
		Name:            "",
		Email:           "not-an-email",
		Password:        "123",
		ConfirmPassword: "456",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	apiErr, _ := domain.AsAPIError(err)
	want := map[string]string{
		"name":            "name is required",
		"email":           "email must be a valid email",
		"password":        "password must be at least 6 characters",
		"confirmPassword": "passwords do not match",
	}
	for k, v := range want {
		if apiErr.Fields[k] != v {
			t.Fatalf("field %s: expected %q, got %q", k, v, apiErr.Fields[k])
		}
	}
}

func TestStruct_Valid(t *testing.T) {
	err := Struct(ports.AdminSetupInput{
		Name:            "Root",
		Email:           "root@laundry.pro",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		SecretKey:       "k",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestVar(t *testing.T) {
	if err := Var("email", "a@b.com", "required,email"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := Var("email", "", "required,email")
	apiErr, ok := domain.AsAPIError(err)
	if !ok || apiErr.Fields["email"] != "email is required" {
		t.Fatalf("unexpected error: %#v", err)
	}
}

func TestEcho_Validate(t *testing.T) {
	if err := (Echo{}).Validate(&ports.AdminSetupInput{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
