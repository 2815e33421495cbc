package utils

import "testing"

func TestIsValidEmail(t *testing.T) {
	valid := []string{"user@example.com", "first.last@sub.domain.fi"}
	invalid := []string{"", "plainaddress", "@no-local.part", "user@"}

	for _, email := range valid {
		if !IsValidEmail(email) {
			t.Fatalf("expected %q to be valid", email)
		}
	}
	for _, email := range invalid {
		if IsValidEmail(email) {
			t.Fatalf("expected %q to be invalid", email)
		}
	}
}

func TestValidatePhoneNumber(t *testing.T) {
	if err := ValidatePhoneNumber("+358 40 1234567", DefaultPhoneRegion); err != nil {
		t.Fatalf("expected valid FI mobile: %v", err)
	}
	if err := ValidatePhoneNumber("not-a-number", DefaultPhoneRegion); err == nil {
		t.Fatalf("expected parse failure")
	}
}

func TestParseDecimal(t *testing.T) {
	d, err := ParseDecimal(" 165.50 ")
	if err != nil {
		t.Fatalf("ParseDecimal: %v", err)
	}
	if d.StringFixed(2) != "165.50" {
		t.Fatalf("got %s", d.StringFixed(2))
	}
	if _, err := ParseDecimal(""); err == nil {
		t.Fatalf("empty string must fail")
	}
}

func TestDereferencePtr(t *testing.T) {
	s := "value"
	if got := DereferencePtr(&s); got != "value" {
		t.Fatalf("got %q", got)
	}
	if got := DereferencePtr[string](nil); got != "" {
		t.Fatalf("nil without default: got %q", got)
	}
	if got := DereferencePtr[string](nil, "fallback"); got != "fallback" {
		t.Fatalf("nil with default: got %q", got)
	}
}
