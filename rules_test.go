package resumeauth

import (
	"errors"
	"testing"
)

func TestValidateEmailFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{" Alice@Example.COM ", "alice@example.com", true},
		{"bob.smith+cv@mail.example.org", "bob.smith+cv@mail.example.org", true},
		{"", "", false},
		{"alice", "", false},
		{"alice@localhost", "", false},
		{"Alice <alice@example.com>", "", false},
		{"@example.com", "", false},
	}

	for _, tt := range tests {
		got, err := ValidateEmailFormat(tt.in)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Fatalf("ValidateEmailFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
			continue
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("ValidateEmailFormat(%q): expected ErrValidation, got %v", tt.in, err)
		}
	}
}

func TestCheckBlockedDomain(t *testing.T) {
	blocked := []string{"tempmail.com", " Mailinator.com "}

	for _, email := range []string{"a@tempmail.com", "a@mailinator.com", "a@x.mailinator.com"} {
		if err := CheckBlockedDomain(email, blocked); !errors.Is(err, ErrBlockedDomain) {
			t.Fatalf("expected %s to be blocked, got %v", email, err)
		}
	}
	for _, email := range []string{"a@example.com", "a@nottempmail.com"} {
		if err := CheckBlockedDomain(email, blocked); err != nil {
			t.Fatalf("expected %s to pass, got %v", email, err)
		}
	}
}

func TestValidateSignupRole(t *testing.T) {
	for _, in := range []string{"", "user", " USER "} {
		role, err := ValidateSignupRole(in)
		if err != nil || role != RoleUser {
			t.Fatalf("ValidateSignupRole(%q) = %q, %v", in, role, err)
		}
	}
	if _, err := ValidateSignupRole("admin"); !errors.Is(err, ErrRoleNotAllowed) {
		t.Fatalf("expected ErrRoleNotAllowed, got %v", err)
	}
	if _, err := ValidateSignupRole("owner"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCheckRegistrationRate(t *testing.T) {
	if err := CheckRegistrationRate(3, 3); err != nil {
		t.Fatalf("third attempt should pass, got %v", err)
	}
	if err := CheckRegistrationRate(4, 3); !errors.Is(err, ErrRegistrationRateLimit) {
		t.Fatalf("expected ErrRegistrationRateLimit, got %v", err)
	}
	if err := CheckRegistrationRate(100, 0); err != nil {
		t.Fatalf("max 0 disables the check, got %v", err)
	}
}

func TestCheckAccountStatus(t *testing.T) {
	tests := []struct {
		status AccountStatus
		op     GatedOperation
		want   error
	}{
		{StatusActive, GateSignIn, nil},
		{StatusActive, GateAccess, nil},
		{StatusInactive, GateSignIn, nil},
		{StatusInactive, GateRefresh, ErrAccountInactive},
		{StatusInactive, GateAccess, ErrAccountInactive},
		{StatusSuspended, GateSignIn, ErrAccountSuspended},
		{StatusSuspended, GateRefresh, ErrAccountSuspended},
		{StatusSuspended, GateAccess, ErrAccountSuspended},
		{AccountStatus("unknown"), GateAccess, ErrAccountInactive},
	}

	for _, tt := range tests {
		err := CheckAccountStatus(tt.status, tt.op)
		if tt.want == nil {
			if err != nil {
				t.Fatalf("CheckAccountStatus(%s, %s): unexpected %v", tt.status, tt.op, err)
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Fatalf("CheckAccountStatus(%s, %s): expected %v, got %v", tt.status, tt.op, tt.want, err)
		}
	}
}

func TestSmallRules(t *testing.T) {
	if err := CheckUniqueEmail(&Profile{ID: "u1"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if err := CheckSignInExists(nil); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := CheckAdmin(&Profile{Role: RoleUser}); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}
	if err := CheckAdmin(&Profile{Role: RoleAdmin}); err != nil {
		t.Fatalf("expected admin to pass, got %v", err)
	}
	if err := CheckResetConfig(" "); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if err := CheckVerificationType("recovery"); err != nil {
		t.Fatalf("expected recovery to be accepted, got %v", err)
	}
	if err := CheckVerificationType("sms"); !errors.Is(err, ErrInvalidVerification) {
		t.Fatalf("expected ErrInvalidVerification, got %v", err)
	}
	if err := ValidatePassword("   "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
