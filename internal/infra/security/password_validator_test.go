package security

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordPolicyAcceptsTypicalPassword(t *testing.T) {
	policy := NewPasswordPolicy(DefaultPasswordPolicyConfig())

	for _, password := range []string{"Passw0rd1", "C0mplex!Passphrase#2025", "dream-Lucid-42"} {
		if err := policy.Validate(password, "alice", "alice@example.com"); err != nil {
			t.Fatalf("expected %q to pass validation, got %v", password, err)
		}
	}
}

func TestPasswordPolicyViolations(t *testing.T) {
	policy := NewPasswordPolicy(DefaultPasswordPolicyConfig())

	assertViolation := func(password, expectedCode string) {
		t.Helper()
		err := policy.Validate(password, "dreamer", "dreamer@example.com")
		if err == nil {
			t.Fatalf("expected validation error for %s", expectedCode)
		}
		var vErr *PasswordValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected PasswordValidationError, got %T", err)
		}
		if vErr.Code != expectedCode {
			t.Fatalf("expected %s code, got %s", expectedCode, vErr.Code)
		}
	}

	assertViolation("Short1!", "min_length")
	assertViolation(strings.Repeat("Aa1", 50), "max_length")
	assertViolation("lowercasepassword", "character_classes")
	assertViolation("password123", "character_classes")
	assertViolation("Dreamer2024", "contains_user_input")
}

func TestPasswordPolicyStrengthScore(t *testing.T) {
	strict := NewPasswordPolicy(PasswordPolicyConfig{MinLength: 8, MinClasses: 3, MinStrengthScore: 3})

	err := strict.Validate("Password123")
	var vErr *PasswordValidationError
	if !errors.As(err, &vErr) || vErr.Code != "weak_password" {
		t.Fatalf("expected weak_password violation, got %v", err)
	}
}

func TestCustomPasswordValidator(t *testing.T) {
	validator := NewPasswordValidator(
		LengthRule(4, 0),
		RequireDifferentFrom("existing"),
	)

	if err := validator.Validate("existing"); err == nil {
		t.Fatalf("expected validation error when new password equals comparator")
	}
	if err := validator.Validate("abc"); err == nil {
		t.Fatalf("expected validation error for short password")
	}
	if err := validator.Validate("diff!"); err != nil {
		t.Fatalf("expected password to pass custom validation, got %v", err)
	}
}
