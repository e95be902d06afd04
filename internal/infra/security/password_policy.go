package security

const (
	defaultMinPasswordLength   = 8
	defaultMinCharacterClasses = 3
)

// PasswordPolicyConfig tunes the password policy.
type PasswordPolicyConfig struct {
	MinLength        int
	MinClasses       int
	MinStrengthScore int
}

// DefaultPasswordPolicyConfig accepts passwords such as Passw0rd1.
func DefaultPasswordPolicyConfig() PasswordPolicyConfig {
	return PasswordPolicyConfig{
		MinLength:  defaultMinPasswordLength,
		MinClasses: defaultMinCharacterClasses,
	}
}

// PasswordPolicy builds a validator per call so user inputs feed the strength check.
type PasswordPolicy struct {
	cfg PasswordPolicyConfig
}

// NewPasswordPolicy fills zero values from the defaults.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	if cfg.MinLength <= 0 {
		cfg.MinLength = defaultMinPasswordLength
	}
	if cfg.MinClasses < 0 {
		cfg.MinClasses = defaultMinCharacterClasses
	}
	return &PasswordPolicy{cfg: cfg}
}

// Validate returns the first violation as a *PasswordValidationError.
// userInputs are the account's username and email.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	if p == nil {
		p = NewPasswordPolicy(DefaultPasswordPolicyConfig())
	}
	return NewPasswordValidator(
		LengthRule(p.cfg.MinLength, MaxPasswordLength),
		RequireCharacterClassesRule(p.cfg.MinClasses),
		RejectUserInputsRule(userInputs...),
		RequirePasswordStrengthRule(p.cfg.MinStrengthScore, userInputs...),
	).Validate(password)
}
