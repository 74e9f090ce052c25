package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const redacted = "[REDACTED]"

var (
	// ErrEmptySecret is returned when a validator is built without key material
	ErrEmptySecret = errors.New("signing secret is empty")

	// ErrInvalidPolicy is returned when the validation policy is incomplete
	ErrInvalidPolicy = errors.New("invalid validation policy")

	policyValidate = validator.New()
)

// SigningSecret is the symmetric key used to verify token signatures.
// It is loaded once at startup and never printed: every formatting path
// (fmt, zap, encoding/json) renders it as [REDACTED].
type SigningSecret []byte

// NewSigningSecret copies the given passphrase into a SigningSecret
func NewSigningSecret(passphrase string) SigningSecret {
	return SigningSecret([]byte(passphrase))
}

// String implements fmt.Stringer
func (s SigningSecret) String() string {
	return redacted
}

// GoString implements fmt.GoStringer
func (s SigningSecret) GoString() string {
	return redacted
}

// MarshalJSON implements json.Marshaler
func (s SigningSecret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// ValidationPolicy lists what a token must assert to be accepted.
// Signature, issuer, audience and lifetime checks are always performed;
// there is no switch to turn any of them off.
type ValidationPolicy struct {
	ExpectedIssuer   string        `validate:"required"`
	ExpectedAudience string        `validate:"required"`
	ClockSkew        time.Duration `validate:"gte=0s"`
}

// Validate checks that the policy names an issuer and an audience and
// that the clock skew is not negative.
func (p ValidationPolicy) Validate() error {
	if err := policyValidate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	return nil
}
