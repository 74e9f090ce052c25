// Package tokens validates HMAC-signed bearer tokens against a fixed policy.
//
// Validation runs in a fixed order and stops at the first failure:
// presence, structure, signature, issuer, audience, lifetime. Each failure
// has its own Reason so callers can log the cause, but the outcome is a
// value: nothing in this package panics or returns an error for a bad token.
package tokens

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningAlgorithm is the only algorithm a token may declare
const SigningAlgorithm = "HS256"

// Validator checks bearer tokens. It holds only immutable state and is
// safe for concurrent use.
type Validator struct {
	secret SigningSecret
	policy ValidationPolicy
	parser *jwt.Parser
	now    func() time.Time
}

// Option configures a Validator
type Option func(*Validator)

// WithClock replaces the time source used for lifetime checks
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// NewValidator creates a Validator for the given secret and policy
func NewValidator(secret SigningSecret, policy ValidationPolicy, opts ...Option) (*Validator, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	v := &Validator{
		// Keep a private copy so later mutation of the caller's slice has no effect
		secret: slices.Clone(secret),
		policy: policy,
		// Claims are checked below in a fixed order; the parser only
		// handles structure and signature.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{SigningAlgorithm}),
			jwt.WithoutClaimsValidation(),
		),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Policy returns the policy the validator enforces
func (v *Validator) Policy() ValidationPolicy {
	return v.policy
}

// Validate checks rawToken and returns the authenticated principal or the
// first reason it was rejected.
func (v *Validator) Validate(rawToken string) Outcome {
	if rawToken == "" {
		return Reject(ReasonMissingToken)
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(rawToken, claims, v.keyFunc)
	if err != nil {
		return Reject(parseFailureReason(err))
	}

	issuer, err := claims.GetIssuer()
	if err != nil {
		return Reject(ReasonMalformedToken)
	}
	audience, err := claims.GetAudience()
	if err != nil {
		return Reject(ReasonMalformedToken)
	}
	expiresAt, err := claims.GetExpirationTime()
	if err != nil {
		return Reject(ReasonMalformedToken)
	}
	notBefore, err := claims.GetNotBefore()
	if err != nil {
		return Reject(ReasonMalformedToken)
	}
	subject, err := claims.GetSubject()
	if err != nil {
		return Reject(ReasonMalformedToken)
	}

	if issuer != v.policy.ExpectedIssuer {
		return Reject(ReasonWrongIssuer)
	}
	if !slices.Contains(audience, v.policy.ExpectedAudience) {
		return Reject(ReasonWrongAudience)
	}
	if !v.withinLifetime(expiresAt, notBefore) {
		return Reject(ReasonExpired)
	}

	return Accept(&Principal{
		Subject: subject,
		Claims:  map[string]interface{}(claims),
	})
}

// keyFunc hands the parser the shared secret. The parser has already
// rejected any algorithm other than SigningAlgorithm; the method check is
// repeated here so the key is never released to a non-HMAC verifier.
func (v *Validator) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok || token.Method.Alg() != SigningAlgorithm {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return []byte(v.secret), nil
}

// withinLifetime requires an expiry. A token expiring at exactly
// now - ClockSkew is still accepted.
func (v *Validator) withinLifetime(expiresAt, notBefore *jwt.NumericDate) bool {
	if expiresAt == nil {
		return false
	}
	now := v.now()
	if now.After(expiresAt.Add(v.policy.ClockSkew)) {
		return false
	}
	if notBefore != nil && now.Add(v.policy.ClockSkew).Before(notBefore.Time) {
		return false
	}
	return true
}

// parseFailureReason maps parser errors onto rejection reasons. Anything
// that is not a structural problem (invalid signature, unknown or
// disallowed alg, key lookup failure) counts as a bad signature.
func parseFailureReason(err error) Reason {
	if errors.Is(err, jwt.ErrTokenMalformed) {
		return ReasonMalformedToken
	}
	return ReasonBadSignature
}
