package tokens

// Reason identifies why a token was rejected
type Reason string

const (
	ReasonMissingToken   Reason = "missing_token"
	ReasonMalformedToken Reason = "malformed_token"
	ReasonBadSignature   Reason = "bad_signature"
	ReasonWrongIssuer    Reason = "wrong_issuer"
	ReasonWrongAudience  Reason = "wrong_audience"
	ReasonExpired        Reason = "expired"
)

// Principal is the authenticated identity carried by a valid token
type Principal struct {
	Subject string
	Claims  map[string]interface{}
}

// Outcome is the result of validating one token. It holds either a
// Principal or a rejection Reason, never both.
type Outcome struct {
	principal *Principal
	reason    Reason
}

// Accept returns an authenticated outcome for p. A nil principal cannot
// authenticate anyone and yields a malformed-token rejection.
func Accept(p *Principal) Outcome {
	if p == nil {
		return Reject(ReasonMalformedToken)
	}
	return Outcome{principal: p}
}

// Reject returns a rejected outcome for reason
func Reject(reason Reason) Outcome {
	return Outcome{reason: reason}
}

// Authenticated reports whether the token was accepted
func (o Outcome) Authenticated() bool {
	return o.principal != nil
}

// Principal returns the authenticated principal, or nil when rejected
func (o Outcome) Principal() *Principal {
	return o.principal
}

// Reason returns the rejection reason, or "" when authenticated
func (o Outcome) Reason() Reason {
	return o.reason
}

// Err adapts a rejection to an error for logging. It returns nil for an
// authenticated outcome.
func (o Outcome) Err() error {
	if o.Authenticated() {
		return nil
	}
	return &RejectionError{Reason: o.reason}
}

// RejectionError is the error form of a rejected Outcome
type RejectionError struct {
	Reason Reason
}

// Error implements the error interface
func (e *RejectionError) Error() string {
	return "token rejected: " + string(e.Reason)
}
