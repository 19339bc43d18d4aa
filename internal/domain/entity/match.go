package entity

// MatchMethod identifies which strategy produced a match.
type MatchMethod string

const (
	MatchByPaymentID   MatchMethod = "payment_id"
	MatchByMetadata    MatchMethod = "metadata"
	MatchByAmountTime  MatchMethod = "amount_time"
	MatchByEmailAmount MatchMethod = "email_amount"
	MatchNone          MatchMethod = "none"
)

// MatchResult is the outcome of one match attempt. Confidence is an
// integer in [0,100]; Registration is nil exactly when Method is
// MatchNone.
type MatchResult struct {
	Payment      *PaymentRecord      `json:"payment"`
	Registration *RegistrationRecord `json:"registration,omitempty"`
	Confidence   int                 `json:"confidence"`
	Method       MatchMethod         `json:"method"`
	Issues       []string            `json:"issues"`
}

// Matched reports whether a registration was found at any confidence.
func (m *MatchResult) Matched() bool {
	return m.Registration != nil && m.Method != MatchNone
}
