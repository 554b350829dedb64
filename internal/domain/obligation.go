package domain

import "strings"

// ObligationType is a coarse label for a recurring payment.
type ObligationType string

const (
	ObligationMortgage     ObligationType = "mortgage"
	ObligationRent         ObligationType = "rent"
	ObligationCarLoan      ObligationType = "car_loan"
	ObligationLoan         ObligationType = "loan"
	ObligationCreditCard   ObligationType = "credit_card"
	ObligationSubscription ObligationType = "subscription"
	ObligationUtility      ObligationType = "utility"
	ObligationInsurance    ObligationType = "insurance"
	ObligationPhone        ObligationType = "phone"
	ObligationMembership   ObligationType = "membership"
	ObligationOther        ObligationType = "other"
)

// ObligationTypes lists every known label, ObligationOther last.
var ObligationTypes = []ObligationType{
	ObligationMortgage,
	ObligationRent,
	ObligationCarLoan,
	ObligationLoan,
	ObligationCreditCard,
	ObligationSubscription,
	ObligationUtility,
	ObligationInsurance,
	ObligationPhone,
	ObligationMembership,
	ObligationOther,
}

// ParseObligationType returns the label matching s, or false if s is not
// a known label.
func ParseObligationType(s string) (ObligationType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range ObligationTypes {
		if string(t) == s {
			return t, true
		}
	}
	return ObligationOther, false
}
