// Package classifier assigns an obligation type to a recurring merchant.
package classifier

import (
	"context"
	"strings"

	"github.com/dvloznov/recurring-tracker/internal/domain"
)

type rule struct {
	keywords []string
	kind     domain.ObligationType
}

// rules are checked in order; the first match wins.
var rules = []rule{
	{[]string{"MORTGAGE", "HOME LOAN", "NATIONWIDE BS"}, domain.ObligationMortgage},
	{[]string{"RENT", "LETTINGS", "PROPERTY MGMT", "APARTMENTS"}, domain.ObligationRent},
	{[]string{"AUTO LOAN", "CAR LOAN", "CAR FINANCE", "MOTOR FINANCE", "TOYOTA FIN", "HONDA FIN", "FORD CREDIT"}, domain.ObligationCarLoan},
	{[]string{"LOAN", "LENDING", "STUDENT FIN"}, domain.ObligationLoan},
	{[]string{"CREDIT CARD", "CARD PAYMENT", "AMEX", "VISA PMT", "MASTERCARD PMT"}, domain.ObligationCreditCard},
	{[]string{"INSURANCE", "ASSURANCE", "AVIVA", "GEICO", "STATE FARM", "ALLSTATE"}, domain.ObligationInsurance},
	{[]string{"HYDRO", "ELECTRIC", "WATER", "GAS ", "ENERGY", "POWER", "UTILIT", "COUNCIL TAX"}, domain.ObligationUtility},
	{[]string{"VODAFONE", "VERIZON", "T-MOBILE", "ROGERS", "BELL MOBILITY", "TELUS", "MOBILE", "WIRELESS", "BROADBAND", "INTERNET"}, domain.ObligationPhone},
	{[]string{"GYM", "FITNESS", "MEMBERSHIP", "CLUB"}, domain.ObligationMembership},
	{[]string{"NETFLIX", "SPOTIFY", "DISNEY", "HULU", "APPLE.COM", "ICLOUD", "PRIME VIDEO", "AMAZON PRIME", "YOUTUBE", "ADOBE", "MICROSOFT", "DROPBOX", "PATREON", "SUBSCRIPTION"}, domain.ObligationSubscription},
}

// KeywordClassifier labels merchants by substring rules.
type KeywordClassifier struct{}

// NewKeywordClassifier creates a KeywordClassifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify never fails; merchants matching no rule are ObligationOther.
func (k *KeywordClassifier) Classify(ctx context.Context, merchantName string) (domain.ObligationType, error) {
	return classifyByKeyword(merchantName), nil
}

func classifyByKeyword(merchantName string) domain.ObligationType {
	name := " " + strings.ToUpper(merchantName) + " "
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(name, kw) {
				return r.kind
			}
		}
	}
	return domain.ObligationOther
}
