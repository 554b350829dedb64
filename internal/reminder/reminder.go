// Package reminder writes the notification text for obligations that are
// about to come due.
package reminder

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dvloznov/recurring-tracker/internal/domain"
	"github.com/dvloznov/recurring-tracker/internal/obligations"
)

// Reminder is the notification for one upcoming obligation.
type Reminder struct {
	ObligationID string    `json:"obligation_id"`
	UserID       string    `json:"user_id"`
	MerchantName string    `json:"merchant_name"`
	DueDate      time.Time `json:"due_date"`
	DaysUntil    int       `json:"days_until"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
}

// accountNumber matches digit runs long enough to be card or account numbers.
var accountNumber = regexp.MustCompile(`\d{12,}`)

var printer = message.NewPrinter(language.English)

// MaskAccountNumbers replaces long digit runs with ****1234, keeping the last
// four digits.
func MaskAccountNumbers(s string) string {
	return accountNumber.ReplaceAllStringFunc(s, func(m string) string {
		return "****" + m[len(m)-4:]
	})
}

// Build writes the reminder for an upcoming obligation.
func Build(u obligations.Upcoming) Reminder {
	o := u.Obligation
	merchant := MaskAccountNumbers(strings.TrimSpace(o.MerchantName))
	amount := printer.Sprintf("$%.2f", o.LastAmount)
	when := duePhrase(u.DaysUntil)

	var title, body string
	switch o.ObligationType {
	case domain.ObligationCreditCard:
		title = "Credit card payment " + when
		body = fmt.Sprintf("Your %s payment of about %s is %s.", merchant, amount, when)
	case domain.ObligationMortgage:
		title = "Mortgage payment " + when
		body = fmt.Sprintf("Your %s mortgage payment of %s is %s. Every payment builds your equity.", merchant, amount, when)
	case domain.ObligationCarLoan:
		title = "Car payment " + when
		body = fmt.Sprintf("Your %s car payment of %s is %s.", merchant, amount, when)
	default:
		title = fmt.Sprintf("%s %s", merchant, when)
		body = fmt.Sprintf("%s of about %s is %s.", describe(o), amount, when)
	}

	return Reminder{
		ObligationID: o.ID,
		UserID:       o.UserID,
		MerchantName: merchant,
		DueDate:      u.DueDate,
		DaysUntil:    u.DaysUntil,
		Title:        MaskAccountNumbers(title),
		Body:         MaskAccountNumbers(body),
	}
}

// BuildAll writes reminders for every upcoming obligation, keeping order.
func BuildAll(upcoming []obligations.Upcoming) []Reminder {
	out := make([]Reminder, 0, len(upcoming))
	for _, u := range upcoming {
		out = append(out, Build(u))
	}
	return out
}

func duePhrase(days int) string {
	switch {
	case days <= 0:
		return "due today"
	case days == 1:
		return "due tomorrow"
	default:
		return fmt.Sprintf("due in %d days", days)
	}
}

func describe(o obligations.Obligation) string {
	merchant := MaskAccountNumbers(o.MerchantName)
	switch o.ObligationType {
	case domain.ObligationOther, "":
		return fmt.Sprintf("Your %s %s payment", o.Frequency, merchant)
	default:
		return fmt.Sprintf("Your %s %s", merchant, strings.ReplaceAll(string(o.ObligationType), "_", " "))
	}
}
