package notionsync

import (
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dvloznov/recurring-tracker/internal/obligations"
)

// Property names of the obligations database.
const (
	PropMerchant     = "Merchant"
	PropObligationID = "Obligation ID"
	PropType         = "Type"
	PropFrequency    = "Frequency"
	PropCategory     = "Category"
	PropAvgAmount    = "Average Amount"
	PropLastAmount   = "Last Amount"
	PropInterval     = "Interval Days"
	PropConfidence   = "Confidence"
	PropNextDue      = "Next Due"
	PropLastSeen     = "Last Seen"
)

var titleCaser = cases.Title(language.English)

// ObligationToNotionProperties converts an obligation to the properties of
// its row in the Notion obligations database.
func ObligationToNotionProperties(o *obligations.Obligation) notionapi.Properties {
	props := notionapi.Properties{
		PropMerchant: notionapi.TitleProperty{
			Title: richText(o.MerchantName),
		},
		PropObligationID: notionapi.RichTextProperty{
			RichText: richText(o.ID),
		},
		PropType: notionapi.SelectProperty{
			Select: notionapi.Option{Name: label(string(o.ObligationType))},
		},
		PropFrequency: notionapi.SelectProperty{
			Select: notionapi.Option{Name: label(string(o.Frequency))},
		},
		PropAvgAmount:  notionapi.NumberProperty{Number: o.AvgAmount},
		PropLastAmount: notionapi.NumberProperty{Number: o.LastAmount},
		PropInterval:   notionapi.NumberProperty{Number: float64(o.IntervalDays)},
		PropConfidence: notionapi.NumberProperty{Number: o.Confidence},
		PropLastSeen:   dateProperty(o.LastSeenDate),
	}

	if o.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: o.Category},
		}
	}
	if o.NextEstimatedDate != nil {
		props[PropNextDue] = dateProperty(*o.NextEstimatedDate)
	}
	return props
}

// label turns a snake_case value into a select option name: car_loan → Car Loan.
func label(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{Start: &d},
	}
}
