package receipt

import (
	"time"

	"expensetracker/internal/core"
)

const (
	// DefaultCurrency is used for drafts when none is configured.
	DefaultCurrency = "USD"

	fallbackTitle = "Receipt Expense"
)

// Draft maps scanned receipt data to a new expense. A missing merchant falls
// back to a generic title; a missing date falls back to today.
func Draft(data core.ReceiptData, currency string) core.Expense {
	if currency == "" {
		currency = DefaultCurrency
	}
	title := data.MerchantName
	if title == "" {
		title = fallbackTitle
	}
	date := data.Date
	if date.IsZero() {
		now := time.Now()
		date = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}
	description := "Scanned receipt"
	if data.MerchantName != "" {
		description += " from " + data.MerchantName
	}
	return core.Expense{
		Title:          title,
		Description:    description,
		Amount:         data.TotalAmount,
		CurrencyCode:   currency,
		Date:           date,
		IsReimbursable: false,
	}
}
