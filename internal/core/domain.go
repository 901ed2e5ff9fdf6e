package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO 8601 calendar date format used on the wire.
const DateLayout = "2006-01-02"

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

type (
	Status string

	Date struct {
		time.Time
	}

	// Money is a decimal currency value encoded as a bare JSON number.
	Money struct {
		decimal.Decimal
	}

	Expense struct {
		ID              *int64 `json:"id,omitempty"`
		Title           string `json:"title"`
		Description     string `json:"description,omitempty"`
		Amount          Money  `json:"amount"`
		CurrencyCode    string `json:"currencyCode"`
		Date            Date   `json:"date"`
		CategoryID      *int64 `json:"categoryId,omitempty"`
		Location        string `json:"location,omitempty"`
		Tags            string `json:"tags,omitempty"`
		IsReimbursable  bool   `json:"isReimbursable"`
		Status          Status `json:"status,omitempty"`
		ReceiptImageURL string `json:"receiptImageUrl,omitempty"`
		OCRData         string `json:"ocrData,omitempty"`
	}

	Category struct {
		ID          int64  `json:"id,omitempty"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Icon        string `json:"icon,omitempty"`
		Color       string `json:"color,omitempty"`
		IsDefault   bool   `json:"isDefault"`
	}

	ReceiptItem struct {
		Name     string `json:"name"`
		Price    Money  `json:"price"`
		Quantity int    `json:"quantity"`
	}

	// ReceiptData is the transient result of a receipt scan.
	ReceiptData struct {
		MerchantName string        `json:"merchantName"`
		TotalAmount  Money         `json:"totalAmount"`
		TaxAmount    Money         `json:"taxAmount"`
		Date         Date          `json:"date"`
		Items        []ReceiptItem `json:"items"`
		OCRText      string        `json:"ocrText"`
		Confidence   float64       `json:"confidence"`
	}
)

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyTitle      = errors.New("empty title")
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrEmptyName       = errors.New("empty name")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

// UnmarshalJSON accepts a calendar date, a full RFC 3339 timestamp, null or "".
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		*d = Date{Time: t}
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("date %q: %w", s, err)
	}
	*d = NewDate(t.Year(), int(t.Month()), t.Day())
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*m = Money{}
		return nil
	}
	return m.Decimal.UnmarshalJSON(b)
}

func (m Money) Validate() error {
	if m.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (s Status) Validate() error {
	switch s {
	case "", StatusPending, StatusApproved, StatusRejected:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, string(s))
	}
}

// ValidateCurrencyCode reports whether code is a 3-letter uppercase ISO 4217 code.
func ValidateCurrencyCode(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := ValidateCurrencyCode(e.CurrencyCode); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	return e.Status.Validate()
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}
