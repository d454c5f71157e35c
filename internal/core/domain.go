package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the fixed-width ISO-8601 form dates are stored and compared in.
const DateLayout = "2006-01-02"

const (
	Accommodation  Category = "ACCOMMODATION"
	Food           Category = "FOOD"
	Transportation Category = "TRANSPORTATION"
	Activities     Category = "ACTIVITIES"
	Shopping       Category = "SHOPPING"
	Fees           Category = "FEES"
	Miscellaneous  Category = "MISCELLANEOUS"
)

type (
	// Category is the closed set of expense categories.
	Category string

	// Date is a calendar date with no time component, always held in UTC.
	Date struct {
		time.Time
	}

	Trip struct {
		ID             int64
		Name           string
		Destination    string
		StartDate      Date
		EndDate        Date
		Budget         decimal.NullDecimal
		BudgetCurrency *string
		Notes          *string
	}

	Expense struct {
		ID             int64
		Amount         decimal.Decimal
		Currency       string
		Category       Category
		Description    string
		Date           Date
		TripID         int64
		IsReimbursable bool
		ReceiptPath    *string
		PaymentMethod  *string
		Location       *string
	}
)

var (
	ErrEmptyName        = errors.New("empty trip name")
	ErrEmptyDestination = errors.New("empty destination")
	ErrEmptyCurrency    = errors.New("empty currency")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidDateRange = errors.New("end date before start date")
	ErrBudgetCurrency   = errors.New("budget and budget currency must be set together")
	ErrNegativeAmount   = errors.New("negative amount")
)

var categories = []Category{Accommodation, Food, Transportation, Activities, Shopping, Fees, Miscellaneous}

// AllCategories returns every category in declaration order.
func AllCategories() []Category {
	return append([]Category(nil), categories...)
}

// ParseCategory resolves a stored or user-supplied category name.
// Unknown names map to Miscellaneous so rows written by newer versions still load.
func ParseCategory(s string) Category {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if c.IsValid() {
		return c
	}
	return Miscellaneous
}

func (c Category) IsValid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// DisplayName returns "Food" for FOOD.
func (c Category) DisplayName() string {
	s := strings.ToLower(string(c))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current local calendar date.
func Today() Date {
	y, m, d := time.Now().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// Contains reports whether day falls inside the trip's inclusive date range.
func (t Trip) Contains(day Date) bool {
	return !day.Before(t.StartDate.Time) && !day.After(t.EndDate.Time)
}

func (t Trip) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(t.Destination) == "" {
		return ErrEmptyDestination
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return ErrInvalidDate
	}
	if t.EndDate.Before(t.StartDate.Time) {
		return ErrInvalidDateRange
	}
	hasCurrency := t.BudgetCurrency != nil && strings.TrimSpace(*t.BudgetCurrency) != ""
	if t.Budget.Valid != hasCurrency {
		return ErrBudgetCurrency
	}
	if t.Budget.Valid && t.Budget.Decimal.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if e.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if strings.TrimSpace(e.Currency) == "" {
		return ErrEmptyCurrency
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}
