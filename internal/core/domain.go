package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// RecordTypeExpense is the only record type the tracker produces.
	RecordTypeExpense RecordType = "Expense"

	MaxCategoryLength = 50
	MaxMonthLength    = 20
	MaxYearLength     = 4

	DateLayout = "2006-01-02"
)

type (
	RecordType string

	Date struct {
		time.Time
	}

	// TimeOfDay is a wall clock time without a date, as recorded by the user.
	TimeOfDay struct {
		Hour   int
		Minute int
		Second int
	}

	ExpenseRecord struct {
		ID           int64
		RecordType   RecordType
		Category     string
		Note         string
		Amount       Amount
		Time         TimeOfDay
		Date         Date
		EmailAddress string
	}

	// Budget is a spending limit labelled with a month and a year. Among the
	// budgets of a user the one updated last is authoritative.
	Budget struct {
		ID           int64
		Limit        decimal.Decimal
		Month        string
		Year         string
		EmailAddress string
		UpdatedAt    time.Time
	}
)

var (
	ErrEmptyCategory     = errors.New("empty category")
	ErrCategoryTooLong   = fmt.Errorf("category too long (max %d characters)", MaxCategoryLength)
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidTime       = errors.New("invalid time")
	ErrInvalidRecordType = errors.New("invalid record type")
	ErrEmptyMonth        = errors.New("empty month")
	ErrEmptyYear         = errors.New("empty year")
	ErrMonthTooLong      = fmt.Errorf("month too long (max %d characters)", MaxMonthLength)
	ErrYearTooLong       = fmt.Errorf("year too long (max %d characters)", MaxYearLength)
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseTimeOfDay accepts HH:MM and HH:MM:SS.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, ErrInvalidTime
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidTime
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ValidateCategory checks the label constraints shared by client and server.
func ValidateCategory(category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return ErrEmptyCategory
	}
	if len(category) > MaxCategoryLength {
		return ErrCategoryTooLong
	}
	return nil
}

func (rt RecordType) Validate() error {
	if rt != RecordTypeExpense {
		return ErrInvalidRecordType
	}
	return nil
}

// Validate checks a record about to be sent or stored. Records read back from
// the server are not validated: a malformed amount is tolerated there.
func (r ExpenseRecord) Validate() error {
	if err := r.RecordType.Validate(); err != nil {
		return err
	}
	if err := ValidateCategory(r.Category); err != nil {
		return err
	}
	if !r.Amount.Valid() {
		return ErrInvalidAmount
	}
	if r.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// ValidatePeriod checks the free-text month and year labels of a budget.
func ValidatePeriod(month, year string) error {
	month, year = strings.TrimSpace(month), strings.TrimSpace(year)
	if month == "" {
		return ErrEmptyMonth
	}
	if len(month) > MaxMonthLength {
		return ErrMonthTooLong
	}
	if year == "" {
		return ErrEmptyYear
	}
	if len(year) > MaxYearLength {
		return ErrYearTooLong
	}
	return nil
}

func (b Budget) Validate() error {
	if b.Limit.IsNegative() {
		return ErrInvalidAmount
	}
	return ValidatePeriod(b.Month, b.Year)
}
