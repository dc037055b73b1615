package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	maxDescriptionLen = 200
	maxCategoryLen    = 64
)

type (
	TransactionType string

	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		Name         string    `json:"name"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	Transaction struct {
		ID          string          `json:"id"`
		UserID      string          `json:"userId"`
		Description string          `json:"description"`
		Amount      float64         `json:"amount"`
		Category    string          `json:"category"`
		Type        TransactionType `json:"type"`
		Date        time.Time       `json:"date"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}

	// TransactionInput carries the user-editable fields of a transaction.
	// Create and update share it.
	TransactionInput struct {
		Description string
		Amount      float64
		Category    string
		Type        TransactionType
		Date        time.Time
	}
)

// DefaultCategories is the category set offered to clients. Free text is
// accepted as well.
var DefaultCategories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Healthcare",
	"Education",
	"Travel",
	"Salary",
	"Other",
}

var (
	ErrValidation = errors.New("validation failed")
	ErrAuth       = errors.New("authentication required")
	ErrNotFound   = errors.New("not found")
)

// ValidationError reports a single invalid or missing request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (t TransactionType) IsValid() bool {
	switch t {
	case Income, Expense:
		return true
	default:
		return false
	}
}

func (in TransactionInput) Validate() error {
	if strings.TrimSpace(in.Description) == "" {
		return invalid("description", "is required")
	}
	if len(in.Description) > maxDescriptionLen {
		return invalid("description", "too long (max 200 characters)")
	}
	if in.Amount == 0 {
		return invalid("amount", "is required")
	}
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return invalid("amount", "must be a finite number")
	}
	if strings.TrimSpace(in.Category) == "" {
		return invalid("category", "is required")
	}
	if len(in.Category) > maxCategoryLen {
		return invalid("category", "too long (max 64 characters)")
	}
	if in.Type == "" {
		return invalid("type", "is required")
	}
	if !in.Type.IsValid() {
		return invalid("type", "must be income or expense")
	}
	if in.Date.IsZero() {
		return invalid("date", "is required")
	}
	return nil
}

// Normalize trims text fields, stores the date in UTC and derives the amount
// sign from the type: income is positive, expense is negative.
func (in TransactionInput) Normalize() TransactionInput {
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Date = in.Date.UTC()
	in.Amount = SignedAmount(in.Type, in.Amount)
	return in
}

// SignedAmount returns amount with the sign implied by t.
func SignedAmount(t TransactionType, amount float64) float64 {
	abs := math.Abs(amount)
	if t == Expense {
		return -abs
	}
	return abs
}

// Apply copies the input fields onto tx.
func (in TransactionInput) Apply(tx *Transaction) {
	tx.Description = in.Description
	tx.Amount = in.Amount
	tx.Category = in.Category
	tx.Type = in.Type
	tx.Date = in.Date
}

// NormalizeEmail lowercases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
