package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func validInput() TransactionInput {
	return TransactionInput{
		Description: "Groceries",
		Amount:      42.5,
		Category:    "Food & Dining",
		Type:        Expense,
		Date:        time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestTransactionInputValidate(t *testing.T) {
	if err := validInput().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name  string
		edit  func(*TransactionInput)
		field string
	}{
		{"missing description", func(in *TransactionInput) { in.Description = "  " }, "description"},
		{"zero amount", func(in *TransactionInput) { in.Amount = 0 }, "amount"},
		{"nan amount", func(in *TransactionInput) { in.Amount = math.NaN() }, "amount"},
		{"missing category", func(in *TransactionInput) { in.Category = "" }, "category"},
		{"missing type", func(in *TransactionInput) { in.Type = "" }, "type"},
		{"unknown type", func(in *TransactionInput) { in.Type = "transfer" }, "type"},
		{"missing date", func(in *TransactionInput) { in.Date = time.Time{} }, "date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.edit(&in)
			err := in.Validate()
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
		})
	}
}

func TestNormalizeDerivesSignFromType(t *testing.T) {
	cases := []struct {
		typ  TransactionType
		in   float64
		want float64
	}{
		{Income, 100, 100},
		{Income, -100, 100},
		{Expense, 40, -40},
		{Expense, -40, -40},
	}
	for _, tc := range cases {
		in := validInput()
		in.Type = tc.typ
		in.Amount = tc.in
		if got := in.Normalize().Amount; got != tc.want {
			t.Errorf("Normalize(%s, %v).Amount = %v, want %v", tc.typ, tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTrimsAndUsesUTC(t *testing.T) {
	in := validInput()
	in.Description = "  Rent "
	in.Category = " Bills & Utilities "
	in.Date = time.Date(2025, 1, 1, 1, 0, 0, 0, time.FixedZone("CET", 3600))

	out := in.Normalize()
	if out.Description != "Rent" || out.Category != "Bills & Utilities" {
		t.Fatalf("fields not trimmed: %+v", out)
	}
	if out.Date.Location() != time.UTC || !out.Date.Equal(in.Date) {
		t.Fatalf("date not normalized to UTC: %v", out.Date)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("NormalizeEmail = %q", got)
	}
}
