// Package http provides the HTTP server, route guard and JSON handlers.
//
// This file decodes and sanitizes request bodies and query parameters.

package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

const (
	maxBodyBytes = 64 << 10
	maxListLimit = 1000
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// transactionRequest accepts the amount as a JSON number or a numeric string,
// since HTML number inputs submit strings.
type transactionRequest struct {
	Description string          `json:"description"`
	Amount      json.RawMessage `json:"amount"`
	Category    string          `json:"category"`
	Type        string          `json:"type"`
	Date        string          `json:"date"`
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", core.ErrValidation)
	}
	return nil
}

// toInput converts the raw request into a domain input. Missing values are
// left zero so TransactionInput.Validate reports them; malformed values are
// reported here.
func (req transactionRequest) toInput() (core.TransactionInput, error) {
	in := core.TransactionInput{
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		Type:        core.TransactionType(strings.ToLower(strings.TrimSpace(req.Type))),
	}

	amount, err := parseAmountField(req.Amount)
	if err != nil {
		return core.TransactionInput{}, err
	}
	in.Amount = amount

	if date := strings.TrimSpace(req.Date); date != "" {
		t, err := core.ParseDate(date)
		if err != nil {
			return core.TransactionInput{}, &core.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD or RFC 3339"}
		}
		in.Date = t
	}
	return in, nil
}

func parseAmountField(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, &core.ValidationError{Field: "amount", Reason: "must be a number"}
		}
		if strings.TrimSpace(s) == "" {
			return 0, nil
		}
	} else {
		s = string(raw)
	}

	v, err := core.ParseAmount(s)
	if err != nil {
		return 0, &core.ValidationError{Field: "amount", Reason: "must be a number"}
	}
	return v, nil
}

// parseLimit reads ?limit=N. Absent, invalid or non-positive values mean no
// limit; large values are capped.
func parseLimit(r *http.Request) int {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// formatDate renders a date for HTML date inputs.
func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
