// Package validate checks business-rule invariants on assembled transaction
// records. Failures are reported, never panicked: an invalid record blocks
// its own persistence as valid but must not halt the pipeline.
package validate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smsledger/sms-ledger/internal/domain"
)

const (
	maxAmount      = 10_000_000
	maxAgeDays     = 90
	ageWarningDays = 85
	minConfidence  = 0.5
)

// Result is the outcome of validating one record. Valid is true only when
// Errors is empty; Warnings never affect validity.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validator applies the rule set against an injectable clock so date-age
// rules are testable.
type Validator struct {
	now func() time.Time
}

// NewValidator returns a validator using the wall clock.
func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// NewValidatorWithClock returns a validator on a fixed or fake clock, for
// deterministic date-age checks.
func NewValidatorWithClock(now func() time.Time) *Validator {
	return &Validator{now: now}
}

// Validate applies every rule and collects all findings rather than
// stopping at the first.
func (v *Validator) Validate(rec domain.PersistedTransaction) Result {
	var res Result

	v.checkRequired(rec, &res)
	v.checkAmount(rec.Amount, &res)
	v.checkDate(rec.Date, &res)
	v.checkTime(rec.Time, &res)
	v.checkAccountRef(rec.AccountRef, &res)
	v.checkConfidence(rec.Confidence, &res)

	res.Valid = len(res.Errors) == 0
	return res
}

func (v *Validator) checkRequired(rec domain.PersistedTransaction, res *Result) {
	if rec.ID == "" {
		res.Errors = append(res.Errors, "id is required")
	}
	if rec.OwnerID == "" {
		res.Errors = append(res.Errors, "owner id is required")
	}
	if rec.SourceText == "" {
		res.Errors = append(res.Errors, "source text is required")
	}
	if rec.SenderID == "" {
		res.Errors = append(res.Errors, "sender id is required")
	}
}

func (v *Validator) checkAmount(amount decimal.Decimal, res *Result) {
	if amount.LessThanOrEqual(decimal.Zero) {
		res.Errors = append(res.Errors, "amount must be positive")
		return
	}
	if amount.GreaterThan(decimal.NewFromInt(maxAmount)) {
		res.Errors = append(res.Errors, fmt.Sprintf("amount exceeds maximum of %d", maxAmount))
		return
	}
	if amount.LessThan(decimal.NewFromInt(1)) {
		res.Warnings = append(res.Warnings, "amount is below 1")
	}
}

func (v *Validator) checkDate(date string, res *Result) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("date %q is not a valid ISO-8601 date", date))
		return
	}

	now := v.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	ageDays := int(today.Sub(d).Hours() / 24)

	switch {
	case ageDays < 0:
		res.Errors = append(res.Errors, fmt.Sprintf("date %s is in the future", date))
	case ageDays > maxAgeDays:
		res.Errors = append(res.Errors, fmt.Sprintf("date %s is more than %d days in the past", date, maxAgeDays))
	case ageDays >= ageWarningDays:
		res.Warnings = append(res.Warnings, fmt.Sprintf("date %s is close to the %d-day limit", date, maxAgeDays))
	}
}

func (v *Validator) checkTime(value string, res *Result) {
	if _, err := time.Parse("15:04:05", value); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("time %q is not a valid HH:MM:SS value", value))
	}
}

// checkAccountRef flags format problems as warnings only: a dubious account
// reference should not discard an otherwise good transaction.
func (v *Validator) checkAccountRef(ref *string, res *Result) {
	if ref == nil {
		return
	}
	r := *ref

	if len(r) < 4 || len(r) > 20 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("account reference %q has unexpected length", r))
		return
	}

	digits := 0
	uniform := true
	var first byte
	for i := 0; i < len(r); i++ {
		c := r[i]
		if c < '0' || c > '9' {
			continue
		}
		if digits == 0 {
			first = c
		} else if c != first {
			uniform = false
		}
		digits++
	}

	if digits < 2 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("account reference %q has fewer than 2 digits", r))
		return
	}
	if uniform {
		res.Warnings = append(res.Warnings, fmt.Sprintf("account reference %q is a single repeated digit", r))
	}
}

func (v *Validator) checkConfidence(c float64, res *Result) {
	if c < 0 || c > 1 {
		res.Errors = append(res.Errors, fmt.Sprintf("confidence %.2f is outside [0, 1]", c))
		return
	}
	if c < minConfidence {
		res.Warnings = append(res.Warnings, fmt.Sprintf("confidence %.2f is below %.1f", c, minConfidence))
	}
}
