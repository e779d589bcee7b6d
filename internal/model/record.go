package model

import (
	"strings"
	"time"
)

// Field identifies one of the six confirmation fields. The declaration order
// is the processing order and must stay stable so runs and logs are
// reproducible.
type Field int

const (
	FieldCurrency Field = iota
	FieldSettlementAmount
	FieldBuySell
	FieldISIN
	FieldSettlementDate
	FieldSSI
)

// AllFields returns the fields in their stable processing order.
func AllFields() []Field {
	return []Field{
		FieldCurrency,
		FieldSettlementAmount,
		FieldBuySell,
		FieldISIN,
		FieldSettlementDate,
		FieldSSI,
	}
}

func (f Field) String() string {
	switch f {
	case FieldCurrency:
		return "currency"
	case FieldSettlementAmount:
		return "settlement_amount"
	case FieldBuySell:
		return "buy_sell"
	case FieldISIN:
		return "isin"
	case FieldSettlementDate:
		return "settlement_date"
	case FieldSSI:
		return "SSI"
	default:
		return "unknown"
	}
}

// ValidationStatus is the recomputed match verdict for one record-field pair.
type ValidationStatus string

const (
	// ValidationMatched means both normalized values are present and equal.
	ValidationMatched ValidationStatus = "matched"
	// ValidationUnmatched covers every other case, including both absent.
	ValidationUnmatched ValidationStatus = "unmatched"
	// ValidationPending means no validation pass has run for this pair yet.
	ValidationPending ValidationStatus = ""
)

// FieldState holds the three columns backing one field of a record. Source is
// the raw reference value supplied upstream; Extracted is the model's answer,
// written at most once; Status is overwritten by every validation pass.
type FieldState struct {
	Source    *string
	Extracted *string
	Status    ValidationStatus
}

// Record is one trade confirmation, built once at the store boundary with
// typed members for each field. Numeric source columns are canonicalized to
// text by the store before the Record is constructed.
type Record struct {
	ID           int64
	CreationDate time.Time

	Currency         FieldState
	SettlementAmount FieldState
	BuySell          FieldState
	ISIN             FieldState
	SettlementDate   FieldState
	SSI              FieldState
}

// Field returns the state for the addressed field.
func (r *Record) Field(f Field) *FieldState {
	switch f {
	case FieldCurrency:
		return &r.Currency
	case FieldSettlementAmount:
		return &r.SettlementAmount
	case FieldBuySell:
		return &r.BuySell
	case FieldISIN:
		return &r.ISIN
	case FieldSettlementDate:
		return &r.SettlementDate
	case FieldSSI:
		return &r.SSI
	default:
		return nil
	}
}

// HasValue reports whether a raw column value is present and non-blank.
func HasValue(v *string) bool {
	return v != nil && strings.TrimSpace(*v) != ""
}

// SourceRow carries the source columns of a new record at import time. The
// settlement amount is numeric upstream, matching the store's REAL column.
type SourceRow struct {
	Currency         *string
	SettlementAmount *float64
	BuySell          *string
	ISIN             *string
	SettlementDate   *string
	SSI              *string
}
