package ledger

import (
	"errors"
	"fmt"
	"strings"

	interfaces "github.com/HgH7/installment-tracker-2.0/internal/interfaces"
)

var (
	ErrNotFound            = errors.New("customer not found")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrValidation          = errors.New("validation failed")
	ErrStorage             = errors.New("storage failure")

	ErrSnapshotNotFound = interfaces.ErrSnapshotNotFound
	ErrCorruptRecord    = interfaces.ErrCorruptRecord
	ErrNoLedger         = interfaces.ErrNoLedger
)

// ValidationError lists what is wrong with a customer record.
type ValidationError struct {
	Customer string
	Fields   []string // fields that are missing or invalid
	Reasons  []string
}

func (e *ValidationError) Error() string {
	msg := "invalid customer"
	if e.Customer != "" {
		msg += " " + fmt.Sprintf("%q", e.Customer)
	}
	if len(e.Reasons) > 0 {
		msg += ": " + strings.Join(e.Reasons, "; ")
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, field)
	e.Reasons = append(e.Reasons, reason)
}

// storageError tags unexpected backend failures with ErrStorage. Errors the
// caller can act on (corrupt table, unknown snapshot) keep their own identity.
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, ErrCorruptRecord), errors.Is(err, ErrSnapshotNotFound), errors.Is(err, ErrNoLedger):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
}
