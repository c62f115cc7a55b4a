package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/theirongolddev/restock/internal/reconcile"
	"github.com/theirongolddev/restock/internal/store"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrReceiptAlreadyProcessed is returned when a receipt is reconciled twice.
	ErrReceiptAlreadyProcessed = reconcile.ErrAlreadyProcessed
	// ErrNotFound is returned for unknown item, receipt or shopping entry ids.
	ErrNotFound = store.ErrNotFound
	// ErrConcurrencyConflict is returned once revision conflicts outlast the retry budget.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// ValidationError describes malformed input. Fields maps a field path to the
// rule it broke.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// check runs struct tag validation and converts failures to *ValidationError.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating input: %w", err)
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out.Fields[fieldPath(fe.Namespace())] = rule
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
