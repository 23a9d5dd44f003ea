package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/luxeplan/api/internal/repositories"
)

var (
	// ErrForbidden indicates the actor may not perform the operation on the resource.
	ErrForbidden = errors.New("services: operation not permitted")
	// ErrUnavailable indicates the backing store is temporarily unreachable.
	ErrUnavailable = errors.New("services: storage unavailable")
)

// ValidationError reports invalid input with per-field messages.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	msg := strings.Join(parts, "; ")
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

type validator struct {
	op     string
	fields map[string]string
}

func newValidator(op string) *validator {
	return &validator{op: op}
}

func (v *validator) fail(field, message string) {
	if v.fields == nil {
		v.fields = make(map[string]string)
	}
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = message
	}
}

func (v *validator) check(ok bool, field, message string) {
	if !ok {
		v.fail(field, message)
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Op: v.op, Fields: v.fields}
}

// mapRepositoryError translates repository categorisation into service sentinels. A nil
// sentinel leaves that category unmapped.
func mapRepositoryError(err error, notFound, conflict error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound() && notFound != nil:
			return fmt.Errorf("%w: %v", notFound, err)
		case repoErr.IsConflict() && conflict != nil:
			return fmt.Errorf("%w: %v", conflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}

func isRepositoryNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
