// Package validate holds the field checks applied before anything is sent to the closures API.
package validate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// MinReasonLength is the shortest accepted closure reason, after trimming.
const MinReasonLength = 10

// Errors maps a field name to the first problem found with it.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has a message.
func (e Errors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// Check records err for field when err is non-nil.
func (e Errors) Check(field string, err error) {
	if err != nil {
		e.Add(field, err.Error())
	}
}

// Err returns nil when nothing was recorded.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// As extracts Errors from err.
func As(err error) (Errors, bool) {
	var errs Errors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

func Required(value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("required")
	}
	return nil
}

func RequiredID(id int64) error {
	if id <= 0 {
		return errors.New("required")
	}
	return nil
}

func RequiredTime(t time.Time) error {
	if t.IsZero() {
		return errors.New("required")
	}
	return nil
}

// After checks that end is strictly after start.
func After(start, end time.Time) error {
	if !end.After(start) {
		return errors.New("must be after the start")
	}
	return nil
}

// Reason checks the trimmed closure reason length.
func Reason(reason string) error {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return errors.New("required")
	}
	if len([]rune(trimmed)) < MinReasonLength {
		return fmt.Errorf("must be at least %d characters", MinReasonLength)
	}
	return nil
}

// OneOf checks value against the allowed set.
func OneOf(value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
}
