package validate

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReason(t *testing.T) {
	assert.Error(t, Reason(""))
	assert.Error(t, Reason("   short   "))
	assert.Error(t, Reason("ремонт"))
	assert.NoError(t, Reason("  track maintenance  "))
	assert.NoError(t, Reason("ремонт пути"))
}

func TestAfter(t *testing.T) {
	start := time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)
	assert.NoError(t, After(start, start.Add(time.Hour)))
	assert.Error(t, After(start, start))
	assert.Error(t, After(start, start.Add(-time.Hour)))
}

func TestErrorsCollectFirstMessage(t *testing.T) {
	errs := Errors{}
	errs.Check("reason", Reason(""))
	errs.Add("reason", "second")
	errs.Check("crossing", RequiredID(0))
	errs.Check("title", Required("x"))

	assert.Equal(t, Errors{"reason": "required", "crossing": "required"}, errs)
	assert.Equal(t, "validation failed: crossing: required; reason: required", errs.Error())

	wrapped := fmt.Errorf("save: %w", errs.Err())
	got, ok := As(wrapped)
	assert.True(t, ok)
	assert.Len(t, got, 2)

	_, ok = As(errors.New("other"))
	assert.False(t, ok)
	assert.NoError(t, Errors{}.Err())
}

func TestOneOf(t *testing.T) {
	assert.NoError(t, OneOf("contract", "contract", "other"))
	assert.EqualError(t, OneOf("memo", "contract", "other"), "must be one of contract, other")
}
