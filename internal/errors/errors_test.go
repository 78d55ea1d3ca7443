package errors_test

import (
	"fmt"
	"io"
	"testing"

	"codeberg.org/mutker/rampctl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Invalid interval value", f.New(errors.ErrInvalidInterval).Error())
	assert.Equal(t, "custom", f.WithMessage(errors.ErrInternal, "custom").Error())
	assert.Equal(t, "Operation failed: EOF", f.Wrap(errors.ErrOperationFailed, io.EOF).Error())
	assert.Equal(t, "Invalid argument provided: -1", f.WithData(errors.ErrInvalidArgument, -1).Error())
	assert.Equal(t, "unknown_code", f.New(errors.ErrorCode("unknown_code")).Error())
}

func TestWrapUnwrap(t *testing.T) {
	err := errors.New().Wrap(errors.ErrOperationFailed, io.EOF)

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, errors.ErrOperationFailed, err.Code())
}

func TestHasCode(t *testing.T) {
	f := errors.New()
	inner := f.New(errors.ErrInvalidTarget)
	outer := f.Wrap(errors.ErrInvalidConfig, inner)

	assert.True(t, errors.HasCode(outer, errors.ErrInvalidConfig))
	assert.True(t, errors.HasCode(outer, errors.ErrInvalidTarget))
	assert.False(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.False(t, errors.HasCode(io.EOF, errors.ErrInternal))
	assert.False(t, errors.HasCode(nil, errors.ErrInternal))
}

func TestWithMessagePreservesCode(t *testing.T) {
	err := errors.New().WithData(errors.ErrInvalidArgument, "slot").WithMessage("bad slot")

	assert.Equal(t, errors.ErrInvalidArgument, err.Code())
	assert.Equal(t, "bad slot: slot", err.Error())
}

func TestIsMatchesByCode(t *testing.T) {
	f := errors.New()
	err := fmt.Errorf("tick: %w", f.Wrap(errors.ErrTimeout, io.EOF))

	assert.ErrorIs(t, err, f.New(errors.ErrTimeout))
	assert.ErrorIs(t, err, io.EOF)
	assert.NotErrorIs(t, err, f.New(errors.ErrInternal))
	assert.True(t, errors.HasCode(err, errors.ErrTimeout))
}

func TestWithCopiesLeaveOriginalIntact(t *testing.T) {
	base := errors.New().Wrap(errors.ErrOperationFailed, io.EOF)
	_ = base.WithMessage("changed").WithData(3)

	assert.Equal(t, "Operation failed: EOF", base.Error())
	assert.Nil(t, base.GetData())
}
