package errs_test

import (
	"errors"
	"testing"

	"github.com/cuemby/arcflow/pkg/errs"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesKind(t *testing.T) {
	err := errs.New(errs.BadTaskError, "window.New")
	require.True(t, errors.Is(err, errs.BadTaskError))
	require.False(t, errors.Is(err, errs.IOError))
}

func TestWrapUnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := errs.Wrap(errs.IOError, "state.Put", cause)

	require.ErrorIs(t, err, cause)
	require.ErrorIs(t, err, errs.IOError)
	require.Equal(t, errs.IOError, errs.KindOf(err))
}

func TestKindOfUnrelatedError(t *testing.T) {
	require.Equal(t, errs.Kind(""), errs.KindOf(errors.New("plain")))
}
