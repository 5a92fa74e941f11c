package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := map[Kind]int{
		KindInvalidRequest: 400,
		KindUnauthorized:   401,
		KindNotFound:       404,
		KindUpstream:       502,
		KindInternal:       500,
	}
	for kind, want := range cases {
		err := New(kind, "boom")
		require.Equal(t, want, err.StatusCode())
	}
}

func TestWrapUnwrapsUnderlyingError(t *testing.T) {
	underlying := errors.New("db timeout")
	err := Wrap(KindUpstream, "fetch failed", underlying)
	require.ErrorIs(t, err, underlying)
	require.Contains(t, err.Error(), "db timeout")
	require.Contains(t, err.Error(), "fetch failed")
}

func TestNewErrorWithoutWrappedErr(t *testing.T) {
	err := New(KindNotFound, "missing tenant")
	require.Equal(t, "not_found: missing tenant", err.Error())
	require.Nil(t, err.Unwrap())
}
