package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrInvalidTransition, "document already reviewed")
	require.True(t, errors.Is(err, ErrInvalidTransition))
	require.False(t, errors.Is(err, ErrMissingComment))
	require.Equal(t, "document already reviewed", err.Message)
	require.Equal(t, http.StatusConflict, err.Status)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	require.Equal(t, ErrInternal.Code, appErr.Code)
	require.EqualError(t, appErr, "internal server error: boom")
}

func TestCauseKeepsSentinelMessage(t *testing.T) {
	err := Cause(ErrOracleUnavailable, fmt.Errorf("context deadline exceeded"))
	require.True(t, errors.Is(err, ErrOracleUnavailable))
	require.Equal(t, ErrOracleUnavailable.Message, err.Message)
	require.EqualError(t, errors.Unwrap(err), "context deadline exceeded")
}
