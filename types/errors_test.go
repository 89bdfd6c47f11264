package types

import (
	"errors"
	"testing"

	errorsmod "cosmossdk.io/errors"
	"github.com/stretchr/testify/require"
)

func TestShapeMismatchErrorFormatting(t *testing.T) {
	err := NewShapeMismatchError("operand 1", 32, 31)
	require.ErrorIs(t, err, ErrShapeMismatch)
	require.Contains(t, err.Error(), "operand 1: expected 32, got 31")
}

func TestIndexOutOfBoundsError(t *testing.T) {
	err := NewIndexOutOfBoundsError(8, 5)
	require.ErrorIs(t, err, ErrIndexOutOfBounds)
	require.Contains(t, err.Error(), "index 8 not in [0, 5)")
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []*errorsmod.Error{
		ErrShapeMismatch,
		ErrInvalidVersion,
		ErrCommitmentMismatch,
		ErrProofVerificationFailed,
		ErrIndexOutOfBounds,
		ErrMalformedEncoding,
	}
	seen := make(map[uint32]bool)
	for _, s := range sentinels {
		require.NotEmpty(t, s.Error())
		require.Equal(t, Codespace, s.Codespace())
		require.False(t, seen[s.ABCICode()], "duplicate code %d", s.ABCICode())
		seen[s.ABCICode()] = true
	}
}

func TestWrappedErrorsKeepIdentity(t *testing.T) {
	err := errorsmod.Wrapf(ErrCommitmentMismatch, "opening for %s", "exchange-1")
	require.True(t, errors.Is(err, ErrCommitmentMismatch))
	require.False(t, errors.Is(err, ErrShapeMismatch))
}
