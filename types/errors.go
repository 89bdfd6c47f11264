package types

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace groups every error raised by the dispute core.
const Codespace = "sox"

var (
	// ErrShapeMismatch covers operand, block-size, circuit-length and trace-length
	// inconsistencies. Always fatal: the input is malformed, never retried.
	ErrShapeMismatch = errorsmod.Register(Codespace, 2, "shape mismatch")

	// ErrInvalidVersion is returned for unknown instruction sets and opcodes.
	ErrInvalidVersion = errorsmod.Register(Codespace, 3, "invalid instruction set version")

	// ErrCommitmentMismatch means an opening does not match its commitment.
	ErrCommitmentMismatch = errorsmod.Register(Codespace, 4, "commitment mismatch")

	// ErrProofVerificationFailed is raised by the reference verifier. The
	// assembler returning a bundle that fails it is a bug in this module.
	ErrProofVerificationFailed = errorsmod.Register(Codespace, 5, "proof verification failed")

	ErrIndexOutOfBounds  = errorsmod.Register(Codespace, 6, "index out of bounds")
	ErrMalformedEncoding = errorsmod.Register(Codespace, 7, "malformed encoding")
)

// NewShapeMismatchError reports an expected vs. actual size disagreement.
func NewShapeMismatchError(what string, expected, actual int) error {
	return errorsmod.Wrapf(ErrShapeMismatch, "%s: expected %d, got %d", what, expected, actual)
}

// NewIndexOutOfBoundsError returns an index-out-of-bounds error with details.
func NewIndexOutOfBoundsError(index, length int) error {
	return errorsmod.Wrapf(ErrIndexOutOfBounds, "index %d not in [0, %d)", index, length)
}
