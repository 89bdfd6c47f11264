package client

import (
	"context"

	errorsmod "cosmossdk.io/errors"

	"sox-verified-go/accumulator"
	"sox-verified-go/primitives"
	"sox-verified-go/types"
)

// PrefixOracle answers bisection challenges. Each call is independent; the
// oracle keeps no state about the game.
type PrefixOracle interface {
	PrefixDigest(k int) (types.Hash, error)
}

// PrefixFunc adapts a function to PrefixOracle.
type PrefixFunc func(k int) (types.Hash, error)

func (f PrefixFunc) PrefixDigest(k int) (types.Hash, error) { return f(k) }

// Transcript is a hash chain over the rounds played, so two observers can
// compare a whole game with one digest.
type Transcript struct {
	Tip    types.Hash
	Length uint64
}

// Append extends the chain with one round.
func (t *Transcript) Append(k int, challenger, responder types.Hash) {
	t.Tip = accumulator.Keccak256(t.Tip[:], primitives.Uint(uint64(k)), challenger[:], responder[:])
	t.Length++
}

// Result is where a bisection game ended.
type Result struct {
	// Gate is the first trace entry the parties disagree on. Both agree on
	// the digest of trace[:Gate].
	Gate       int
	// Prefix is that agreed digest, the value a dispute proof for Gate is
	// checked against.
	Prefix     types.Hash
	Rounds     int
	Transcript Transcript
}

// Bisect locates the first disagreeing trace entry between two oracles over a
// trace of size entries. The empty prefix always agrees; the full traces must
// not, or there is nothing to dispute. Each round halves [lo, hi) with lo
// agreed and hi disputed, so a game takes at most ceil(log2(size)) rounds.
func Bisect(ctx context.Context, size int, challenger, responder PrefixOracle, opts ...Option) (Result, error) {
	o := newOptions(opts)
	var res Result
	if size < 1 {
		return res, types.NewIndexOutOfBoundsError(size, 1)
	}

	disagree := func(k int) (types.Hash, bool, error) {
		c, err := challenger.PrefixDigest(k)
		if err != nil {
			return c, false, errorsmod.Wrapf(err, "challenger prefix %d", k)
		}
		r, err := responder.PrefixDigest(k)
		if err != nil {
			return c, false, errorsmod.Wrapf(err, "responder prefix %d", k)
		}
		res.Transcript.Append(k, c, r)
		return c, !types.HashEq(c, r), nil
	}

	_, differ, err := disagree(size)
	if err != nil {
		return res, err
	}
	if !differ {
		return res, errorsmod.Wrap(types.ErrProofVerificationFailed, "traces agree, nothing to dispute")
	}

	lo, hi := 0, size
	for hi-lo > 1 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		mid := lo + (hi-lo)/2
		digest, differ, err := disagree(mid)
		if err != nil {
			return res, err
		}
		res.Rounds++
		if differ {
			hi = mid
		} else {
			lo, res.Prefix = mid, digest
		}
		o.log.Debug("bisection round", "round", res.Rounds, "lo", lo, "hi", hi)
	}

	// The empty prefix is agreed without a round.
	if lo == 0 {
		if res.Prefix, err = challenger.PrefixDigest(0); err != nil {
			return res, errorsmod.Wrap(err, "challenger prefix 0")
		}
	}
	res.Gate = lo
	o.metrics.ObserveBisection(res.Rounds)
	o.log.Info("bisection settled", "gate", lo, "rounds", res.Rounds, "transcript", types.HexHash(res.Transcript.Tip).String())
	return res, nil
}
