// Package mixer runs the off-ledger side of the mix jobs: it picks pending
// jobs whose election voting phase is over, mixes the ballots, publishes the
// commitment roots and the tally, and reports the job outcome back to the
// chain.
package mixer

import (
	"context"
	"slices"

	"github.com/vocdoni/mixvote/types"
)

// Mixer transforms the ballots of an election into their mixed form. The
// output must not reveal the input order.
type Mixer interface {
	Mix(ctx context.Context, electionID types.ElectionID, ballots [][]byte) ([][]byte, error)
}

// ReverseMixer is a development mixer that returns the ballots in reverse
// order. It provides no privacy.
type ReverseMixer struct{}

// Mix implements Mixer.
func (ReverseMixer) Mix(ctx context.Context, _ types.ElectionID, ballots [][]byte) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]byte, len(ballots))
	for i, b := range ballots {
		out[i] = slices.Clone(b)
	}
	slices.Reverse(out)
	return out, nil
}

// MixerFunc adapts a function to the Mixer interface.
type MixerFunc func(ctx context.Context, electionID types.ElectionID, ballots [][]byte) ([][]byte, error)

// Mix implements Mixer.
func (f MixerFunc) Mix(ctx context.Context, electionID types.ElectionID, ballots [][]byte) ([][]byte, error) {
	return f(ctx, electionID, ballots)
}
