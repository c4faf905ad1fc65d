// Package policy implements the boot/get state machine (C5): the single
// place where a client's checkpoint advances, decided purely by the two
// boolean axes determinism and secure (spec.md §4.5).
package policy

import (
	"context"

	"github.com/kysee/randbeacon/beacon"
)

// State is the per-client state the pool owns and clones into each racing
// task; the winner's State replaces the pool's under one lock acquisition
// (spec.md §9's explicit "do not share mutable State across tasks" note).
type State struct {
	Info        *beacon.Info
	CheckPoint  *beacon.Random
	Determinism bool
	Secure      bool
	MaxConns    int
}

// Clone returns a shallow copy of st; Info and CheckPoint are immutable once
// set so sharing the pointers across the copy is safe.
func (st State) Clone() State {
	return st
}

// Verifier sweep-verifies a chain segment from (exclusive) to till
// (inclusive), fetching any intermediate rounds it needs. from == nil means
// "from the start of the chain" (round 1, trust-anchored on info.GroupHash).
// It implements C3's Endpoint.Verify from the policy engine's point of view.
type Verifier interface {
	Verify(ctx context.Context, info *beacon.Info, from, till *beacon.Random) (*beacon.Random, error)
}
