package policy

import (
	"context"

	"github.com/kysee/randbeacon/beacon"
)

// ApplyBootPhase2 establishes CheckPoint at boot time (§4.5's boot column),
// branching on the four (determinism, secure) modes. latest is the round
// already fetched by Endpoint.BootPhase1 on the primary endpoint.
func ApplyBootPhase2(ctx context.Context, st State, verifier Verifier, latest *beacon.Random) (State, error) {
	switch {
	case !st.Determinism && !st.Secure:
		// no-determinism: no checkpoint is established.
		st.CheckPoint = nil
		return st, nil

	case !st.Determinism && st.Secure:
		// assumed-determinism: trust the latest round outright.
		st.CheckPoint = latest
		return st, nil

	default:
		// determinism is required, whether or not secure is also set
		// (reestablish-determinism when CheckPoint is absent, continued-determinism
		// when it is already present — both sweep-verify up to latest).
		verified, err := verifier.Verify(ctx, st.Info, st.CheckPoint, latest)
		if err != nil {
			return st, err
		}
		st.CheckPoint = verified
		return st, nil
	}
}
