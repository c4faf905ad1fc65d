package beacon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"github.com/kysee/randbeacon/xerrors"
)

// RandomnessSize is the length in bytes of the derived randomness (I1).
const RandomnessSize = 32

// SignatureSize is the length in bytes of a compressed BLS12-381 G2 signature.
const SignatureSize = 96

// Random is one beacon round: a threshold BLS signature over the previous
// round's signature, chained from round 1's group_hash.
//
// PreviousSignature is SignatureSize (96) bytes for every round except
// round 1, where the chain has no prior signature and the wire payload
// instead carries the chain's HashSize (32) byte group_hash unpadded.
type Random struct {
	Round             uint64
	Randomness        [RandomnessSize]byte
	Signature         [SignatureSize]byte
	PreviousSignature []byte
}

type randomWire struct {
	Round             uint64 `json:"round"`
	Randomness        string `json:"randomness"`
	Signature         string `json:"signature"`
	PreviousSignature string `json:"previous_signature"`
}

// DecodeRandom parses a GET /public/{round} or /public/latest JSON payload,
// applying hex/JSON decode checks and post-decode structural checks, and
// enforcing I1 (randomness == sha256(signature)).
func DecodeRandom(data []byte) (*Random, error) {
	var w randomWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, xerrors.JSONParseWrap(err, "decode round payload")
	}

	randomness, err := decodeHexField(w.Randomness, "randomness")
	if err != nil {
		return nil, err
	}
	if len(randomness) != RandomnessSize {
		return nil, xerrors.Invalidf("randomness has length %d, want %d", len(randomness), RandomnessSize)
	}

	signature, err := decodeHexField(w.Signature, "signature")
	if err != nil {
		return nil, err
	}
	if len(signature) != SignatureSize {
		return nil, xerrors.Invalidf("signature has length %d, want %d", len(signature), SignatureSize)
	}

	prevSignature, err := decodeHexField(w.PreviousSignature, "previous_signature")
	if err != nil {
		return nil, err
	}
	wantPrevLen := SignatureSize
	if w.Round == 1 {
		wantPrevLen = HashSize
	}
	if len(prevSignature) != wantPrevLen {
		return nil, xerrors.Invalidf("previous_signature has length %d, want %d", len(prevSignature), wantPrevLen)
	}

	r := &Random{Round: w.Round, PreviousSignature: prevSignature}
	copy(r.Randomness[:], randomness)
	copy(r.Signature[:], signature)

	sum := sha256.Sum256(r.Signature[:])
	if sum != r.Randomness {
		return nil, xerrors.Invalidf("randomness does not match sha256(signature) for round %d", r.Round)
	}

	return r, nil
}

// String renders the round number and the first 8 bytes of the signature
// as lower-case hex, handy for log lines.
func (r *Random) String() string {
	return "round=" + strconv.FormatUint(r.Round, 10) + " sig=" + hex.EncodeToString(r.Signature[:8]) + "…"
}

// Equal reports whether two rounds carry identical field values. Random
// embeds a variable-length PreviousSignature, so it is not comparable with
// == the way Info is; the pool's boot-time cross-validation (I5) uses this
// instead.
func (r *Random) Equal(other *Random) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Round == other.Round &&
		r.Randomness == other.Randomness &&
		r.Signature == other.Signature &&
		bytes.Equal(r.PreviousSignature, other.PreviousSignature)
}
