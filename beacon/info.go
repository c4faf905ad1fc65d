// Package beacon holds the immutable value types exchanged with a drand-style
// randomness beacon endpoint, along with their hex/JSON wire codec.
package beacon

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/kysee/randbeacon/xerrors"
)

// PublicKeySize is the length in bytes of a compressed BLS12-381 G1 public key.
const PublicKeySize = 48

// HashSize is the length in bytes of the chain and group hash identifiers.
const HashSize = 32

// Info describes the immutable group parameters of a beacon chain, as
// returned by GET /info.
type Info struct {
	PublicKey   [PublicKeySize]byte
	Period      time.Duration
	GenesisTime time.Time
	Hash        [HashSize]byte
	GroupHash   [HashSize]byte
}

type infoWire struct {
	PublicKey   string `json:"public_key"`
	Period      int64  `json:"period"`
	GenesisTime int64  `json:"genesis_time"`
	Hash        string `json:"hash"`
	GroupHash   string `json:"groupHash"`
}

// DecodeInfo parses a GET /info JSON payload, applying both hex/JSON decode
// checks and post-decode structural checks (§4.1).
func DecodeInfo(data []byte) (*Info, error) {
	var w infoWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, xerrors.JSONParseWrap(err, "decode info payload")
	}

	pk, err := decodeHexField(w.PublicKey, "public_key")
	if err != nil {
		return nil, err
	}
	if len(pk) != PublicKeySize {
		return nil, xerrors.Invalidf("public_key has length %d, want %d", len(pk), PublicKeySize)
	}

	hash, err := decodeHexField(w.Hash, "hash")
	if err != nil {
		return nil, err
	}
	if len(hash) != HashSize {
		return nil, xerrors.Invalidf("hash has length %d, want %d", len(hash), HashSize)
	}

	groupHash, err := decodeHexField(w.GroupHash, "groupHash")
	if err != nil {
		return nil, err
	}
	if len(groupHash) != HashSize {
		return nil, xerrors.Invalidf("groupHash has length %d, want %d", len(groupHash), HashSize)
	}

	info := &Info{
		Period:      time.Duration(w.Period) * time.Second,
		GenesisTime: time.Unix(w.GenesisTime, 0).UTC(),
	}
	copy(info.PublicKey[:], pk)
	copy(info.Hash[:], hash)
	copy(info.GroupHash[:], groupHash)
	return info, nil
}

// Equal reports whether two Info values describe the same chain, comparing
// exactly the two fields the pool cross-validates at boot (I5): public_key
// and hash.
func (i *Info) Equal(other *Info) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.PublicKey == other.PublicKey && i.Hash == other.Hash
}

func decodeHexField(s, field string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, xerrors.HexParseWrap(err, "decode %s", field)
	}
	return b, nil
}
