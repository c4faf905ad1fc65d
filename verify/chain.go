// Package verify implements the pure BLS12-381 chain-link verification at
// the heart of a drand-style beacon: given a group public key, a trusted
// previous signature, and a candidate round, it asserts both the chain link
// (I3) and the threshold BLS signature (I2).
package verify

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"

	"github.com/kysee/randbeacon/beacon"
	"github.com/kysee/randbeacon/xerrors"
)

// Domain is the RFC 9380 hash-to-curve domain separation tag used for
// chained drand-style beacon signatures.
const Domain = "BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_"

// Chain asserts that round is a valid continuation of prevSignature under
// publicKey: the chain link holds (round.PreviousSignature == prevSignature)
// and the BLS signature over sha256(prevSignature ‖ be64(round.Round))
// verifies against publicKey. prevSignature is SignatureSize (96) bytes for
// every round except round 1, where it is the chain's raw, unpadded
// HashSize (32) byte group_hash. It is pure: no I/O, no shared state.
func Chain(publicKey [beacon.PublicKeySize]byte, prevSignature []byte, round *beacon.Random) (bool, error) {
	if !bytes.Equal(prevSignature, round.PreviousSignature) {
		return false, xerrors.NotSecuref("mismatch chain: round %d previous_signature does not match trusted signature", round.Round)
	}

	var pk bls12381.G1Affine
	if _, err := pk.SetBytes(publicKey[:]); err != nil {
		return false, xerrors.NotSecureWrap(err, "decompress public key")
	}

	message, err := digest(prevSignature, round.Round)
	if err != nil {
		return false, err
	}

	var sig bls12381.G2Affine
	if _, err := sig.SetBytes(round.Signature[:]); err != nil {
		return false, xerrors.NotSecureWrap(err, "decompress round %d signature", round.Round)
	}

	_, _, g1Gen, _ := bls12381.Generators()
	var negG1 bls12381.G1Affine
	negG1.Neg(&g1Gen)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{negG1, pk},
		[]bls12381.G2Affine{sig, message},
	)
	if err != nil {
		return false, xerrors.NotSecureWrap(err, "pairing check round %d", round.Round)
	}
	if !ok {
		return false, xerrors.NotSecuref("BLS verification failed for round %d", round.Round)
	}
	return true, nil
}

// digest hashes sha256(prevSignature ‖ be64(round)) to a point on G2 via the
// RFC 9380 expand_message_xmd/SSWU machinery, as specified in §4.2 step 3.
func digest(prevSignature []byte, round uint64) (bls12381.G2Affine, error) {
	h := sha256.New()
	h.Write(prevSignature)
	var roundBE [8]byte
	binary.BigEndian.PutUint64(roundBE[:], round)
	h.Write(roundBE[:])
	msgHash := h.Sum(nil)

	point, err := bls12381.HashToG2(msgHash, []byte(Domain))
	if err != nil {
		return bls12381.G2Affine{}, xerrors.NotSecureWrap(err, "hash to curve for round %d", round)
	}
	return point, nil
}
