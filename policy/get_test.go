package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kysee/randbeacon/beacon"
)

var errBoom = errors.New("boom")

type fakeVerifier struct {
	calls  int
	result *beacon.Random
	err    error
}

func (f *fakeVerifier) Verify(ctx context.Context, info *beacon.Info, from, till *beacon.Random) (*beacon.Random, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return till, nil
}

func TestApplyGet_notSecure_advancesWithoutVerify(t *testing.T) {
	v := &fakeVerifier{}
	st := State{Info: &beacon.Info{}, Secure: false}
	fetched := &beacon.Random{Round: 5}

	newSt, result, err := ApplyGet(context.Background(), st, v, fetched)
	require.NoError(t, err)
	require.Equal(t, 0, v.calls)
	require.Same(t, fetched, result)
	require.Equal(t, fetched, newSt.CheckPoint)
}

func TestApplyGet_secure_verifiesAndAdvances(t *testing.T) {
	v := &fakeVerifier{}
	st := State{Info: &beacon.Info{}, Secure: true, CheckPoint: &beacon.Random{Round: 3}}
	fetched := &beacon.Random{Round: 4}

	newSt, result, err := ApplyGet(context.Background(), st, v, fetched)
	require.NoError(t, err)
	require.Equal(t, 1, v.calls)
	require.Equal(t, fetched, result)
	require.Equal(t, uint64(4), newSt.CheckPoint.Round)
}

func TestApplyGet_secure_propagatesVerifyError(t *testing.T) {
	v := &fakeVerifier{err: errBoom}
	st := State{Info: &beacon.Info{}, Secure: true}
	_, _, err := ApplyGet(context.Background(), st, v, &beacon.Random{Round: 1})
	require.ErrorIs(t, err, errBoom)
}

func TestAdvance_monotonic(t *testing.T) {
	lower := &beacon.Random{Round: 1}
	higher := &beacon.Random{Round: 2}

	require.Same(t, higher, advance(lower, higher))
	require.Same(t, higher, advance(higher, lower))
	require.Nil(t, advance(nil, nil))
	require.Same(t, higher, advance(nil, higher))
}
