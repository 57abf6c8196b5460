package prover

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"ZKAttest-Chain/internal/attestation"
	xerrors "ZKAttest-Chain/internal/errors"
)

func TestMockProverRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewMockProver("")
	keys, err := p.Setup(ctx, Program{ID: "btc-holdings-v1", Kind: attestation.KindBTCHoldings})
	require.NoError(t, err)

	again, err := p.Setup(ctx, Program{ID: "btc-holdings-v1"})
	require.NoError(t, err)
	require.Equal(t, keys.Verifying.Hash, again.Verifying.Hash)

	publicValues := attestation.Encode(attestation.CollateralRecord{ICR: 200, CollateralUSD: 30000})
	proof, err := p.Prove(ctx, keys.Proving, publicValues)
	require.NoError(t, err)
	require.Equal(t, publicValues, proof.PublicValues)
	require.Equal(t, "mock", proof.System)

	ok, err := p.Verify(ctx, proof, keys.Verifying)
	require.NoError(t, err)
	require.True(t, ok)

	proof.PublicValues[0] ^= 0xff
	ok, err = p.Verify(ctx, proof, keys.Verifying)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMockProverRejectsForeignKey(t *testing.T) {
	ctx := context.Background()
	p := NewMockProver("groth16")
	a, err := p.Setup(ctx, Program{ID: "a"})
	require.NoError(t, err)
	b, err := p.Setup(ctx, Program{ID: "b"})
	require.NoError(t, err)

	proof, err := p.Prove(ctx, a.Proving, []byte{1, 2, 3})
	require.NoError(t, err)
	ok, err := p.Verify(ctx, proof, b.Verifying)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMockProverErrors(t *testing.T) {
	p := NewMockProver("")
	_, err := p.Setup(context.Background(), Program{})
	require.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))

	_, err = p.Prove(context.Background(), ProvingKey{Program: "x"}, nil)
	require.True(t, errors.Is(err, ErrGenerationFailed))
	require.False(t, xerrors.RetryableError(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Prove(ctx, ProvingKey{Program: "x", Handle: []byte{1}}, nil)
	require.True(t, errors.Is(err, ErrGenerationFailed))
	require.True(t, xerrors.RetryableError(err))
}
