package attestation

import (
	"crypto/sha256"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func utxoRequest(amount uint64) UTXORequest {
	return UTXORequest{
		TransactionID: hexBytes(0x0f, 32),
		Amount:        amount,
		OwnerPubKey:   "03" + hexBytes(0x22, 32),
	}
}

func TestAttestHoldingsWorkedExample(t *testing.T) {
	engine := NewEngine(NewValidator(nil), Codec{})
	result, err := engine.Attest(Request{
		Kind: KindBTCHoldings,
		Holdings: &HoldingsRequest{
			UTXOs:          []UTXORequest{utxoRequest(150000), utxoRequest(850000)},
			DeclaredTotal:  1000000,
			OrganizationID: "org",
		},
	})
	require.NoError(t, err)

	record := result.Record.(HoldingsRecord)
	require.Equal(t, uint64(1000000), record.TotalBTC)
	require.Equal(t, uint64(1000000), record.TotalPutValue)
	require.Equal(t, uint64(1000000), record.TotalCallValue)
	require.Equal(t, sha256.Sum256([]byte("org")), record.OrgHash)
	require.Equal(t, Encode(record), result.Encoded)
}

func TestAttestHoldingsConservation(t *testing.T) {
	engine := NewEngine(NewValidator(nil), Codec{})

	_, err := engine.Attest(Request{
		Kind: KindBTCHoldings,
		Holdings: &HoldingsRequest{
			UTXOs:         []UTXORequest{utxoRequest(150000), utxoRequest(850000)},
			DeclaredTotal: 999999,
		},
	})
	require.True(t, errors.Is(err, ErrTotalMismatch))

	_, err = engine.Attest(Request{
		Kind: KindBTCHoldings,
		Holdings: &HoldingsRequest{
			UTXOs:         []UTXORequest{utxoRequest(math.MaxUint64), utxoRequest(1)},
			DeclaredTotal: 0,
		},
	})
	require.True(t, errors.Is(err, ErrArithmeticOverflow))

	result, err := engine.Attest(Request{Kind: KindBTCHoldings, Holdings: &HoldingsRequest{}})
	require.NoError(t, err)
	require.Zero(t, result.Record.(HoldingsRecord).TotalBTC)
}

func TestAttestHoldingsAuxiliaryOverrides(t *testing.T) {
	put, call := uint64(7), uint64(9)
	record, err := AssembleHoldings(HoldingsInput{
		UTXOs:         []UTXO{{Amount: 5}},
		DeclaredTotal: 5,
		PutValue:      &put,
		CallValue:     &call,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(5), record.TotalBTC)
	require.Equal(t, uint64(7), record.TotalPutValue)
	require.Equal(t, uint64(9), record.TotalCallValue)
}

func TestAttestTransactionIdentityBinding(t *testing.T) {
	engine := NewEngine(NewValidator(testPolicies()), Codec{})
	request := func(sender string) Request {
		return Request{Kind: KindDogeTx, Transaction: &TransactionRequest{
			TxHash:           hexBytes(0x5a, 32),
			RecipientAddress: dogeRecipient,
			SenderAddress:    sender,
			OwnerAddress:     "DOwnerAddress",
			Amount:           42,
		}}
	}

	a, err := engine.Attest(request("DSenderA"))
	require.NoError(t, err)
	b, err := engine.Attest(request("DSenderB"))
	require.NoError(t, err)
	again, err := engine.Attest(request("DSenderA"))
	require.NoError(t, err)

	ra, rb := a.Record.(TransactionRecord), b.Record.(TransactionRecord)
	require.NotEqual(t, ra.SenderHash, rb.SenderHash)
	require.Equal(t, a.Encoded, again.Encoded)
	require.Equal(t, sha256.Sum256([]byte("DSenderA")), ra.SenderHash)
	require.Equal(t, sha256.Sum256([]byte("DOwnerAddress")), ra.Owner)
	require.Equal(t, byte(0x5a), ra.TxHash[0])
	require.Equal(t, uint64(42), ra.TotalAmount)
	require.Equal(t, KindDogeTx, a.Kind)
}

func TestAttestXRPTransactionKeepsAccountID(t *testing.T) {
	engine := NewEngine(NewValidator(testPolicies()), Codec{})
	result, err := engine.Attest(Request{Kind: KindXRPTx, Transaction: &TransactionRequest{
		TxHash:           "0x" + hexBytes(0x01, 32),
		RecipientAddress: xrpRecipient,
		SenderAddress:    "rSender",
		OwnerAddress:     xrpOwner,
		Amount:           1,
	}})
	require.NoError(t, err)

	record := result.Record.(TransactionRecord)
	id, ok := AccountIDFromOwnerField(record.Owner)
	require.True(t, ok)
	require.Equal(t, xrpOwner, EncodeLedgerAddress(id))
	require.Equal(t, xrpOwner, RecordFields(record)["owner_address"])
}

func TestAttestCollateralKinds(t *testing.T) {
	engine := NewEngine(nil, Codec{})
	price := uint32(300)
	req := &CollateralRequest{CollateralUnits: 100, DebtUnits: 15000, PriceUnits: &price, MinimumRatio: 150}

	result, err := engine.Attest(Request{Kind: KindCollateral, Collateral: req})
	require.NoError(t, err)
	require.Equal(t, CollateralRecord{ICR: 200, CollateralUSD: 30000}, result.Record)

	result, err = engine.Attest(Request{Kind: KindLiquidation, Collateral: req})
	require.NoError(t, err)
	require.Equal(t, LiquidationRecord{Threshold: 20000}, result.Record)

	result, err = engine.Attest(Request{Kind: KindLoanToValue, Collateral: req})
	require.NoError(t, err)
	require.Equal(t, LoanToValueRecord{LTVPercent: 50}, result.Record)

	bundle, err := engine.AttestCollateralBundle(*req)
	require.NoError(t, err)
	require.Len(t, bundle, 3)
	require.Equal(t, KindCollateral, bundle[0].Kind)
	require.Equal(t, KindLiquidation, bundle[1].Kind)
	require.Equal(t, KindLoanToValue, bundle[2].Kind)
}

func TestAttestMissingPayload(t *testing.T) {
	engine := NewEngine(NewValidator(testPolicies()), Codec{})

	_, err := engine.Attest(Request{Kind: KindCollateral})
	require.Equal(t, "collateral", FieldOf(err))

	_, err = engine.Attest(Request{Kind: KindBTCTx})
	require.Equal(t, "transaction", FieldOf(err))

	_, err = engine.Attest(Request{Kind: "eth_tx"})
	require.Equal(t, "kind", FieldOf(err))
	require.True(t, IsValidationError(err))
}

func TestAttestBalanceWithABICodec(t *testing.T) {
	engine := NewEngine(nil, Codec{Scheme: SchemeABI})
	result, err := engine.Attest(Request{Kind: KindXRPBalance, Balance: &BalanceRequest{Address: xrpOwner, Amount: 77}})
	require.NoError(t, err)

	decoded, err := engine.Codec().Decode(KindXRPBalance, result.Encoded)
	require.NoError(t, err)
	require.Equal(t, BalanceRecord{TotalAmount: 77, Address: xrpOwner}, decoded)
}
