package attestation

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomDigest(rng *rand.Rand) [DigestLength]byte {
	var out [DigestLength]byte
	for i := range out {
		out[i] = byte(rng.UintN(256))
	}
	return out
}

func randomRecords(rng *rand.Rand) []Record {
	var id [AccountIDLength]byte
	for i := range id {
		id[i] = byte(rng.UintN(256))
	}
	return []Record{
		CollateralRecord{ICR: rng.Uint32(), CollateralUSD: rng.Uint32()},
		LiquidationRecord{Threshold: rng.Uint32()},
		LoanToValueRecord{LTVPercent: rng.Uint32()},
		HoldingsRecord{TotalBTC: rng.Uint64(), TotalPutValue: rng.Uint64(), TotalCallValue: rng.Uint64(), OrgHash: randomDigest(rng)},
		TransactionRecord{TxKind: KindBTCTx, TotalAmount: rng.Uint64(), SenderHash: randomDigest(rng), Owner: randomDigest(rng), TxHash: randomDigest(rng)},
		TransactionRecord{TxKind: KindDogeTx, TotalAmount: rng.Uint64(), SenderHash: randomDigest(rng), Owner: randomDigest(rng), TxHash: randomDigest(rng)},
		TransactionRecord{TxKind: KindXRPTx, TotalAmount: rng.Uint64(), SenderHash: randomDigest(rng), Owner: OwnerAccountField(id), TxHash: randomDigest(rng)},
		BalanceRecord{TotalAmount: rng.Uint64(), Address: EncodeLedgerAddress(id)},
	}
}

func TestPackedRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 200; i++ {
		for _, record := range randomRecords(rng) {
			encoded := Encode(record)
			decoded, err := Decode(record.Kind(), encoded)
			require.NoError(t, err)
			require.Equal(t, record, decoded)
			require.Equal(t, encoded, Encode(decoded))
		}
	}
}

func TestPackedSizes(t *testing.T) {
	require.Len(t, Encode(CollateralRecord{}), 8)
	require.Len(t, Encode(LiquidationRecord{}), 4)
	require.Len(t, Encode(LoanToValueRecord{}), 4)
	require.Len(t, Encode(HoldingsRecord{}), 56)
	require.Len(t, Encode(TransactionRecord{TxKind: KindBTCTx}), 104)
	require.Len(t, Encode(BalanceRecord{Address: "rabc"}), 14)
}

func TestPackedLayoutBigEndian(t *testing.T) {
	encoded := Encode(CollateralRecord{ICR: 0x01020304, CollateralUSD: 0x0a0b0c0d})
	require.Equal(t, []byte{1, 2, 3, 4, 0x0a, 0x0b, 0x0c, 0x0d}, encoded)

	encoded = Encode(BalanceRecord{TotalAmount: 1, Address: "ab"})
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 2, 'a', 'b'}, encoded)
}

func TestDecodeRejectsTruncatedAndOverLength(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for _, record := range randomRecords(rng) {
		encoded := Encode(record)

		_, err := Decode(record.Kind(), encoded[:len(encoded)-1])
		require.True(t, errors.Is(err, ErrDecode), record.Kind())

		_, err = Decode(record.Kind(), append(append([]byte{}, encoded...), 0))
		require.True(t, errors.Is(err, ErrDecode), record.Kind())
	}

	_, err := Decode(KindXRPBalance, []byte{0, 0, 0})
	require.True(t, errors.Is(err, ErrDecode))

	_, err = Decode(Kind("unknown"), []byte{})
	require.True(t, errors.Is(err, ErrDecode))
}

func TestDecodeRejectsOwnerPadding(t *testing.T) {
	record := TransactionRecord{TxKind: KindXRPTx, TotalAmount: 9}
	encoded := Encode(record)
	_, err := Decode(KindXRPTx, encoded)
	require.NoError(t, err)

	encoded[8+DigestLength+AccountIDLength] = 1
	_, err = Decode(KindXRPTx, encoded)
	require.True(t, errors.Is(err, ErrDecode))

	// 哈希型 owner 字段不限制补位
	_, err = Decode(KindDogeTx, encoded)
	require.NoError(t, err)
}

func TestDecodeRejectsInvalidUTF8Address(t *testing.T) {
	encoded := Encode(BalanceRecord{TotalAmount: 1, Address: "ab"})
	encoded[len(encoded)-1] = 0xff
	_, err := Decode(KindXRPBalance, encoded)
	require.True(t, errors.Is(err, ErrDecode))
}

func TestABIRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 17))
	for i := 0; i < 50; i++ {
		for _, record := range randomRecords(rng) {
			encoded, err := EncodeABI(record)
			require.NoError(t, err)
			require.Zero(t, len(encoded)%32)

			decoded, err := DecodeABI(record.Kind(), encoded)
			require.NoError(t, err)
			require.Equal(t, record, decoded)
		}
	}
}

func TestDecodeABIRejectsNonCanonical(t *testing.T) {
	encoded, err := EncodeABI(CollateralRecord{ICR: 150, CollateralUSD: 3000})
	require.NoError(t, err)
	require.Len(t, encoded, 64)

	dirty := append([]byte{}, encoded...)
	dirty[0] = 1
	_, err = DecodeABI(KindCollateral, dirty)
	require.True(t, errors.Is(err, ErrDecode))

	_, err = DecodeABI(KindCollateral, append(append([]byte{}, encoded...), make([]byte, 32)...))
	require.True(t, errors.Is(err, ErrDecode))

	_, err = DecodeABI(KindCollateral, encoded[:32])
	require.True(t, errors.Is(err, ErrDecode))
}

func TestCodecSchemes(t *testing.T) {
	packed, err := NewCodec("")
	require.NoError(t, err)
	require.Equal(t, SchemePacked, packed.Scheme)

	abiCodec, err := NewCodec("abi")
	require.NoError(t, err)

	record := HoldingsRecord{TotalBTC: 1000000, TotalPutValue: 1000000, TotalCallValue: 1000000, OrgHash: HashIdentityString("org")}
	for _, codec := range []Codec{packed, abiCodec} {
		encoded, err := codec.Encode(record)
		require.NoError(t, err)
		decoded, err := codec.Decode(KindBTCHoldings, encoded)
		require.NoError(t, err)
		require.Equal(t, record, decoded)
	}

	_, err = NewCodec("protobuf")
	require.Error(t, err)
}

func TestCodecRejectsOversizedAddress(t *testing.T) {
	packed := Codec{Scheme: SchemePacked}

	_, err := packed.Encode(BalanceRecord{TotalAmount: 1, Address: strings.Repeat("r", MaxAddressLength+1)})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMalformedField))
	require.Equal(t, "address", FieldOf(err))

	record := BalanceRecord{TotalAmount: 1, Address: strings.Repeat("r", MaxAddressLength)}
	encoded, err := packed.Encode(record)
	require.NoError(t, err)
	decoded, err := packed.Decode(KindXRPBalance, encoded)
	require.NoError(t, err)
	require.Equal(t, record, decoded)
}
