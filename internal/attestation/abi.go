package attestation

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// EVM 公开值编码：与紧凑编码相同的字段顺序，按 Solidity ABI 规则逐字段 32 字节对齐，
// 供链上验证合约直接 abi.decode。

var (
	abiUint32  = mustType("uint32")
	abiUint64  = mustType("uint64")
	abiBytes32 = mustType("bytes32")
	abiString  = mustType("string")
)

func mustType(name string) abi.Type {
	typ, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", name, err))
	}
	return typ
}

func arguments(types ...abi.Type) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, typ := range types {
		args[i] = abi.Argument{Type: typ}
	}
	return args
}

// abiLayout 返回各类型的 ABI 参数列表。
func abiLayout(kind Kind) (abi.Arguments, bool) {
	switch {
	case kind == KindCollateral:
		return arguments(abiUint32, abiUint32), true
	case kind == KindLiquidation, kind == KindLoanToValue:
		return arguments(abiUint32), true
	case kind == KindBTCHoldings:
		return arguments(abiUint64, abiUint64, abiUint64, abiBytes32), true
	case kind.IsTransaction():
		return arguments(abiUint64, abiBytes32, abiBytes32, abiBytes32), true
	case kind == KindXRPBalance:
		return arguments(abiUint64, abiString), true
	default:
		return nil, false
	}
}

func abiValues(record Record) []any {
	switch r := record.(type) {
	case CollateralRecord:
		return []any{r.ICR, r.CollateralUSD}
	case LiquidationRecord:
		return []any{r.Threshold}
	case LoanToValueRecord:
		return []any{r.LTVPercent}
	case HoldingsRecord:
		return []any{r.TotalBTC, r.TotalPutValue, r.TotalCallValue, r.OrgHash}
	case TransactionRecord:
		return []any{r.TotalAmount, r.SenderHash, r.Owner, r.TxHash}
	case BalanceRecord:
		return []any{r.TotalAmount, r.Address}
	default:
		return nil
	}
}

// EncodeABI 按 Solidity ABI 规则编码记录。
func EncodeABI(record Record) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("encode abi: nil record")
	}
	args, ok := abiLayout(record.Kind())
	if !ok {
		return nil, fmt.Errorf("encode abi: unsupported kind %q", record.Kind())
	}
	return args.Pack(abiValues(record)...)
}

// DecodeABI 解析 ABI 编码的公开值。解析结果必须能重新编码为完全相同的字节，
// 因此高位补位脏数据与尾随字节都会被拒绝。
func DecodeABI(kind Kind, data []byte) (Record, error) {
	args, ok := abiLayout(kind)
	if !ok {
		return nil, decodeErr(kind, "unknown kind")
	}
	values, err := args.Unpack(data)
	if err != nil {
		return nil, decodeErr(kind, "abi: %v", err)
	}

	var record Record
	switch {
	case kind == KindCollateral:
		record = CollateralRecord{ICR: values[0].(uint32), CollateralUSD: values[1].(uint32)}
	case kind == KindLiquidation:
		record = LiquidationRecord{Threshold: values[0].(uint32)}
	case kind == KindLoanToValue:
		record = LoanToValueRecord{LTVPercent: values[0].(uint32)}
	case kind == KindBTCHoldings:
		record = HoldingsRecord{
			TotalBTC:       values[0].(uint64),
			TotalPutValue:  values[1].(uint64),
			TotalCallValue: values[2].(uint64),
			OrgHash:        values[3].([32]byte),
		}
	case kind.IsTransaction():
		tx := TransactionRecord{
			TxKind:      kind,
			TotalAmount: values[0].(uint64),
			SenderHash:  values[1].([32]byte),
			Owner:       values[2].([32]byte),
			TxHash:      values[3].([32]byte),
		}
		if OwnerEncodingOf(kind) == OwnerAccountID {
			if _, ok := AccountIDFromOwnerField(tx.Owner); !ok {
				return nil, decodeErr(kind, "owner field has non-zero padding")
			}
		}
		record = tx
	default:
		address := values[1].(string)
		if !utf8.ValidString(address) {
			return nil, decodeErr(kind, "address is not valid UTF-8")
		}
		record = BalanceRecord{TotalAmount: values[0].(uint64), Address: address}
	}

	canonical, err := EncodeABI(record)
	if err != nil || !bytes.Equal(canonical, data) {
		return nil, decodeErr(kind, "abi: non-canonical encoding")
	}
	return record, nil
}

// Scheme 是公开值的编码方案。
type Scheme string

const (
	// SchemePacked 是默认的紧凑大端编码。
	SchemePacked Scheme = "packed"
	// SchemeABI 是面向 EVM 验证合约的 ABI 编码。
	SchemeABI Scheme = "abi"
)

// Codec 按配置的方案编解码公开值。
type Codec struct {
	Scheme Scheme
}

// NewCodec 根据配置字符串创建编解码器，空字符串使用紧凑编码。
func NewCodec(scheme string) (Codec, error) {
	switch Scheme(scheme) {
	case "", SchemePacked:
		return Codec{Scheme: SchemePacked}, nil
	case SchemeABI:
		return Codec{Scheme: SchemeABI}, nil
	default:
		return Codec{}, fmt.Errorf("unsupported public values encoding %q", scheme)
	}
}

// Encode 按方案编码记录。
func (c Codec) Encode(record Record) ([]byte, error) {
	if c.Scheme == SchemeABI {
		return EncodeABI(record)
	}
	if record == nil {
		return nil, fmt.Errorf("encode: nil record")
	}
	if r, ok := record.(BalanceRecord); ok && len(r.Address) > MaxAddressLength {
		return nil, malformed("address", "%d bytes exceeds the %d byte limit", len(r.Address), MaxAddressLength)
	}
	return Encode(record), nil
}

// Decode 按方案解码公开值。
func (c Codec) Decode(kind Kind, data []byte) (Record, error) {
	if c.Scheme == SchemeABI {
		return DecodeABI(kind, data)
	}
	return Decode(kind, data)
}
