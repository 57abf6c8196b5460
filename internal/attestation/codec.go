package attestation

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// 紧凑编码：大端序，字段按固定顺序紧密排列，没有类型标签，解码时由调用方给出类型。
const (
	collateralSize  = 8
	liquidationSize = 4
	ltvSize         = 4
	holdingsSize    = 8*3 + DigestLength
	transactionSize = 8 + DigestLength*3
	balanceHeader   = 8 + 2
)

// MaxAddressLength 是紧凑编码中余额地址的最大字节数，长度前缀为 uint16。
const MaxAddressLength = math.MaxUint16

// Encode 返回记录的规范字节，相同记录总是得到相同字节。
// 余额地址超过 MaxAddressLength 时长度前缀会被截断，需要校验的调用方使用 Codec.Encode。
func Encode(record Record) []byte {
	switch r := record.(type) {
	case CollateralRecord:
		out := make([]byte, 0, collateralSize)
		out = binary.BigEndian.AppendUint32(out, r.ICR)
		return binary.BigEndian.AppendUint32(out, r.CollateralUSD)
	case LiquidationRecord:
		return binary.BigEndian.AppendUint32(make([]byte, 0, liquidationSize), r.Threshold)
	case LoanToValueRecord:
		return binary.BigEndian.AppendUint32(make([]byte, 0, ltvSize), r.LTVPercent)
	case HoldingsRecord:
		out := make([]byte, 0, holdingsSize)
		out = binary.BigEndian.AppendUint64(out, r.TotalBTC)
		out = binary.BigEndian.AppendUint64(out, r.TotalPutValue)
		out = binary.BigEndian.AppendUint64(out, r.TotalCallValue)
		return append(out, r.OrgHash[:]...)
	case TransactionRecord:
		out := make([]byte, 0, transactionSize)
		out = binary.BigEndian.AppendUint64(out, r.TotalAmount)
		out = append(out, r.SenderHash[:]...)
		out = append(out, r.Owner[:]...)
		return append(out, r.TxHash[:]...)
	case BalanceRecord:
		out := make([]byte, 0, balanceHeader+len(r.Address))
		out = binary.BigEndian.AppendUint64(out, r.TotalAmount)
		out = binary.BigEndian.AppendUint16(out, uint16(len(r.Address)))
		return append(out, r.Address...)
	default:
		return nil
	}
}

// EncodedSize 返回定长变体的编码长度，余额变体返回头部长度。
func EncodedSize(kind Kind) int {
	switch {
	case kind == KindCollateral:
		return collateralSize
	case kind == KindLiquidation:
		return liquidationSize
	case kind == KindLoanToValue:
		return ltvSize
	case kind == KindBTCHoldings:
		return holdingsSize
	case kind.IsTransaction():
		return transactionSize
	case kind == KindXRPBalance:
		return balanceHeader
	default:
		return 0
	}
}

// Decode 按类型解析规范字节，截断、超长与非零补位都会被拒绝。
func Decode(kind Kind, data []byte) (Record, error) {
	if !kind.Valid() {
		return nil, decodeErr(kind, "unknown kind")
	}
	if kind == KindXRPBalance {
		return decodeBalance(data)
	}
	if want := EncodedSize(kind); len(data) != want {
		return nil, decodeErr(kind, "expected %d bytes, got %d", want, len(data))
	}

	switch {
	case kind == KindCollateral:
		return CollateralRecord{
			ICR:           binary.BigEndian.Uint32(data[0:4]),
			CollateralUSD: binary.BigEndian.Uint32(data[4:8]),
		}, nil
	case kind == KindLiquidation:
		return LiquidationRecord{Threshold: binary.BigEndian.Uint32(data)}, nil
	case kind == KindLoanToValue:
		return LoanToValueRecord{LTVPercent: binary.BigEndian.Uint32(data)}, nil
	case kind == KindBTCHoldings:
		record := HoldingsRecord{
			TotalBTC:       binary.BigEndian.Uint64(data[0:8]),
			TotalPutValue:  binary.BigEndian.Uint64(data[8:16]),
			TotalCallValue: binary.BigEndian.Uint64(data[16:24]),
		}
		copy(record.OrgHash[:], data[24:])
		return record, nil
	default:
		record := TransactionRecord{TxKind: kind, TotalAmount: binary.BigEndian.Uint64(data[0:8])}
		copy(record.SenderHash[:], data[8:40])
		copy(record.Owner[:], data[40:72])
		copy(record.TxHash[:], data[72:104])
		if OwnerEncodingOf(kind) == OwnerAccountID {
			if _, ok := AccountIDFromOwnerField(record.Owner); !ok {
				return nil, decodeErr(kind, "owner field has non-zero padding")
			}
		}
		return record, nil
	}
}

func decodeBalance(data []byte) (Record, error) {
	if len(data) < balanceHeader {
		return nil, decodeErr(KindXRPBalance, "truncated header: %d bytes", len(data))
	}
	length := int(binary.BigEndian.Uint16(data[8:10]))
	if len(data) != balanceHeader+length {
		return nil, decodeErr(KindXRPBalance, "address length %d does not match %d trailing bytes",
			length, len(data)-balanceHeader)
	}
	address := data[balanceHeader:]
	if !utf8.Valid(address) {
		return nil, decodeErr(KindXRPBalance, "address is not valid UTF-8")
	}
	return BalanceRecord{
		TotalAmount: binary.BigEndian.Uint64(data[0:8]),
		Address:     string(address),
	}, nil
}
