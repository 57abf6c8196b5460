package attestation

import "github.com/ethereum/go-ethereum/common/hexutil"

// RecordFields 把记录展开为可序列化的字段表，字节字段以 0x 十六进制表示。
func RecordFields(record Record) map[string]any {
	switch r := record.(type) {
	case CollateralRecord:
		return map[string]any{"icr": r.ICR, "collateral_usd": r.CollateralUSD}
	case LiquidationRecord:
		return map[string]any{"threshold": r.Threshold}
	case LoanToValueRecord:
		return map[string]any{"ltv_percent": r.LTVPercent}
	case HoldingsRecord:
		return map[string]any{
			"total_btc":        r.TotalBTC,
			"total_put_value":  r.TotalPutValue,
			"total_call_value": r.TotalCallValue,
			"org_hash":         hexutil.Encode(r.OrgHash[:]),
		}
	case TransactionRecord:
		fields := map[string]any{
			"total_amount": r.TotalAmount,
			"sender_hash":  hexutil.Encode(r.SenderHash[:]),
			"owner":        hexutil.Encode(r.Owner[:]),
			"tx_hash":      hexutil.Encode(r.TxHash[:]),
		}
		if OwnerEncodingOf(r.TxKind) == OwnerAccountID {
			if id, ok := AccountIDFromOwnerField(r.Owner); ok {
				fields["owner_address"] = EncodeLedgerAddress(id)
			}
		}
		return fields
	case BalanceRecord:
		return map[string]any{"total_amount": r.TotalAmount, "address": r.Address}
	default:
		return nil
	}
}
