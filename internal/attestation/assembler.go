package attestation

import (
	"fmt"

	xerrors "ZKAttest-Chain/internal/errors"
)

// AssembleCollateral 生成抵押率记录。
func AssembleCollateral(in CollateralInput) CollateralRecord {
	ratio, usd := CollateralRatio(in.CollateralUnits, in.DebtUnits, in.PriceUnits)
	return CollateralRecord{ICR: ratio, CollateralUSD: usd}
}

// AssembleLiquidation 生成清算阈值记录。
func AssembleLiquidation(in CollateralInput) LiquidationRecord {
	return LiquidationRecord{Threshold: LiquidationThreshold(in.CollateralUnits, in.PriceUnits, in.MinimumRatio)}
}

// AssembleLoanToValue 生成贷款价值比记录。
func AssembleLoanToValue(in CollateralInput) LoanToValueRecord {
	return LoanToValueRecord{LTVPercent: LoanToValue(in.DebtUnits, in.CollateralUnits, in.PriceUnits)}
}

// AssembleHoldings 重新累加 UTXO 金额并与声明总额核对，核对通过才生成记录。
func AssembleHoldings(in HoldingsInput) (HoldingsRecord, error) {
	total, err := SumUTXOs(in.UTXOs)
	if err != nil {
		return HoldingsRecord{}, err
	}
	if total != in.DeclaredTotal {
		return HoldingsRecord{}, xerrors.New(CodeTotalMismatch,
			fmt.Sprintf("declared_total: declared %d, utxos sum to %d", in.DeclaredTotal, total),
			xerrors.WithMetadata("field", "declared_total"))
	}

	record := HoldingsRecord{
		TotalBTC:       total,
		TotalPutValue:  total,
		TotalCallValue: total,
		OrgHash:        HashIdentityString(in.OrganizationID),
	}
	if in.PutValue != nil {
		record.TotalPutValue = *in.PutValue
	}
	if in.CallValue != nil {
		record.TotalCallValue = *in.CallValue
	}
	return record, nil
}

// AssembleTransaction 把已校验的交易输入装配为交易记录。
func AssembleTransaction(v ValidatedTransaction) TransactionRecord {
	return TransactionRecord{
		TxKind:      v.input.Kind,
		TotalAmount: v.input.Amount,
		SenderHash:  HashIdentityString(v.input.SenderIdentity),
		Owner:       v.owner,
		TxHash:      v.input.TransactionID,
	}
}

// AssembleBalance 生成余额记录。
func AssembleBalance(in BalanceInput) BalanceRecord {
	return BalanceRecord{TotalAmount: in.Amount, Address: in.Address}
}
