package attestation

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	xerrors "ZKAttest-Chain/internal/errors"
)

// KindPolicy 是某个证明类型的信任边界配置。
type KindPolicy struct {
	// ExpectedRecipient 是交易类证明唯一接受的收款地址。
	ExpectedRecipient string
	// ExpectedOrganization 非空时，持仓证明只接受该机构标识。
	ExpectedOrganization string
}

// Validator 把原始请求转换为核心输入，自身不持有可变状态，可并发使用。
type Validator struct {
	policies map[Kind]KindPolicy
}

var maxUint64Decimal = decimal.RequireFromString("18446744073709551615")

// NewValidator 使用各类型的策略创建校验器。
func NewValidator(policies map[Kind]KindPolicy) *Validator {
	copied := make(map[Kind]KindPolicy, len(policies))
	for kind, policy := range policies {
		copied[kind] = policy
	}
	return &Validator{policies: copied}
}

// Policy 返回指定类型的策略。
func (v *Validator) Policy(kind Kind) (KindPolicy, bool) {
	policy, ok := v.policies[kind]
	return policy, ok
}

// ValidateCollateral 校验抵押类输入，价格必须已由调用方补齐。
func (v *Validator) ValidateCollateral(req CollateralRequest) (CollateralInput, error) {
	if req.PriceUnits == nil {
		return CollateralInput{}, malformed("price_units", "missing")
	}
	return CollateralInput{
		CollateralUnits: req.CollateralUnits,
		DebtUnits:       req.DebtUnits,
		PriceUnits:      *req.PriceUnits,
		MinimumRatio:    req.MinimumRatio,
	}, nil
}

// ValidateHoldings 校验 UTXO 列表、机构身份与衍生金额。总额核对在装配阶段完成。
func (v *Validator) ValidateHoldings(req HoldingsRequest) (HoldingsInput, error) {
	utxos := make([]UTXO, 0, len(req.UTXOs))
	for i, raw := range req.UTXOs {
		prefix := fmt.Sprintf("utxos[%d]", i)
		txid, err := decodeFixedHex(prefix+".txid", raw.TransactionID, TxIDLength)
		if err != nil {
			return HoldingsInput{}, err
		}
		pubKey, err := decodeFixedHex(prefix+".owner_pubkey", raw.OwnerPubKey, CompressedPubKeyLength)
		if err != nil {
			return HoldingsInput{}, err
		}
		var signature []byte
		if raw.Signature != "" {
			signature, err = decodeFixedHex(prefix+".signature", raw.Signature, SignatureLength)
			if err != nil {
				return HoldingsInput{}, err
			}
		}
		utxo := UTXO{
			OutputIndex: raw.OutputIndex,
			Amount:      raw.Amount,
			OwnerPubKey: pubKey,
			Signature:   signature,
		}
		copy(utxo.TransactionID[:], txid)
		utxos = append(utxos, utxo)
	}

	if policy, ok := v.policies[KindBTCHoldings]; ok && policy.ExpectedOrganization != "" {
		if req.OrganizationID != policy.ExpectedOrganization {
			return HoldingsInput{}, xerrors.New(CodeIdentityMismatch,
				"org_id: organization is not accepted",
				xerrors.WithMetadata("field", "org_id"))
		}
	}

	put, err := parseAuxiliary("auxiliary_values[0]", req.AuxiliaryValues[0])
	if err != nil {
		return HoldingsInput{}, err
	}
	call, err := parseAuxiliary("auxiliary_values[1]", req.AuxiliaryValues[1])
	if err != nil {
		return HoldingsInput{}, err
	}

	return HoldingsInput{
		UTXOs:          utxos,
		DeclaredTotal:  req.DeclaredTotal,
		OrganizationID: req.OrganizationID,
		PutValue:       put,
		CallValue:      call,
	}, nil
}

// ValidateTransaction 校验交易输入，收款地址必须与配置逐字节一致。
func (v *Validator) ValidateTransaction(kind Kind, req TransactionRequest) (ValidatedTransaction, error) {
	if !kind.IsTransaction() {
		return ValidatedTransaction{}, malformed("kind", "%q is not a transaction kind", kind)
	}
	txid, err := decodeFixedHex("tx_hash", req.TxHash, TxIDLength)
	if err != nil {
		return ValidatedTransaction{}, err
	}
	policy, ok := v.policies[kind]
	if !ok || policy.ExpectedRecipient == "" {
		return ValidatedTransaction{}, malformed("kind", "no expected recipient configured for %s", kind)
	}
	if req.RecipientAddress != policy.ExpectedRecipient {
		return ValidatedTransaction{}, xerrors.New(CodeRecipientMismatch,
			fmt.Sprintf("recipient_address: %q is not the configured recipient for %s", req.RecipientAddress, kind),
			xerrors.WithMetadata("field", "recipient_address"),
			xerrors.WithMetadata("kind", string(kind)))
	}

	var owner [DigestLength]byte
	switch OwnerEncodingOf(kind) {
	case OwnerAccountID:
		id, err := DecodeLedgerAddress(req.OwnerAddress)
		if err != nil {
			return ValidatedTransaction{}, malformed("owner_address", "invalid ledger address: %v", err)
		}
		owner = OwnerAccountField(id)
	default:
		owner = HashIdentityString(req.OwnerAddress)
	}

	input := TransactionInput{
		Kind:             kind,
		ClaimedRecipient: req.RecipientAddress,
		SenderIdentity:   req.SenderAddress,
		OwnerIdentity:    req.OwnerAddress,
		Amount:           req.Amount,
	}
	copy(input.TransactionID[:], txid)
	return ValidatedTransaction{input: input, owner: owner}, nil
}

// ValidateBalance 校验余额证明的账本地址。
func (v *Validator) ValidateBalance(req BalanceRequest) (BalanceInput, error) {
	if _, err := DecodeLedgerAddress(req.Address); err != nil {
		return BalanceInput{}, malformed("address", "invalid ledger address: %v", err)
	}
	return BalanceInput{Amount: req.Amount, Address: req.Address}, nil
}

func decodeFixedHex(field, value string, size int) ([]byte, error) {
	trimmed := value
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, malformed(field, "invalid hex")
	}
	if len(decoded) != size {
		return nil, malformed(field, "expected %d bytes, got %d", size, len(decoded))
	}
	return decoded, nil
}

// parseAuxiliary 解析最小单位的十进制金额，空字符串表示沿用声明总额。
func parseAuxiliary(field, value string) (*uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return nil, malformed(field, "not a decimal amount")
	}
	switch {
	case amount.IsNegative():
		return nil, malformed(field, "negative amount")
	case !amount.IsInteger():
		return nil, malformed(field, "fractional amount")
	case amount.GreaterThan(maxUint64Decimal):
		return nil, malformed(field, "amount exceeds uint64")
	}
	parsed := amount.BigInt().Uint64()
	return &parsed, nil
}
