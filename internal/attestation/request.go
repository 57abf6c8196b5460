package attestation

// 以下类型是 API 边界上的原始请求，定长字节字段以十六进制字符串传入，
// 可带 0x 前缀。只有 Validator 能把它们转换为核心输入。

// CollateralRequest 是抵押类证明（collateral/liquidation/loan_to_value）的原始输入。
type CollateralRequest struct {
	CollateralUnits uint32 `json:"collateral_units"`
	DebtUnits       uint32 `json:"debt_units"`
	// PriceUnits 缺省时由调用方从价格源补齐。
	PriceUnits   *uint32 `json:"price_units,omitempty"`
	MinimumRatio uint32  `json:"minimum_ratio"`
}

// UTXORequest 是一条 UTXO 的原始输入。
type UTXORequest struct {
	TransactionID string `json:"txid"`
	OutputIndex   uint32 `json:"vout"`
	Amount        uint64 `json:"amount"`
	OwnerPubKey   string `json:"owner_pubkey"`
	Signature     string `json:"signature,omitempty"`
}

// HoldingsRequest 是持仓证明的原始输入，AuxiliaryValues 依次为 put、call 金额。
type HoldingsRequest struct {
	UTXOs           []UTXORequest `json:"utxos"`
	DeclaredTotal   uint64        `json:"declared_total"`
	OrganizationID  string        `json:"org_id"`
	AuxiliaryValues [2]string     `json:"auxiliary_values"`
}

// TransactionRequest 是交易证明的原始输入。
type TransactionRequest struct {
	TxHash           string `json:"tx_hash"`
	RecipientAddress string `json:"recipient_address"`
	SenderAddress    string `json:"sender_address"`
	OwnerAddress     string `json:"owner_address"`
	Amount           uint64 `json:"amount"`
}

// BalanceRequest 是余额证明的原始输入。
type BalanceRequest struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// Request 是一次证明请求，按 Kind 只读取对应的字段。
type Request struct {
	Kind        Kind                `json:"kind"`
	Collateral  *CollateralRequest  `json:"collateral,omitempty"`
	Holdings    *HoldingsRequest    `json:"holdings,omitempty"`
	Transaction *TransactionRequest `json:"transaction,omitempty"`
	Balance     *BalanceRequest     `json:"balance,omitempty"`
}
