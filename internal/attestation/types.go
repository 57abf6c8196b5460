package attestation

const (
	// TxIDLength 是交易标识的字节长度。
	TxIDLength = 32
	// CompressedPubKeyLength 是压缩公钥的字节长度。
	CompressedPubKeyLength = 33
	// SignatureLength 是签名的字节长度。
	SignatureLength = 64
	// DigestLength 是身份承诺摘要的字节长度。
	DigestLength = 32
	// AccountIDLength 是账本账户 ID 的字节长度。
	AccountIDLength = 20
)

// Kind 标识证明类型，每种类型对应一个记录变体与一个证明程序。
type Kind string

const (
	KindCollateral  Kind = "collateral"
	KindLiquidation Kind = "liquidation"
	KindLoanToValue Kind = "loan_to_value"
	KindBTCHoldings Kind = "btc_holdings"
	KindBTCTx       Kind = "btc_tx"
	KindDogeTx      Kind = "doge_tx"
	KindXRPTx       Kind = "xrp_tx"
	KindXRPBalance  Kind = "xrp_balance"
)

// Kinds 返回全部受支持的证明类型。
func Kinds() []Kind {
	return []Kind{
		KindCollateral, KindLiquidation, KindLoanToValue, KindBTCHoldings,
		KindBTCTx, KindDogeTx, KindXRPTx, KindXRPBalance,
	}
}

// Valid 判断类型是否受支持。
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// IsTransaction 判断类型是否为交易类证明，需要校验收款地址。
func (k Kind) IsTransaction() bool {
	return k == KindBTCTx || k == KindDogeTx || k == KindXRPTx
}

// OwnerEncoding 描述交易记录中 owner 字段的编码方式。
type OwnerEncoding uint8

const (
	// OwnerHashed 表示 owner 字段为 owner 身份的 SHA-256 摘要。
	OwnerHashed OwnerEncoding = iota
	// OwnerAccountID 表示 owner 字段为 20 字节账户 ID，后补零到 32 字节。
	OwnerAccountID
)

// OwnerEncodingOf 返回交易类证明的 owner 编码方式。
func OwnerEncodingOf(kind Kind) OwnerEncoding {
	if kind == KindXRPTx {
		return OwnerAccountID
	}
	return OwnerHashed
}

// UTXO 是一条未花费输出。
type UTXO struct {
	TransactionID [TxIDLength]byte
	OutputIndex   uint32
	Amount        uint64
	OwnerPubKey   []byte
	Signature     []byte
}

// CollateralInput 是抵押指标计算的输入。
type CollateralInput struct {
	CollateralUnits uint32
	DebtUnits       uint32
	PriceUnits      uint32
	MinimumRatio    uint32
}

// HoldingsInput 是持仓证明的输入。
type HoldingsInput struct {
	UTXOs          []UTXO
	DeclaredTotal  uint64
	OrganizationID string
	// PutValue 与 CallValue 为外部计算的衍生金额，未提供时等于声明总额。
	PutValue  *uint64
	CallValue *uint64
}

// TransactionInput 是交易证明的输入。
type TransactionInput struct {
	Kind             Kind
	TransactionID    [TxIDLength]byte
	ClaimedRecipient string
	SenderIdentity   string
	OwnerIdentity    string
	Amount           uint64
}

// ValidatedTransaction 只能由 Validator 构造，表示收款地址校验已经通过。
type ValidatedTransaction struct {
	input TransactionInput
	owner [DigestLength]byte
}

// Input 返回已校验的交易输入。
func (v ValidatedTransaction) Input() TransactionInput { return v.input }

// BalanceInput 是余额证明的输入。
type BalanceInput struct {
	Amount  uint64
	Address string
}

// Record 是证明记录的标签联合，每个变体有固定、带版本的字段顺序与宽度。
type Record interface {
	Kind() Kind
	sealed()
}

// CollateralRecord 记录抵押率与抵押品美元价值。
type CollateralRecord struct {
	ICR           uint32
	CollateralUSD uint32
}

// LiquidationRecord 记录清算阈值。
type LiquidationRecord struct {
	Threshold uint32
}

// LoanToValueRecord 记录实时贷款价值比（整数百分比）。
type LoanToValueRecord struct {
	LTVPercent uint32
}

// HoldingsRecord 记录 BTC 持仓与机构身份承诺。
type HoldingsRecord struct {
	TotalBTC       uint64
	TotalPutValue  uint64
	TotalCallValue uint64
	OrgHash        [DigestLength]byte
}

// TransactionRecord 统一了 BTC/DOGE/XRP 交易证明，owner 字段编码由 TxKind 决定。
type TransactionRecord struct {
	TxKind      Kind
	TotalAmount uint64
	SenderHash  [DigestLength]byte
	Owner       [DigestLength]byte
	TxHash      [TxIDLength]byte
}

// BalanceRecord 记录账户余额，是唯一允许变长字段的变体。
// 紧凑编码下 Address 不超过 MaxAddressLength 字节。
type BalanceRecord struct {
	TotalAmount uint64
	Address     string
}

func (CollateralRecord) Kind() Kind    { return KindCollateral }
func (LiquidationRecord) Kind() Kind   { return KindLiquidation }
func (LoanToValueRecord) Kind() Kind   { return KindLoanToValue }
func (HoldingsRecord) Kind() Kind      { return KindBTCHoldings }
func (r TransactionRecord) Kind() Kind { return r.TxKind }
func (BalanceRecord) Kind() Kind       { return KindXRPBalance }

func (CollateralRecord) sealed()  {}
func (LiquidationRecord) sealed() {}
func (LoanToValueRecord) sealed() {}
func (HoldingsRecord) sealed()    {}
func (TransactionRecord) sealed() {}
func (BalanceRecord) sealed()     {}
