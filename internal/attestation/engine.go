package attestation

// Attestation 是一次证明请求的结果：结构化记录与交给证明程序的公开值字节。
type Attestation struct {
	Kind    Kind
	Record  Record
	Encoded []byte
}

// Engine 串联校验、计算、装配与编码，是纯函数式的同步流水线。
type Engine struct {
	validator *Validator
	codec     Codec
}

// NewEngine 创建证明流水线。
func NewEngine(validator *Validator, codec Codec) *Engine {
	if validator == nil {
		validator = NewValidator(nil)
	}
	if codec.Scheme == "" {
		codec.Scheme = SchemePacked
	}
	return &Engine{validator: validator, codec: codec}
}

// Codec 返回流水线使用的编解码器。
func (e *Engine) Codec() Codec { return e.codec }

// Validator 返回流水线使用的校验器。
func (e *Engine) Validator() *Validator { return e.validator }

// Attest 对单个请求执行完整流水线，失败时不返回任何部分记录。
func (e *Engine) Attest(req Request) (*Attestation, error) {
	record, err := e.assemble(req)
	if err != nil {
		return nil, err
	}
	return e.seal(record)
}

// AttestCollateralBundle 用同一组抵押输入一次生成抵押率、清算阈值与贷款价值比三条记录。
func (e *Engine) AttestCollateralBundle(req CollateralRequest) ([]*Attestation, error) {
	in, err := e.validator.ValidateCollateral(req)
	if err != nil {
		return nil, err
	}
	records := []Record{AssembleCollateral(in), AssembleLiquidation(in), AssembleLoanToValue(in)}
	out := make([]*Attestation, 0, len(records))
	for _, record := range records {
		attestation, err := e.seal(record)
		if err != nil {
			return nil, err
		}
		out = append(out, attestation)
	}
	return out, nil
}

func (e *Engine) assemble(req Request) (Record, error) {
	switch {
	case req.Kind == KindCollateral, req.Kind == KindLiquidation, req.Kind == KindLoanToValue:
		if req.Collateral == nil {
			return nil, malformed("collateral", "missing")
		}
		in, err := e.validator.ValidateCollateral(*req.Collateral)
		if err != nil {
			return nil, err
		}
		switch req.Kind {
		case KindLiquidation:
			return AssembleLiquidation(in), nil
		case KindLoanToValue:
			return AssembleLoanToValue(in), nil
		default:
			return AssembleCollateral(in), nil
		}
	case req.Kind == KindBTCHoldings:
		if req.Holdings == nil {
			return nil, malformed("holdings", "missing")
		}
		in, err := e.validator.ValidateHoldings(*req.Holdings)
		if err != nil {
			return nil, err
		}
		return AssembleHoldings(in)
	case req.Kind.IsTransaction():
		if req.Transaction == nil {
			return nil, malformed("transaction", "missing")
		}
		validated, err := e.validator.ValidateTransaction(req.Kind, *req.Transaction)
		if err != nil {
			return nil, err
		}
		return AssembleTransaction(validated), nil
	case req.Kind == KindXRPBalance:
		if req.Balance == nil {
			return nil, malformed("balance", "missing")
		}
		in, err := e.validator.ValidateBalance(*req.Balance)
		if err != nil {
			return nil, err
		}
		return AssembleBalance(in), nil
	default:
		return nil, malformed("kind", "unsupported kind %q", req.Kind)
	}
}

func (e *Engine) seal(record Record) (*Attestation, error) {
	encoded, err := e.codec.Encode(record)
	if err != nil {
		return nil, err
	}
	return &Attestation{Kind: record.Kind(), Record: record, Encoded: encoded}, nil
}
