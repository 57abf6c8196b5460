package feeds

import (
	"context"
	"net/http"

	xerrors "ZKAttest-Chain/internal/errors"
)

// CodePriceUnavailable 表示价格源暂时不可用。
const CodePriceUnavailable xerrors.Code = "PRICE_UNAVAILABLE"

func init() {
	xerrors.Register(CodePriceUnavailable, xerrors.Attributes{
		Message:    "btc price unavailable",
		Severity:   xerrors.SeverityWarning,
		Retryable:  true,
		HTTPStatus: http.StatusBadGateway,
	})
}

// PriceFeed 返回当前 BTC/USD 价格（整数美元）。
type PriceFeed interface {
	BTCUSD(ctx context.Context) (uint32, error)
}

// Static 返回固定价格，用于离线环境与测试。
type Static uint32

// BTCUSD 实现 PriceFeed。
func (s Static) BTCUSD(context.Context) (uint32, error) {
	if s == 0 {
		return 0, xerrors.New(CodePriceUnavailable, "未配置固定价格", xerrors.WithRetryable(false))
	}
	return uint32(s), nil
}
