package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	xerrors "ZKAttest-Chain/internal/errors"
)

const defaultCoinGeckoURL = "https://api.coingecko.com"

// CoinGeckoConfig 描述 CoinGecko 行情接口。
type CoinGeckoConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// CoinGecko 通过 simple/price 接口读取 BTC/USD。
type CoinGecko struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCoinGecko 创建行情客户端。
func NewCoinGecko(cfg CoinGeckoConfig) *CoinGecko {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultCoinGeckoURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinGecko{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type simplePriceResponse map[string]map[string]json.Number

// BTCUSD 请求最新价格并四舍五入到整数美元。
func (c *CoinGecko) BTCUSD(ctx context.Context) (uint32, error) {
	query := url.Values{}
	query.Set("ids", "bitcoin")
	query.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/simple/price?"+query.Encode(), nil)
	if err != nil {
		return 0, xerrors.Wrap(CodePriceUnavailable, err, "构造行情请求失败", xerrors.WithRetryable(false))
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, xerrors.Wrap(CodePriceUnavailable, err, "请求行情接口失败")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return 0, xerrors.Wrap(CodePriceUnavailable, err, "读取行情响应失败")
	}
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return 0, xerrors.New(CodePriceUnavailable,
			fmt.Sprintf("行情接口返回 %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			xerrors.WithRetryable(retryable))
	}

	var decoded simplePriceResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, xerrors.Wrap(CodePriceUnavailable, err, "解析行情响应失败", xerrors.WithRetryable(false))
	}
	raw, ok := decoded["bitcoin"]["usd"]
	if !ok {
		return 0, xerrors.New(CodePriceUnavailable, "行情响应缺少 bitcoin.usd", xerrors.WithRetryable(false))
	}
	return roundUnits(raw.String())
}

func roundUnits(raw string) (uint32, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, xerrors.Wrap(CodePriceUnavailable, err, "价格格式错误", xerrors.WithRetryable(false))
	}
	rounded := price.Round(0)
	if rounded.Sign() <= 0 || rounded.GreaterThan(decimal.NewFromInt(math.MaxUint32)) {
		return 0, xerrors.New(CodePriceUnavailable, "价格超出范围: "+price.String(), xerrors.WithRetryable(false))
	}
	return uint32(rounded.IntPart()), nil
}
