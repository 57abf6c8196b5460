package feeds

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	xerrors "ZKAttest-Chain/internal/errors"
)

const priceURL = "https://prices.test/api/v3/simple/price"

func newMockedCoinGecko(t *testing.T) (*CoinGecko, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	feed := NewCoinGecko(CoinGeckoConfig{BaseURL: "https://prices.test/", APIKey: "demo"})
	feed.httpClient.Transport = transport
	return feed, transport
}

func TestCoinGeckoRoundsToUnits(t *testing.T) {
	feed, transport := newMockedCoinGecko(t)
	transport.RegisterResponderWithQuery(http.MethodGet, priceURL, "ids=bitcoin&vs_currencies=usd",
		func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "demo", req.Header.Get("x-cg-demo-api-key"))
			return httpmock.NewStringResponse(http.StatusOK, `{"bitcoin":{"usd":67890.51}}`), nil
		})

	units, err := feed.BTCUSD(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(67891), units)
	require.Equal(t, 1, transport.GetTotalCallCount())
}

func TestCoinGeckoErrors(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"status":"throttled"}`, retryable: true},
		{name: "server error", status: http.StatusBadGateway, body: "bad gateway", retryable: true},
		{name: "unauthorized", status: http.StatusUnauthorized, body: "no key", retryable: false},
		{name: "missing price", status: http.StatusOK, body: `{"ethereum":{"usd":3000}}`, retryable: false},
		{name: "negative price", status: http.StatusOK, body: `{"bitcoin":{"usd":-1}}`, retryable: false},
		{name: "too large", status: http.StatusOK, body: `{"bitcoin":{"usd":4294967296}}`, retryable: false},
		{name: "malformed", status: http.StatusOK, body: `{"bitcoin":`, retryable: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			feed, transport := newMockedCoinGecko(t)
			transport.RegisterResponder(http.MethodGet, priceURL, httpmock.NewStringResponder(tc.status, tc.body))

			_, err := feed.BTCUSD(context.Background())
			require.Error(t, err)
			require.Equal(t, CodePriceUnavailable, xerrors.CodeOf(err))
			require.Equal(t, tc.retryable, xerrors.RetryableError(err))
		})
	}
}

func TestCoinGeckoTransportFailureIsRetryable(t *testing.T) {
	feed, transport := newMockedCoinGecko(t)
	transport.RegisterResponder(http.MethodGet, priceURL, httpmock.NewErrorResponder(context.DeadlineExceeded))

	_, err := feed.BTCUSD(context.Background())
	require.True(t, xerrors.RetryableError(err))
	require.Equal(t, http.StatusBadGateway, xerrors.HTTPStatusOf(err))
}

func TestStaticFeed(t *testing.T) {
	units, err := Static(65000).BTCUSD(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(65000), units)

	_, err = Static(0).BTCUSD(context.Background())
	require.Error(t, err)
}
