package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/trailgrid/pkg/retrier"
)

var klineDay0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// klineServer serves n daily klines honouring startTime and limit.
func klineServer(t *testing.T, n int, calls *atomic.Int32, failFirst bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := calls.Add(1)
		if failFirst && call == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		start, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)

		rows := [][]any{}
		for i := 0; i < n && len(rows) < limit; i++ {
			open := klineDay0.AddDate(0, 0, i)
			if open.UnixMilli() < start {
				continue
			}
			price := strconv.Itoa(100 + i)
			rows = append(rows, []any{
				open.UnixMilli(), price, price, price, price, "10",
				open.Add(24*time.Hour - time.Millisecond).UnixMilli(), "1000", 5, "5", "500", "0",
			})
		}
		_ = json.NewEncoder(w).Encode(rows)
	}))
}

func testClient(url string) *binance.Client {
	client := binance.NewClient("", "")
	client.BaseURL = url
	return client
}

func fastRetrier() *retrier.Retrier {
	return retrier.New(
		retrier.WithMaxRetries(2),
		retrier.WithInitialInterval(time.Millisecond),
		retrier.WithRetryIf(retryable),
	)
}

func TestBinanceSource_Paginates(t *testing.T) {
	var calls atomic.Int32
	srv := klineServer(t, 5, &calls, false)
	defer srv.Close()

	src := NewBinanceSource(testClient(srv.URL), nil, WithPageSize(2), WithRetrier(fastRetrier()))

	bars, err := src.Bars(context.Background(), "btcusdt", klineDay0, klineDay0.AddDate(0, 0, 10))
	require.NoError(t, err)
	require.Len(t, bars, 5)
	assert.Equal(t, int32(3), calls.Load())

	for i, b := range bars {
		assert.Equal(t, klineDay0.AddDate(0, 0, i), b.Date)
		assert.True(t, b.Close.Equal(decimal.NewFromInt(int64(100+i))))
	}
}

func TestBinanceSource_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := klineServer(t, 3, &calls, true)
	defer srv.Close()

	src := NewBinanceSource(testClient(srv.URL), nil, WithRetrier(fastRetrier()))

	bars, err := src.Bars(context.Background(), "BTCUSDT", klineDay0, klineDay0.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBinanceSource_InvalidSymbolIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := klineServer(t, 3, &calls, false)
	defer srv.Close()

	src := NewBinanceSource(testClient(srv.URL), nil, WithRetrier(fastRetrier()))

	_, err := src.Bars(context.Background(), "NOPE", klineDay0, klineDay0.AddDate(0, 0, 10))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
