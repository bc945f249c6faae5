package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-meme-radar/internal/domain"
)

func fastRetryClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMin = time.Millisecond
	c.RetryWaitMax = 5 * time.Millisecond
	c.Logger = nil
	return c
}

func TestTelegram_SendMessage(t *testing.T) {
	var got sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	tg := NewTelegram("TOKEN", "42", WithTelegramURL(server.URL), WithRetryClient(fastRetryClient()))
	sent, err := tg.SendMessage(context.Background(), "<b>hi</b>")
	require.NoError(t, err)
	assert.True(t, sent)

	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "<b>hi</b>", got.Text)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.True(t, got.DisableWebPagePreview)
}

func TestTelegram_RateLimitDropsExtra(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	tg := NewTelegram("T", "1", WithTelegramURL(server.URL), WithRetryClient(fastRetryClient()))
	ctx := context.Background()

	first, err := tg.SendMessage(ctx, "one")
	require.NoError(t, err)
	second, err := tg.SendMessage(ctx, "two")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, int32(1), hits.Load())
}

func TestTelegram_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	tg := NewTelegram("T", "1", WithTelegramURL(server.URL), WithRetryClient(fastRetryClient()))
	sent, err := tg.SendMessage(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, int32(3), hits.Load())
}

func TestTelegram_ClientErrorReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer server.Close()

	tg := NewTelegram("T", "1", WithTelegramURL(server.URL), WithRetryClient(fastRetryClient()))
	err := tg.NotifyVolumeSpike(context.Background(), domain.VolumeAlert{Token: domain.Token{Name: "X"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestVolumeSpikeMessage(t *testing.T) {
	msg := VolumeSpikeMessage(domain.Token{
		MintAddress: "Mint1",
		Name:        "Cats & Dogs",
		Symbol:      "<CD>",
		MarketCap:   1_500_000,
		Liquidity:   25_000,
		Volume24h:   999,
		BuyRatio:    0.625,
	})
	assert.Contains(t, msg, "<b>Cats &amp; Dogs</b> (&lt;CD&gt;)")
	assert.Contains(t, msg, "Market Cap: $1.50M")
	assert.Contains(t, msg, "Liquidity: $25.00K")
	assert.Contains(t, msg, "24h Volume: $999.00")
	assert.Contains(t, msg, "Buy Ratio: 62.5%")
	assert.Contains(t, msg, "<code>Mint1</code>")
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0"},
		{-5, "$0"},
		{12.5, "$12.50"},
		{1000, "$1.00K"},
		{2_500_000, "$2.50M"},
		{3_210_000_000, "$3.21B"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUSD(tt.in), "FormatUSD(%v)", tt.in)
	}
}
