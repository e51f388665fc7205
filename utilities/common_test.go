package utilities

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTruthy(t *testing.T) {
	truthy := []string{"1", "true", "yes", "y", "on", "TRUE", "Yes", "ON", " y ", "True"}
	for _, v := range truthy {
		assert.True(t, ParseTruthy(v), "expected %q to be truthy", v)
	}

	falsy := []string{"", "0", "false", "no", "off", "2", "enabled", "t", "yess", "null"}
	for _, v := range falsy {
		assert.False(t, ParseTruthy(v), "expected %q to be falsy", v)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug": Debug,
		"info":  Info,
		"WARN":  Warn,
		"Error": Error,
		"fatal": Fatal,
	}
	for in, want := range cases {
		got, err := ParseLogLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	var cfg TradingConfig
	cfg.ApplyDefaults()
	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.Equal(t, 60, cfg.PollIntervalSeconds)
	assert.InDelta(t, -3.0, cfg.StopLossPct, 1e-9)
	assert.InDelta(t, 5.0, cfg.ArmThresholdPct, 1e-9)
	assert.InDelta(t, 3.0, cfg.TrailingDropPct, 1e-9)

	custom := TradingConfig{BaseCurrency: "eur", PollIntervalSeconds: 30, StopLossPct: -5, ArmThresholdPct: 8, TrailingDropPct: 2}
	custom.ApplyDefaults()
	assert.Equal(t, "EUR", custom.BaseCurrency)
	assert.Equal(t, 30, custom.PollIntervalSeconds)
	assert.InDelta(t, -5.0, custom.StopLossPct, 1e-9)
}

func TestNonceIsStrictlyIncreasing(t *testing.T) {
	gen := NewNonceCounter()
	prev := gen.Nonce()
	for i := 0; i < 100; i++ {
		next := gen.Nonce()
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestGenerateKrakenAuthHeaders(t *testing.T) {
	data := url.Values{}
	data.Set("nonce", "12345")
	data.Set("pair", "XBTUSD")

	headers, err := GenerateKrakenAuthHeaders("test-key", "c2VjcmV0", "/0/private/AddOrder", "12345", data)
	require.NoError(t, err)
	assert.Equal(t, "test-key", headers["API-Key"])
	assert.NotEmpty(t, headers["API-Sign"])

	// Same inputs must sign identically.
	again, err := GenerateKrakenAuthHeaders("test-key", "c2VjcmV0", "/0/private/AddOrder", "12345", data)
	require.NoError(t, err)
	assert.Equal(t, headers["API-Sign"], again["API-Sign"])

	_, err = GenerateKrakenAuthHeaders("test-key", "not base64!!", "/0/private/AddOrder", "12345", data)
	assert.Error(t, err)
}
