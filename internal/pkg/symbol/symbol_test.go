package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := map[string]Symbol{
		"XAU/USD":       {Base: "XAU", Quote: "USD"},
		" btc-usdt ":    {Base: "BTC", Quote: "USDT"},
		"ETHUSDT":       {Base: "ETH", Quote: "USDT"},
		"BTC/USDT:USDT": {Base: "BTC", Quote: "USDT"},
		"XAUUSD":        {Base: "XAU", Quote: "USD"},
		"sol_usdc":      {Base: "SOL", Quote: "USDC"},
		"":              {},
		"/USDT":         {},
		"GOLD":          {},
	}
	for in, want := range cases {
		assert.Equal(t, want, Parse(in), in)
	}
}

func TestToExchange(t *testing.T) {
	assert.Equal(t, "BTCUSDT", ToExchange(" btc/usdt "))
	assert.Equal(t, "ETHUSDT", ToExchange("eth-usdt"))
	assert.Equal(t, "GOLD", ToExchange("gold"))
	assert.Equal(t, "XAU/USD", Parse("xauusd").Display())
	assert.True(t, IsValid("ETH/USDT"))
	assert.False(t, IsValid("GOLD"))
}
