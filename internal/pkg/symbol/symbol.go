package symbol

import (
	"strings"
)

// Symbol 是拆分后的交易品种，例如 XAU/USD、BTC/USDT。
type Symbol struct {
	Base  string
	Quote string
}

// Display 返回 BASE/QUOTE 形式，用于日志与通知。
func (s Symbol) Display() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Exchange 返回交易所下单使用的拼接形式（BASEQUOTE）。
func (s Symbol) Exchange() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

var quoteCurrencies = []string{"USDT", "USDC", "BUSD", "FDUSD", "USD", "BTC", "ETH"}

// Parse 识别 "XAU/USD"、"btc-usdt"、"ETHUSDT"、"BTC/USDT:USDT" 等写法；无法识别时返回零值。
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	for _, sep := range []string{"/", "-", "_"} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			base, quote := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
			if base == "" || quote == "" {
				return Symbol{}
			}
			return Symbol{Base: base, Quote: quote}
		}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Symbol{}
}

// ToExchange 将任意写法转换为交易所形式；无法拆分时原样大写返回。
func ToExchange(s string) string {
	if ex := Parse(s).Exchange(); ex != "" {
		return ex
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}
