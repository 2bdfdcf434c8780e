package formulas

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"CHF": "CHF ",
	"JPY": "¥",
}

// FormatMoney renders an amount with thousands separators and 2 decimals,
// prefixed by the currency symbol when one is known (e.g. "$105,750.00").
func FormatMoney(amount float64, currency string) string {
	body := humanize.FormatFloat("#,###.##", RoundMoney(amount))
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return body
	}
	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code + " "
	}
	if strings.HasPrefix(body, "-") {
		return "-" + symbol + body[1:]
	}
	return symbol + body
}

// FormatPct renders a percentage value (70 -> "70%", 12.345 -> "12.35%").
// Trailing zero decimals are dropped.
func FormatPct(pct float64) string {
	s := fmt.Sprintf("%.2f", Round(pct, 2))
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" {
		s = "0"
	}
	return s + "%"
}

// FormatRatioPct renders a ratio as a percentage (0.125 -> "12.5%").
func FormatRatioPct(ratio float64) string {
	return FormatPct(RatioToPct(ratio))
}

// FormatSignedRatioPct is FormatRatioPct with an explicit plus sign for gains.
func FormatSignedRatioPct(ratio float64) string {
	s := FormatRatioPct(ratio)
	if ratio > 0 && s != "0%" {
		return "+" + s
	}
	return s
}
