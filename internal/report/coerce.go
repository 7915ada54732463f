package report

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	amountNoise  = strings.NewReplacer("$", "", "€", "", ",", "")
	currencyCode = regexp.MustCompile(`^(.*\d)\s*[A-Za-z]{3}\s*$`)
)

// Coerce turns an extracted value into a finite number. Strings are cleaned of
// currency symbols, thousands separators and a currency code following the
// amount ("1,234.50 USD", "$ 10", "€5"). Numbers are accepted as-is unless they
// are NaN or infinite.
func Coerce(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case decimal.Decimal:
		return finite(x.InexactFloat64())
	case string:
		return parseAmount(x)
	default:
		return parseAmount(fmt.Sprint(x))
	}
}

func parseAmount(s string) (float64, bool) {
	s = currencyCode.ReplaceAllString(strings.TrimSpace(amountNoise.Replace(s)), "$1")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

// ParseFolio reads a folio as a number for ordering. Only plain numeric text
// qualifies: "FAC3" or "12-A" do not.
func ParseFolio(folio string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(folio), 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
