package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"aidjobs-crawler/internal/domain/entity"
)

// currencyToUSD is a static, deliberately coarse conversion table: good
// enough to bucket compensation into comparable ranges for search
// filtering, not for payroll. Rates are fixed and not refreshed.
var currencyToUSD = map[string]float64{
	"USD": 1.0,
	"EUR": 1.08,
	"GBP": 1.27,
	"CHF": 1.12,
	"KES": 0.0078,
	"NGN": 0.00062,
	"ZAR": 0.055,
	"INR": 0.012,
	"PHP": 0.018,
	"IDR": 0.000064,
	"BRL": 0.17,
	"COP": 0.00023,
}

var compensationRe = regexp.MustCompile(`(?i)(USD|EUR|GBP|CHF|KES|NGN|ZAR|INR|PHP|IDR|BRL|COP|\$|€|£)\s?([\d,]+(?:\.\d+)?)\s?(?:-|to)?\s?([\d,]+(?:\.\d+)?)?\s*(?:per\s+)?(year|annum|month|hour|day|hr|mo|yr)?`)

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

var periodToType = map[string]entity.CompensationType{
	"year": entity.CompensationSalary, "annum": entity.CompensationSalary, "yr": entity.CompensationSalary,
	"month": entity.CompensationMonthly, "mo": entity.CompensationMonthly,
	"hour": entity.CompensationHourly, "hr": entity.CompensationHourly,
	"day": entity.CompensationDaily,
}

// ParseCompensation extracts a structured compensation figure. Structured
// source fields (minAmount/maxAmount/currency/compType already present on
// the extracted posting) are trusted at confidence 0.9; free-text regex
// parsing of the description is used only as a fallback, at confidence
// 0.7.
func ParseCompensation(structured *entity.Compensation, text string) *entity.Compensation {
	if structured != nil && structured.MinAmount != nil {
		out := *structured
		out.Confidence = 0.9
		out.USDMin, out.USDMax = toUSD(out.Currency, out.MinAmount, out.MaxAmount)
		return &out
	}
	if text == "" {
		return nil
	}
	m := compensationRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	currency := strings.ToUpper(m[1])
	if sym, ok := currencySymbols[m[1]]; ok {
		currency = sym
	}
	min, err := parseAmount(m[2])
	if err != nil {
		return nil
	}
	var max *float64
	if m[3] != "" {
		if v, err := parseAmount(m[3]); err == nil {
			max = &v
		}
	}
	compType := entity.CompensationSalary
	if t, ok := periodToType[strings.ToLower(m[4])]; ok {
		compType = t
	}
	out := &entity.Compensation{
		Type:       compType,
		MinAmount:  &min,
		MaxAmount:  max,
		Currency:   currency,
		Visible:    true,
		Confidence: 0.7,
	}
	out.USDMin, out.USDMax = toUSD(currency, out.MinAmount, out.MaxAmount)
	return out
}

func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func toUSD(currency string, min, max *float64) (*float64, *float64) {
	rate, ok := currencyToUSD[currency]
	if !ok {
		return nil, nil
	}
	var usdMin, usdMax *float64
	if min != nil {
		v := *min * rate
		usdMin = &v
	}
	if max != nil {
		v := *max * rate
		usdMax = &v
	}
	return usdMin, usdMax
}
