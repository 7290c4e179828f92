package delivery

import "github.com/shopspring/decimal"

// minorUnitsPerMajor is the conversion factor for providers that price in cents/pence
const minorUnitsPerMajor = 100

// fromMinorUnits converts an integer minor-unit amount into major units
func fromMinorUnits(v int64) decimal.Decimal {
	return decimal.NewFromInt(v).Div(decimal.NewFromInt(minorUnitsPerMajor))
}

// toMinorUnits converts a major-unit amount into integer minor units, rounding half away from zero
func toMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(minorUnitsPerMajor)).Round(0).IntPart()
}
