package services

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

func toDecimal(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

func toFloat(value decimal.Decimal) float64 {
	f, _ := value.Round(2).Float64()
	return f
}

func roundCents(value float64) float64 {
	return toFloat(toDecimal(value))
}
