package models

import "github.com/shopspring/decimal"

// RoundHalfAwayFromZero rounds value to the given number of decimal places,
// rounding ties away from zero.
func RoundHalfAwayFromZero(value float64, places int32) float64 {
	return decimal.NewFromFloat(value).Round(places).InexactFloat64()
}

// RoundScore rounds value to the nearest integer, ties away from zero.
func RoundScore(value float64) int {
	return int(decimal.NewFromFloat(value).Round(0).IntPart())
}

func roundRate(value float64) float64 {
	return RoundHalfAwayFromZero(value, 2)
}
