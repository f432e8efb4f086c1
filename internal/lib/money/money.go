// Package money округляет денежные суммы для отображения.
package money

import "github.com/shopspring/decimal"

// Round2 округляет сумму до двух знаков после запятой (половина округляется от нуля).
func Round2(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}
