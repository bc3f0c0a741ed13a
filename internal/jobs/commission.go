// internal/jobs/commission.go
package jobs

import "math"

// CommissionSplitter делит итоговую сумму заказа на выплату исполнителю
// и комиссию платформы. Комиссия округляется до копеек, выплата - точная
// разность, поэтому сумма частей всегда равна целому без потери копейки.
type CommissionSplitter struct {
	feeRate float64
}

// NewCommissionSplitter создает сплиттер с долей платформы (0..1).
func NewCommissionSplitter(feeRate float64) *CommissionSplitter {
	return &CommissionSplitter{feeRate: feeRate}
}

// Split возвращает (выплата исполнителю, комиссия платформы).
func (cs *CommissionSplitter) Split(total float64) (payout, fee float64) {
	fee = round2(total * cs.feeRate)
	payout = round2(total) - fee
	return payout, fee
}

// GrossUp возвращает сумму к списанию с постера, при которой базовая
// сумма достаётся исполнителю после удержания комиссии сверху.
// Используется при доначислении за одобренное доп. время.
func (cs *CommissionSplitter) GrossUp(base float64) float64 {
	return round2(base * (1 + cs.feeRate))
}

// FeeRate возвращает долю платформы.
func (cs *CommissionSplitter) FeeRate() float64 {
	return cs.feeRate
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
