package chat

import (
	"fmt"
	"math"
	"strconv"
)

// SetInFlightCost records the cost reported so far by an open exchange.
func (s *Session) SetInFlightCost(usd float64) {
	s.inFlightCost = usd
}

// InFlightCost returns the cost of the open exchange, zero when idle.
func (s *Session) InFlightCost() float64 {
	return s.inFlightCost
}

// RunningCost is the finalized total plus the in-flight cost.
func (s *Session) RunningCost() float64 {
	return s.Cost + s.inFlightCost
}

// CloseCosts folds the in-flight cost into the finalized total. Called once
// per exchange termination.
func (s *Session) CloseCosts() {
	s.Cost += s.inFlightCost
	s.inFlightCost = 0
}

// FormatCostUSD renders dollars for amounts of at least one dollar and
// cents with two significant digits below that.
func FormatCostUSD(amount float64) string {
	if amount >= 1 {
		return fmt.Sprintf("$%.2f", amount)
	}
	return "¢" + strconv.FormatFloat(roundSignificant(amount*100, 2), 'f', -1, 64)
}

func roundSignificant(v float64, digits int) float64 {
	if v == 0 {
		return 0
	}
	magnitude := math.Floor(math.Log10(math.Abs(v)))
	scale := math.Pow(10, magnitude-float64(digits-1))
	rounded := math.Round(v/scale) * scale
	// Strip float noise from the division above.
	parsed, err := strconv.ParseFloat(strconv.FormatFloat(rounded, 'g', digits, 64), 64)
	if err != nil {
		return rounded
	}
	return parsed
}
