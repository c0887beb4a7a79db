package indicators

import "math"

// MinDenominator is substituted for any divisor closer to zero than itself.
const MinDenominator = 1e-9

// SafeDiv divides num by den, replacing a degenerate denominator with MinDenominator.
func SafeDiv(num, den float64) float64 {
	if math.Abs(den) < MinDenominator {
		if den < 0 {
			den = -MinDenominator
		} else {
			den = MinDenominator
		}
	}
	return num / den
}

// SMA returns the simple average of the last period values (all values when shorter).
func SMA(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if period <= 0 || period > len(values) {
		period = len(values)
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// StdDev returns the population standard deviation of the last period values.
func StdDev(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if period <= 0 || period > len(values) {
		period = len(values)
	}
	window := values[len(values)-period:]
	mean := SMA(window, period)
	sum := 0.0
	for _, v := range window {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(period))
}

// EMA returns the exponential moving average series. The first value is the
// SMA of the first period inputs; the result is empty when input is shorter than period.
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	seed := 0.0
	for _, p := range prices[:period] {
		seed += p
	}
	seed /= float64(period)

	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(prices)-period+1)
	out = append(out, seed)
	ema := seed
	for _, p := range prices[period:] {
		ema = p*k + ema*(1-k)
		out = append(out, ema)
	}
	return out
}

// LastEMA returns the latest EMA value, falling back to the SMA of everything
// available when the series is shorter than period.
func LastEMA(prices []float64, period int) float64 {
	series := EMA(prices, period)
	if len(series) == 0 {
		return SMA(prices, len(prices))
	}
	return series[len(series)-1]
}

// RSI computes a Wilder-style relative strength index over the last period changes.
// Returns 50 when fewer than period prices are available.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period || len(prices) < 2 {
		return 50
	}
	changes := period
	if changes > len(prices)-1 {
		changes = len(prices) - 1
	}

	gains, losses := 0.0, 0.0
	for i := len(prices) - changes; i < len(prices); i++ {
		ch := prices[i] - prices[i-1]
		if ch > 0 {
			gains += ch
		} else {
			losses -= ch
		}
	}
	avgGain := gains / float64(changes)
	avgLoss := losses / float64(changes)

	if avgGain == 0 && avgLoss == 0 {
		return 50
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	rsi := 100 - 100/(1+rs)
	return math.Max(0, math.Min(100, rsi))
}

// LinearRegressionSlope returns the least-squares slope of values against their index.
func LinearRegressionSlope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	den := fn*sumXX - sumX*sumX
	return SafeDiv(fn*sumXY-sumX*sumY, den)
}

// Momentum is the change between the first and last value of the trailing lookback window.
func Momentum(prices []float64, lookback int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if lookback <= 0 || lookback > len(prices) {
		lookback = len(prices)
	}
	window := prices[len(prices)-lookback:]
	return window[len(window)-1] - window[0]
}
