package forecast

// linearFit computes an ordinary least-squares line y = slope*x + intercept
// over points indexed 0..n-1. ok is false when the series is too short
// or degenerate to fit (fewer than two points, or zero variance in x).
func linearFit(points []float64) (slope, intercept float64, ok bool) {
	n := float64(len(points))
	if n < 2 {
		return 0, 0, false
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range points {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}

	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept, true
}

// mean returns the arithmetic mean, or 0 for an empty slice.
func mean(points []float64) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, v := range points {
		sum += v
	}
	return sum / float64(len(points))
}
