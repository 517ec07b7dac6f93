package timeseries

// Point is one (capital, yield) observation fed to the elasticity estimator.
// Both fields must be present values; rows with a missing TVL or APY are
// filtered out by the storage query before reaching the estimator.
type Point struct {
	TVLUSD float64
	APY    float64
}

// SlopeEstimate summarizes an ordinary least squares fit of APY against TVL.
type SlopeEstimate struct {
	Slope   float64
	MeanTVL float64
	MeanAPY float64
	MinTVL  float64
	MaxTVL  float64
	Count   int
}

// EstimateSlope fits APY = a + Slope*TVL by ordinary least squares and returns
// the slope with summary statistics over the supplied set.
//
// points must be non-empty; callers skip pools with no qualifying history
// instead of invoking the estimator. When every TVL value is identical
// (including the single-point case) the regression is degenerate and the
// slope is 0 rather than an error.
//
// All arithmetic is plain float64 in input order. TVL magnitudes (millions)
// dwarf APY magnitudes (single digits); no rescaling is applied, the slope is
// a rough elasticity signal, not a calibrated model.
func EstimateSlope(points []Point) SlopeEstimate {
	n := len(points)

	sumTVL := 0.0
	sumAPY := 0.0
	minTVL := points[0].TVLUSD
	maxTVL := points[0].TVLUSD
	for _, p := range points {
		sumTVL += p.TVLUSD
		sumAPY += p.APY
		if p.TVLUSD < minTVL {
			minTVL = p.TVLUSD
		}
		if p.TVLUSD > maxTVL {
			maxTVL = p.TVLUSD
		}
	}
	meanTVL := sumTVL / float64(n)
	meanAPY := sumAPY / float64(n)

	varTVL := 0.0
	cov := 0.0
	for _, p := range points {
		d := p.TVLUSD - meanTVL
		varTVL += d * d
		cov += d * (p.APY - meanAPY)
	}

	slope := 0.0
	if varTVL != 0 {
		slope = cov / varTVL
	}

	return SlopeEstimate{
		Slope:   slope,
		MeanTVL: meanTVL,
		MeanAPY: meanAPY,
		MinTVL:  minTVL,
		MaxTVL:  maxTVL,
		Count:   n,
	}
}
