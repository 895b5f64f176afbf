package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// BlockAverage splits series into nblocks equal blocks and returns the
// mean and the standard error of the block means. Trailing samples that
// do not fill a block are dropped.
func BlockAverage(series []float64, nblocks int) (mean, stderr float64) {
	if nblocks < 2 || len(series) < nblocks {
		return stat.Mean(series, nil), math.NaN()
	}
	size := len(series) / nblocks
	means := make([]float64, nblocks)
	for b := range means {
		means[b] = stat.Mean(series[b*size:(b+1)*size], nil)
	}
	mean, std := stat.MeanStdDev(means, nil)
	return mean, std / math.Sqrt(float64(nblocks))
}

func linearFit(xs, ys []float64) (alpha, beta float64) {
	return stat.LinearRegression(xs, ys, nil, false)
}
