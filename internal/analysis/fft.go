package analysis

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"
)

// PowerSpectrum returns |X_k| for the first half of the transform of the
// mean-removed data.
func PowerSpectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}
	mean := stat.Mean(data, nil)
	centred := make([]float64, len(data))
	for i, v := range data {
		centred[i] = v - mean
	}
	coeffs := fft.FFTReal(centred)
	ps := make([]float64, len(coeffs)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(coeffs[i])
	}
	return ps
}

// Spectrum pairs PowerSpectrum with the frequency of each bin for samples
// taken every dt.
func Spectrum(data []float64, dt float64) (freq, power []float64) {
	power = PowerSpectrum(data)
	freq = make([]float64, len(power))
	for k := range freq {
		freq[k] = float64(k) / (float64(len(data)) * dt)
	}
	return freq, power
}

// DominantFrequency returns the frequency of the strongest nonzero bin.
func DominantFrequency(data []float64, dt float64) float64 {
	freq, power := Spectrum(data, dt)
	best, at := math.Inf(-1), 0.0
	for k := 1; k < len(power); k++ {
		if power[k] > best {
			best, at = power[k], freq[k]
		}
	}
	return at
}
