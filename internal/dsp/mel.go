package dsp

import "math"

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterbank builds triangular filters spanning 0 Hz to Nyquist, evenly
// spaced on the mel scale. Each row maps one band's weight across FFT bins.
func melFilterbank(bands, binCount, sampleRate int) [][]float64 {
	nyquist := float64(sampleRate) / 2
	melMax := hzToMel(nyquist)

	centers := make([]float64, bands+2)
	for i := range centers {
		centers[i] = melToHz(melMax * float64(i) / float64(bands+1))
	}

	binHz := nyquist / float64(binCount-1)
	filters := make([][]float64, bands)
	for band := 0; band < bands; band++ {
		lower, center, upper := centers[band], centers[band+1], centers[band+2]
		filter := make([]float64, binCount)
		for bin := 0; bin < binCount; bin++ {
			freq := float64(bin) * binHz
			switch {
			case freq <= lower || freq >= upper:
			case freq <= center:
				filter[bin] = (freq - lower) / (center - lower)
			default:
				filter[bin] = (upper - freq) / (upper - center)
			}
		}
		filters[band] = filter
	}
	return filters
}

// mfcc converts mel band energies to cepstral coefficients with a log
// compression and a type-II DCT.
func mfcc(melEnergies []float64, count int) []float64 {
	logs := make([]float64, len(melEnergies))
	for i, e := range melEnergies {
		logs[i] = math.Log(e + 1e-10)
	}
	n := float64(len(logs))
	out := make([]float64, count)
	for k := 0; k < count; k++ {
		var sum float64
		for i, v := range logs {
			sum += v * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/n)
		}
		out[k] = sum * math.Sqrt(2/n)
	}
	return out
}
