package watermark

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RepetitionFactor is the redundancy of the bit-level code: every digest bit
// is embedded this many times in consecutive coded positions.
const RepetitionFactor = 3

// encodedLength is the number of coded bits per mark.
const encodedLength = PayloadBits * RepetitionFactor

// encodeRepetition expands bits by consecutive repetition.
func encodeRepetition(bits []int) []int {
	out := make([]int, 0, len(bits)*RepetitionFactor)
	for _, b := range bits {
		for r := 0; r < RepetitionFactor; r++ {
			out = append(out, b)
		}
	}
	return out
}

// decodeRepetition collapses soft values in [0,1] back to hard bits. Each
// group of RepetitionFactor samples is averaged; the bit is 1 iff the mean
// exceeds 0.5 (a mean of exactly 0.5 decodes to 0). The per-bit confidence
// is |mean-0.5|*2 and the returned confidence is the mean of those, so a
// clean mark scores 1.0 and pure noise scores near 0.
func decodeRepetition(soft []float64) ([]int, float64) {
	n := len(soft) / RepetitionFactor
	bits := make([]int, n)
	perBit := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for r := 0; r < RepetitionFactor; r++ {
			sum += soft[i*RepetitionFactor+r]
		}
		mean := sum / RepetitionFactor
		if mean > 0.5 {
			bits[i] = 1
		}
		perBit[i] = math.Abs(mean-0.5) * 2
	}
	if n == 0 {
		return bits, 0
	}
	return bits, stat.Mean(perBit, nil)
}
