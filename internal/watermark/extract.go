package watermark

import (
	"github.com/maevik/fingermark/internal/watermark/dct"
)

// ExtractDigest reads 64 bits back out of pix using the generator stream
// seeded by seed, which must be the digest of the expected payload for the
// recovered bits to mean anything. It returns the recovered digest and a
// confidence in [0,1].
//
// Each scheduled sample contributes the sign of its DCT coefficient as a
// vote: +1 for positive, -1 otherwise (a zero coefficient votes -1). Signs
// rather than magnitudes, because JPEG and WebP re-quantization scatters
// magnitudes across orders of magnitude while the forced sign survives.
func ExtractDigest(pix *Pixmap, seed Digest) (Digest, float64, error) {
	if err := pix.validate(); err != nil {
		return Digest{}, 0, err
	}

	blocksX := pix.Width / BlockSize
	blocksY := pix.Height / BlockSize
	totalBlocks := blocksX * blocksY

	soft := make([]float64, encodedLength)
	if totalBlocks == 0 {
		// No carrier blocks: every coded bit is a coin toss.
		for i := range soft {
			soft[i] = 0.5
		}
		bits, conf := decodeRepetition(soft)
		return digestFromBits(bits), conf, nil
	}

	y := pix.luminance()
	rng := newXorshift(seed[:])
	sched := newSchedule(rng, totalBlocks, encodedLength)

	var block, coefs [64]float64
	for bitIdx := 0; bitIdx < encodedLength; bitIdx++ {
		voteSum := 0.0
		for b := 0; b < sched.blocksPerBit; b++ {
			blockIdx, coefIdx := sched.nextSample(rng, totalBlocks)
			bx := blockIdx % blocksX
			by := blockIdx / blocksX

			copyBlock(y, pix.Width, pix.Height, bx, by, &block)
			dct.Forward(&coefs, &block)

			u, v := midFreqTable[coefIdx][0], midFreqTable[coefIdx][1]
			if coefs[u*BlockSize+v] > 0 {
				voteSum++
			} else {
				voteSum--
			}
		}
		avg := voteSum / float64(sched.blocksPerBit)
		soft[bitIdx] = (avg + 1) / 2
	}

	bits, conf := decodeRepetition(soft)
	return digestFromBits(bits), conf, nil
}
