package watermark

import (
	"math"

	"github.com/maevik/fingermark/internal/watermark/dct"
)

// EmbeddingStrength is the magnitude floor forced onto a selected DCT
// coefficient. Larger values survive harsher re-encoding at the cost of
// visibility. It is a calibration constant, not part of the interchange
// format, but raising it changes the confidence recoverable from old marks.
const EmbeddingStrength = 12.0

// sample is one (coefficient, bit) pair scheduled onto a block.
type sample struct {
	coef int
	bit  int
}

// EmbedDigest writes the 64-bit digest into a copy of pix and returns it.
// The digest is repetition-coded to 192 bits; each coded bit lands in
// blocksPerBit luminance blocks chosen by the seeded generator, where the
// sign of one mid-frequency DCT coefficient is forced to encode the bit with
// magnitude at least EmbeddingStrength.
//
// Images smaller than one block come back as an untouched copy. Partial
// right/bottom strips are never modified.
func EmbedDigest(pix *Pixmap, digest Digest) (*Pixmap, error) {
	if err := pix.validate(); err != nil {
		return nil, err
	}

	out := pix.Clone()
	blocksX := pix.Width / BlockSize
	blocksY := pix.Height / BlockSize
	totalBlocks := blocksX * blocksY
	if totalBlocks == 0 {
		return out, nil
	}

	origY := pix.luminance()
	coded := encodeRepetition(digest.bits())

	rng := newXorshift(digest[:])
	sched := newSchedule(rng, totalBlocks, len(coded))

	// Bucket samples per block so each carrier block is transformed once,
	// even when several coded bits land in it.
	buckets := make(map[int][]sample)
	for _, bit := range coded {
		for b := 0; b < sched.blocksPerBit; b++ {
			blockIdx, coefIdx := sched.nextSample(rng, totalBlocks)
			if blockIdx >= totalBlocks {
				// Out-of-grid draw (see nextSample): nothing is written.
				continue
			}
			buckets[blockIdx] = append(buckets[blockIdx], sample{coef: coefIdx, bit: bit})
		}
	}

	var block, coefs [64]float64
	for blockIdx, samples := range buckets {
		bx := blockIdx % blocksX
		by := blockIdx / blocksX

		copyBlock(origY, pix.Width, pix.Height, bx, by, &block)
		dct.Forward(&coefs, &block)

		// Several samples can hit the same coefficient of the same block;
		// the majority bit wins and ties go to 1.
		var ones, total [len(midFreqTable)]int
		for _, s := range samples {
			total[s.coef]++
			ones[s.coef] += s.bit
		}
		for c := range midFreqTable {
			if total[c] == 0 {
				continue
			}
			u, v := midFreqTable[c][0], midFreqTable[c][1]
			cur := coefs[u*BlockSize+v]
			mag := math.Abs(cur) + EmbeddingStrength
			if 2*ones[c] >= total[c] {
				coefs[u*BlockSize+v] = mag
			} else {
				coefs[u*BlockSize+v] = -mag
			}
		}

		dct.Inverse(&block, &coefs)
		applyBlockDelta(out, origY, bx, by, &block)
	}

	return out, nil
}
