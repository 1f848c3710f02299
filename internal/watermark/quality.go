package watermark

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// QualityReport summarizes how far a watermarked buffer drifted from its
// original. Reported alongside embed jobs so operators can spot strength
// settings that have become visible.
type QualityReport struct {
	MSE       float64 // mean squared error over R,G,B
	PSNR      float64 // dB; +Inf for identical buffers
	MaxDelta  float64 // largest single-channel change
	MeanDelta float64 // mean absolute single-channel change
}

// Quality compares two pixmaps of identical shape. Alpha is excluded: the
// codec never touches it.
func Quality(orig, marked *Pixmap) (QualityReport, error) {
	if err := orig.validate(); err != nil {
		return QualityReport{}, err
	}
	if err := marked.validate(); err != nil {
		return QualityReport{}, err
	}
	if orig.Width != marked.Width || orig.Height != marked.Height {
		return QualityReport{}, &Error{Kind: KindInputShape, Msg: "quality: dimension mismatch"}
	}

	n := orig.Width * orig.Height * 3
	sq := make([]float64, 0, n)
	abs := make([]float64, 0, n)
	maxDelta := 0.0
	for i := 0; i < len(orig.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			d := float64(marked.Pix[i+c]) - float64(orig.Pix[i+c])
			ad := math.Abs(d)
			if ad > maxDelta {
				maxDelta = ad
			}
			sq = append(sq, d*d)
			abs = append(abs, ad)
		}
	}

	mse := stat.Mean(sq, nil)
	psnr := math.Inf(1)
	if mse > 0 {
		psnr = 10 * math.Log10(255*255/mse)
	}
	return QualityReport{
		MSE:       mse,
		PSNR:      psnr,
		MaxDelta:  maxDelta,
		MeanDelta: stat.Mean(abs, nil),
	}, nil
}
