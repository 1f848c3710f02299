package watermark

// MatchThreshold is the default minimum confidence for a positive match.
// Callers can override it per call.
const MatchThreshold = 0.85

// dummySeedPayload seeds the diagnostic extractor. The bits read under this
// seed are NOT the embedded digest; see DebugExtract.
const dummySeedPayload = "dummy"

// VerifyResult is the outcome of checking a payload against an image.
type VerifyResult struct {
	IsMatch    bool
	Confidence float64
	// Recovered is the digest read under the expected payload's seed.
	Recovered Digest
}

// VerifyPixels checks whether pix carries the mark for payload. The match
// predicate requires both the confidence to reach threshold and the
// recovered digest to equal the expected digest byte for byte; an unmarked
// image therefore reports a non-match rather than an error. A threshold of 0
// (or below) selects MatchThreshold.
func VerifyPixels(pix *Pixmap, payload string, threshold float64) (VerifyResult, error) {
	if threshold <= 0 {
		threshold = MatchThreshold
	}
	expected := DeriveDigest(payload)
	recovered, conf, err := ExtractDigest(pix, expected)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{
		IsMatch:    conf >= threshold && recovered == expected,
		Confidence: conf,
		Recovered:  recovered,
	}, nil
}

// DebugExtract runs the extractor under a fixed diagnostic seed (the digest
// of "dummy"). Because the block schedule depends on the embedded payload's
// digest, the returned bits are whatever sign pattern happens to sit under
// the diagnostic schedule — they are not, and cannot be, the embedded
// digest. Useful only for eyeballing whether an image produces stable,
// biased votes at all.
func DebugExtract(pix *Pixmap) (Digest, float64, error) {
	return ExtractDigest(pix, DeriveDigest(dummySeedPayload))
}
