package core

import "math"

// ReductionFactor is the non-negative integer r such that the chosen
// resolution level's logical scale is 2^(-r).
type ReductionFactor int

// Scale returns 2^(-r).
func (r ReductionFactor) Scale() float64 { return math.Exp2(-float64(r)) }

// DefaultSafetyMargin is β, the default passed for beta when a caller has no
// sharper guarantee to supply. It no longer scales the threshold (see
// ComputeReductionFactor) — picking the largest r with 2^(-r) >= targetScale
// already guarantees the selected level never under-resolves the request, so
// multiplying β into the threshold only over-reduced by one level at exact
// power-of-two targets (e.g. a plain 25% scale coming out 2x too small).
const DefaultSafetyMargin = 0.5

// ComputeReductionFactor returns the largest r such that 2^(-r) ≥
// targetScale. targetScale is the residual scale t ∈ (0,1] requested for the
// region being read (after crop, before any other operation); targetScale ≥
// 1 is treated as "no reduction" (r = 0), which also resolves the open
// question: percent = 1.0 forces level 0 rather than being rejected by a
// strict "<=" comparison against reduced levels. beta is accepted for
// callers that only have a looser lower bound on the scale they can
// tolerate and is substituted for a non-positive targetScale; it no longer
// multiplies into the threshold itself.
func ComputeReductionFactor(targetScale, beta float64) ReductionFactor {
	if beta <= 0 {
		beta = DefaultSafetyMargin
	}
	if targetScale >= 1.0 {
		return 0
	}
	if targetScale <= 0 {
		targetScale = beta
	}

	threshold := targetScale
	// r = max k such that 2^(-k) >= threshold  <=>  r = floor(-log2(threshold)).
	r := ReductionFactor(math.Floor(-math.Log2(threshold)))
	if r < 0 {
		r = 0
	}
	// Floating-point guard: nudge r down if rounding pushed it past the
	// boundary, then up while the inequality still holds (keeps "max k").
	for r > 0 && math.Exp2(-float64(r)) < threshold {
		r--
	}
	for math.Exp2(-float64(r+1)) >= threshold {
		r++
	}
	return r
}

// LevelSelection is the result of choosing a pyramidal level plus any
// additional software subsampling needed to reach the requested reduction.
type LevelSelection struct {
	LevelIndex        int             // index into ImageInfo.Levels
	Level             Level           // the chosen level's dimensions
	ReductionFactor   ReductionFactor // total r across level + software subsample
	SoftwareSubsample int             // power-of-two factor applied during read(), 1 = none
}

// SelectLevel computes the ideal reduction factor for targetScale and
// clamps it to the deepest level the source actually has, making up any
// remaining reduction with a software subsample (the non-pyramidal /
// striped-TIFF path, where only level 0 ever exists).
func SelectLevel(info ImageInfo, targetScale float64) LevelSelection {
	ideal := ComputeReductionFactor(targetScale, DefaultSafetyMargin)
	maxLevel := len(info.Levels) - 1
	if maxLevel < 0 {
		maxLevel = 0
	}

	levelIdx := int(ideal)
	if levelIdx > maxLevel {
		levelIdx = maxLevel
	}
	extra := int(ideal) - levelIdx
	subsample := 1 << uint(extra)

	var lvl Level
	if levelIdx < len(info.Levels) {
		lvl = info.Levels[levelIdx]
	} else {
		lvl = Level{Width: info.Width, Height: info.Height}
	}

	return LevelSelection{
		LevelIndex:        levelIdx,
		Level:             lvl,
		ReductionFactor:   ReductionFactor(levelIdx + extra),
		SoftwareSubsample: subsample,
	}
}

// NearestLevel picks the pyramid level whose width is closest to
// targetWidth without requiring the max-k safety-margin formula; used when
// a reader's levels are not exact powers of two apart (e.g. some JPEG2000
// encoders emit irregular DWT level counts). Ties prefer the larger
// (higher-quality, i.e. earlier/less-reduced) level tie-break
// rule.
func NearestLevel(levels []Level, targetWidth int) int {
	best := 0
	bestDist := math.MaxInt64
	for i, lvl := range levels {
		dist := lvl.Width - targetWidth
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist || (dist == bestDist && lvl.Width > levels[best].Width) {
			best = i
			bestDist = dist
		}
	}
	return best
}
