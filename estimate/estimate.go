// Copyright 2025, the Neptune contributors.

// Package estimate derives the k-mer size and the extraction thresholds
// from the target statistics and the confidence settings. Every value may
// instead be supplied explicitly, in which case it is validated and used
// directly.
package estimate

import (
	"fmt"
	"math"

	"github.com/phac-nml/neptune/seq"
)

// Accepting more expected arbitrary hits than this within the largest
// genome makes exact k-mer matching uninformative.
const expectedHitsThreshold = 0.05

// Hard ceiling on the k search. With GC-content 1.0 and a genome of 10^80
// bases the required k is 535, so nothing larger is ever useful.
const maxKMerSize = 535

// Minimum signature size defaults to this multiple of k.
const signatureSizeFactor = 4

// ParameterError reports invalid or out-of-range configuration. It always
// fires before the pipeline starts and is not retryable.
type ParameterError struct {
	Name   string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter %s: %s", e.Name, e.Reason)
}

// Settings carries the tunable inputs to estimation. Zero values request
// estimation; non-zero values are validated and passed through.
type Settings struct {
	Rate       float64 // mutation/error probability per base
	Confidence float64 // statistical confidence, in (0, 1)
	GCContent  float64 // observed GC fraction; 0 = derive from targets

	K                int // k-mer size; 0 = estimate
	MinInclusionHits int // 0 = estimate
	MaxExclusionHits int // 0 = default (1)
	MaxGap           int // 0 = estimate
	MinSize          int // 0 = default (4k)
}

// Parameters is the finalized set used by the rest of the pipeline.
type Parameters struct {
	K                int
	MinInclusionHits int
	MaxExclusionHits int
	MaxGap           int
	MinSize          int
	GCContent        float64
	Rate             float64
	Confidence       float64
}

// probMutateMatch is the probability that two homologous bases both mutate
// to the same base under the given GC-content.
func probMutateMatch(gc float64) float64 {
	return (2*math.Pow(gc/(gc+1), 2)+math.Pow((1-gc)/(gc+1), 2))*(1-gc) +
		(2*math.Pow((1-gc)/(2-gc), 2)+math.Pow(gc/(2-gc), 2))*gc
}

// probBaseMatch is the probability that two homologous bases match under
// the given mutation rate and GC-content.
func probBaseMatch(rate, gc float64) float64 {
	return (1-rate)*(1-rate) + rate*rate*probMutateMatch(gc)
}

// probKMerMatch is the probability that two homologous k-mers match.
func probKMerMatch(rate, gc float64, k int) float64 {
	return math.Pow(probBaseMatch(rate, gc), float64(k))
}

// normPPF is the percent point function (inverse CDF) of the standard
// normal distribution.
func normPPF(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

// expectedKMerHits is the expected number of arbitrary (non-homologous)
// k-mer matches within a genome of size gs under the given base composition.
func expectedKMerHits(gc float64, gs, k int) float64 {
	a := 2 * math.Pow((1-gc)/2, 2)
	b := 2 * math.Pow(gc/2, 2)
	n := float64(gs - k + 1)
	pairs := n * (n - 1) / 2
	return math.Pow(a+b, float64(k)) * pairs
}

// estimateK finds the smallest odd k such that the expected number of
// arbitrary k-mer matches within the largest inclusion genome falls below
// the threshold. GC-content is taken at its most extreme across the
// inclusion targets, with a floor at 0.5.
func estimateK(inclusion []seq.Target) (int, error) {

	maxGenomeSize := 1
	maxGC := 0.5

	for _, t := range inclusion {
		gc, acgt := seq.GCContent(t.Seq)
		if acgt == 0 {
			return 0, &seq.InputError{
				Source: t.Path,
				Reason: fmt.Sprintf("record %s has no A, C, G or T characters", t.ID),
			}
		}
		if len(t.Seq) > maxGenomeSize {
			maxGenomeSize = len(t.Seq)
		}
		if gc > maxGC {
			maxGC = gc
		}
		if 1-gc > maxGC {
			maxGC = 1 - gc
		}
	}

	for k := 3; k < maxKMerSize; k += 2 {
		if expectedKMerHits(maxGC, maxGenomeSize, k) < expectedHitsThreshold {
			return k, nil
		}
	}
	return 0, &ParameterError{Name: "k", Reason: "no suitable k-mer size could be determined"}
}

// estimateInclusionHits is the minimum number of inclusion targets that must
// contain a k-mer for it to support a candidate. Derived from the binomial
// distribution over the remaining N-1 inclusion targets.
func estimateInclusionHits(totalInclusion int, rate, gc float64, k int, confidence float64) int {
	deviations := normPPF(confidence)

	p := probKMerMatch(rate, gc, k)
	q := 1 - p
	n := float64(totalInclusion)

	mean := (n - 1) * p
	stdev := math.Sqrt((n - 1) * p * q)

	estimate := math.Floor(1 + mean - deviations*stdev)
	if estimate < 0 {
		estimate = 0
	}
	return int(estimate)
}

// estimateGapSize bounds the run of non-matching positions tolerated while
// extending a candidate. Based on Feller recurrence times of k-length match
// runs, with Chebyshev deviations for the configured confidence.
func estimateGapSize(rate, gc float64, k int, confidence float64) int {
	p := probBaseMatch(rate, gc)
	q := 1 - p
	kf := float64(k)

	pk := math.Pow(p, kf)
	mean := (1 - pk) / (q * pk)
	variance := 1/math.Pow(q*pk, 2) - (2*kf+1)/(q*pk) - p/math.Pow(q, 2)
	stdev := math.Sqrt(variance)

	deviations := math.Sqrt(1 / (1 - confidence))
	return int(math.Ceil(mean + deviations*stdev))
}

// Estimate resolves all extraction parameters from the settings and the
// loaded target groups. Explicit settings bypass estimation but are still
// validated: in particular k may never exceed the shortest input record.
func Estimate(s Settings, inclusion, exclusion []seq.Target) (Parameters, error) {

	var p Parameters

	if s.Rate < 0 || s.Rate > 1 {
		return p, &ParameterError{Name: "rate", Reason: "must be within [0, 1]"}
	}
	if s.Confidence <= 0 || s.Confidence >= 1 {
		return p, &ParameterError{Name: "confidence", Reason: "must be within (0, 1)"}
	}
	if s.GCContent < 0 || s.GCContent > 1 {
		return p, &ParameterError{Name: "gc_content", Reason: "must be within [0, 1]"}
	}
	if len(inclusion) == 0 {
		return p, &seq.InputError{Reason: "no inclusion targets provided"}
	}
	if len(exclusion) == 0 {
		return p, &seq.InputError{Reason: "no exclusion targets provided"}
	}

	p.Rate = s.Rate
	p.Confidence = s.Confidence

	// GC-content for the hit and gap estimates: observed value when not
	// supplied, computed over all inclusion targets together.
	if s.GCContent > 0 {
		p.GCContent = s.GCContent
	} else {
		var sumGC, total float64
		for _, t := range inclusion {
			gc, acgt := seq.GCContent(t.Seq)
			sumGC += gc * float64(acgt)
			total += float64(acgt)
		}
		if total == 0 {
			return p, &seq.InputError{Reason: "inclusion targets have no A, C, G or T content"}
		}
		p.GCContent = sumGC / total
	}

	shortest := math.MaxInt
	for _, t := range append(append([]seq.Target{}, inclusion...), exclusion...) {
		if len(t.Seq) < shortest {
			shortest = len(t.Seq)
		}
	}

	if s.K > 0 {
		p.K = s.K
	} else if s.K < 0 {
		return p, &ParameterError{Name: "k", Reason: "must be positive"}
	} else {
		k, err := estimateK(inclusion)
		if err != nil {
			return p, err
		}
		p.K = k
	}
	if p.K > shortest {
		return p, &ParameterError{
			Name:   "k",
			Reason: fmt.Sprintf("k-mer size %d exceeds the shortest input record (%d bases)", p.K, shortest),
		}
	}

	switch {
	case s.MinInclusionHits > 0:
		p.MinInclusionHits = s.MinInclusionHits
	case s.MinInclusionHits < 0:
		return p, &ParameterError{Name: "min_inclusion_hits", Reason: "must be positive"}
	default:
		p.MinInclusionHits = estimateInclusionHits(len(inclusion), p.Rate, p.GCContent, p.K, p.Confidence)
	}

	switch {
	case s.MaxExclusionHits > 0:
		p.MaxExclusionHits = s.MaxExclusionHits
	case s.MaxExclusionHits < 0:
		return p, &ParameterError{Name: "max_exclusion_hits", Reason: "must be positive"}
	default:
		p.MaxExclusionHits = 1
	}

	switch {
	case s.MaxGap > 0:
		p.MaxGap = s.MaxGap
	case s.MaxGap < 0:
		return p, &ParameterError{Name: "max_gap", Reason: "must be positive"}
	default:
		p.MaxGap = estimateGapSize(p.Rate, p.GCContent, p.K, p.Confidence)
	}

	switch {
	case s.MinSize > 0:
		p.MinSize = s.MinSize
	case s.MinSize < 0:
		return p, &ParameterError{Name: "min_size", Reason: "must be positive"}
	default:
		p.MinSize = signatureSizeFactor * p.K
	}

	return p, nil
}
