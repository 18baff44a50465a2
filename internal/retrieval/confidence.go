package retrieval

import "math"

// Confidence is the per-fused-result trust signal spec.md §4.5 defines.
type Confidence struct {
	RankAgreement       float64
	ScoreConsistency    float64
	MultiSignalPresence float64
	Overall             float64
}

// ComputeConfidence derives Confidence for one fused result given the total
// number of rankers that ran (present or not) and each ranker's result-list
// length (needed for the rank-agreement normalization).
func ComputeConfidence(result FusedResult, rankerListLens map[string]int, totalRankers int) Confidence {
	var agreementValues []float64
	var scores []float64
	present := 0

	for _, c := range result.Contributions {
		if c.Rank == nil {
			continue
		}
		present++
		maxRank := rankerListLens[c.Name]
		if maxRank <= 0 {
			maxRank = 1
		}
		agreementValues = append(agreementValues, 1-float64(*c.Rank-1)/float64(maxRank))
		if c.Score != nil {
			scores = append(scores, *c.Score)
		}
	}

	rankAgreement := 0.0
	if len(agreementValues) > 0 {
		mean := meanOf(agreementValues)
		variance := varianceOf(agreementValues, mean)
		rankAgreement = mean * (1 - math.Min(math.Sqrt(variance), 0.5))
	}

	scoreConsistency := 1.0
	if len(scores) > 1 {
		mean := meanOf(scores)
		stddev := math.Sqrt(varianceOf(scores, mean))
		ratio := 0.0
		if mean != 0 {
			ratio = stddev / mean
		}
		scoreConsistency = 1 - clamp(ratio, 0, 1)
	}

	multiSignal := 0.0
	if totalRankers > 0 {
		multiSignal = float64(present) / float64(totalRankers)
	}

	overall := clamp(0.4*rankAgreement+0.3*scoreConsistency+0.3*multiSignal, 0, 1)

	return Confidence{
		RankAgreement:       rankAgreement,
		ScoreConsistency:    scoreConsistency,
		MultiSignalPresence: multiSignal,
		Overall:             overall,
	}
}

func meanOf(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func varianceOf(xs []float64, mean float64) float64 {
	sum := 0.0
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
