package auth

import (
	"voicegate-server-go/internal/domain/risk"
)

// Outcome is the final authentication verdict.
type Outcome string

const (
	OutcomeAccept         Outcome = "ACCEPT"
	OutcomeReject         Outcome = "REJECT"
	OutcomeRebindRequired Outcome = "REBIND_REQUIRED"
)

// Reason codes attached to every decision for audit and testing.
type Reason string

const (
	ReasonSimilarityPass Reason = "SIMILARITY_PASS"
	ReasonSimilarityFail Reason = "SIMILARITY_FAIL"
	ReasonAIRescue       Reason = "AI_RESCUE"
	ReasonAIVeto         Reason = "AI_VETO"
)

// Decision is the combiner's verdict on one attempt.
type Decision struct {
	Outcome Outcome
	Reason  Reason
}

// Accepted reports whether the attempt passed.
func (d Decision) Accepted() bool {
	return d.Outcome == OutcomeAccept
}

// Combiner is the single authority for accept/reject. The advisory signal
// is asymmetric: it can rescue a borderline score or veto a passing one,
// but only within the configured band and never below the absolute floor.
type Combiner struct {
	Band  float64 // rescue margin below threshold
	Floor float64 // no assessment can accept below this score
}

// Combine decides the attempt given the similarity score, the effective
// threshold and an optional risk assessment. Pure function.
func (c Combiner) Combine(score, threshold float64, assessment *risk.Assessment) Decision {
	if assessment != nil {
		rescue := assessment.Recommendation == risk.RecommendAccept &&
			assessment.Level == risk.LevelLow &&
			score >= threshold-c.Band &&
			score >= c.Floor
		if rescue {
			if score >= threshold {
				return Decision{Outcome: OutcomeAccept, Reason: ReasonSimilarityPass}
			}
			return Decision{Outcome: OutcomeAccept, Reason: ReasonAIRescue}
		}

		veto := assessment.Recommendation == risk.RecommendReject &&
			assessment.Level == risk.LevelHigh
		if veto {
			return Decision{Outcome: OutcomeReject, Reason: ReasonAIVeto}
		}
	}

	if score >= threshold {
		return Decision{Outcome: OutcomeAccept, Reason: ReasonSimilarityPass}
	}
	return Decision{Outcome: OutcomeReject, Reason: ReasonSimilarityFail}
}
