package auth

import (
	"voicegate-server-go/internal/domain/binding/aggregate"
)

// Threshold bounds. Every effective threshold is clamped into this range
// regardless of baseline or adjustments.
const (
	thresholdMin = 0.65
	thresholdMax = 0.90

	trustAdjustment = 0.05
)

// ThresholdPolicy computes the effective acceptance threshold for an
// attempt. Pure function of its inputs.
type ThresholdPolicy struct {
	Baseline float64
}

// Effective returns the threshold for a binding in the given trust level.
// Established trusted devices get a lower bar; new or untrusted devices a
// higher one.
func (p ThresholdPolicy) Effective(trustLevel aggregate.TrustLevel, isNewDevice bool) float64 {
	threshold := p.Baseline

	switch {
	case isNewDevice, trustLevel == aggregate.TrustUnverified, trustLevel == aggregate.TrustRevoked:
		threshold += trustAdjustment
	case trustLevel == aggregate.TrustTrusted:
		threshold -= trustAdjustment
	}

	return clamp(threshold, thresholdMin, thresholdMax)
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
