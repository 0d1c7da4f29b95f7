package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"voicegate-server-go/internal/domain/binding/aggregate"
)

func TestThresholdPolicy(t *testing.T) {
	policy := ThresholdPolicy{Baseline: 0.75}

	tests := []struct {
		name        string
		trustLevel  aggregate.TrustLevel
		isNewDevice bool
		want        float64
	}{
		{"trusted established device gets lower bar", aggregate.TrustTrusted, false, 0.70},
		{"trusted but new device gets higher bar", aggregate.TrustTrusted, true, 0.80},
		{"unverified gets higher bar", aggregate.TrustUnverified, false, 0.80},
		{"revoked gets higher bar", aggregate.TrustRevoked, false, 0.80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Effective(tt.trustLevel, tt.isNewDevice)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestThresholdPolicyClamping(t *testing.T) {
	high := ThresholdPolicy{Baseline: 0.95}
	assert.InDelta(t, 0.90, high.Effective(aggregate.TrustRevoked, true), 1e-9)

	low := ThresholdPolicy{Baseline: 0.60}
	assert.InDelta(t, 0.65, low.Effective(aggregate.TrustTrusted, false), 1e-9)
}

func TestThresholdPolicyAlwaysInRange(t *testing.T) {
	levels := []aggregate.TrustLevel{aggregate.TrustUnverified, aggregate.TrustTrusted, aggregate.TrustRevoked}

	for baseline := -0.5; baseline <= 1.5; baseline += 0.01 {
		policy := ThresholdPolicy{Baseline: baseline}
		for _, level := range levels {
			for _, newDevice := range []bool{false, true} {
				got := policy.Effective(level, newDevice)
				assert.GreaterOrEqual(t, got, 0.65)
				assert.LessOrEqual(t, got, 0.90)
			}
		}
	}
}
