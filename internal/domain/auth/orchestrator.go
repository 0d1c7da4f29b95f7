package auth

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"voicegate-server-go/internal/domain/binding/aggregate"
	"voicegate-server-go/internal/domain/binding/repository"
	"voicegate-server-go/internal/domain/eventbus"
	"voicegate-server-go/internal/domain/risk"
	"voicegate-server-go/internal/domain/voiceprint"
	"voicegate-server-go/internal/platform/errors"
	"voicegate-server-go/internal/platform/logging"
)

// Caller-facing failure taxonomy. Matched with errors.Is; everything else
// is an internal error.
var (
	// ErrBindingNotFound means no enrolled binding exists for the device.
	ErrBindingNotFound = stderrors.New("binding not found")

	// ErrAlreadyEnrolled means the device already holds a trusted binding.
	ErrAlreadyEnrolled = stderrors.New("binding already enrolled")

	// ErrTransientConflict means a concurrent mutation raced this one twice.
	ErrTransientConflict = stderrors.New("binding update conflict")
)

// Options tunes the decision pipeline.
type Options struct {
	BaselineThreshold float64
	AbsoluteFloor     float64
	AdvisoryBand      float64
	JWTSecret         string
	SessionTTL        time.Duration

	// DriftCorrection replaces the stored signature with the fresh sample
	// on every accepted verification. Off by default; the stored signature
	// then only changes through enroll and rebind.
	DriftCorrection bool
}

// VerifyRequest carries one login attempt.
type VerifyRequest struct {
	UserID      string
	DeviceID    string
	Fingerprint string
	Sample      voiceprint.Embedding
}

// VerifyResult is the outcome of one login attempt. Token is set only on
// ACCEPT. Rebound marks an accepted login that recovered a revoked binding.
type VerifyResult struct {
	Outcome    Outcome
	Reason     Reason
	Score      float64
	Threshold  float64
	Token      string
	Rebound    bool
	TrustLevel aggregate.TrustLevel
}

// Orchestrator sequences the decision pipeline for each request shape:
// compare, compute threshold, consult the advisory service best effort,
// combine, and only then mutate the binding.
type Orchestrator struct {
	repo      repository.BindingRepository
	assessor  risk.Assessor // nil disables the advisory path
	threshold ThresholdPolicy
	combiner  Combiner
	tokens    *SessionToken
	bus       *eventbus.Bus
	logger    *logging.Logger
	drift     bool
}

// NewOrchestrator wires the pipeline. assessor may be nil to disable the
// advisory path entirely.
func NewOrchestrator(
	repo repository.BindingRepository,
	assessor risk.Assessor,
	bus *eventbus.Bus,
	logger *logging.Logger,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		repo:      repo,
		assessor:  assessor,
		threshold: ThresholdPolicy{Baseline: opts.BaselineThreshold},
		combiner:  Combiner{Band: opts.AdvisoryBand, Floor: opts.AbsoluteFloor},
		tokens:    NewSessionToken(opts.JWTSecret).WithTTL(opts.SessionTTL),
		bus:       bus,
		logger:    logger,
		drift:     opts.DriftCorrection,
	}
}

// Enroll registers the first voice signature for a device, or re-registers
// a revoked one. Accepted unconditionally apart from sample validity; there
// is no prior signature to compare against.
func (o *Orchestrator) Enroll(ctx context.Context, userID, deviceID, fingerprint string, sample voiceprint.Embedding) (*aggregate.DeviceBinding, error) {
	if err := sample.Validate(); err != nil {
		return nil, err
	}

	existing, err := o.repo.Find(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		binding, err := aggregate.NewDeviceBinding(userID, deviceID, fingerprint)
		if err != nil {
			return nil, err
		}
		if err := binding.Enroll(sample); err != nil {
			return nil, err
		}
		if err := o.repo.Create(ctx, binding); err != nil {
			if stderrors.Is(err, repository.ErrConflict) {
				return nil, errors.Wrap(errors.KindDomain, "auth.enroll", "device enrolled concurrently", ErrAlreadyEnrolled)
			}
			return nil, err
		}
		o.logger.InfoTag("AUTH", "enrolled user=%s device=%s", userID, deviceID)
		return binding, nil
	}

	switch {
	case existing.IsTrusted():
		return nil, errors.Wrap(errors.KindDomain, "auth.enroll", "device already enrolled", ErrAlreadyEnrolled)
	case existing.IsRevoked():
		// Explicit re-enrollment after revocation replaces the retained
		// signature without comparing against it.
		if err := o.mutate(ctx, existing, func(b *aggregate.DeviceBinding) error {
			return b.Rebind(sample)
		}); err != nil {
			return nil, err
		}
		o.logger.InfoTag("AUTH", "re-enrolled user=%s device=%s", userID, deviceID)
		o.publish(eventbus.TopicBindingRebound, existing, string(OutcomeAccept), "")
		return existing, nil
	default:
		if err := o.mutate(ctx, existing, func(b *aggregate.DeviceBinding) error {
			return b.Enroll(sample)
		}); err != nil {
			return nil, err
		}
		o.logger.InfoTag("AUTH", "enrolled user=%s device=%s", userID, deviceID)
		return existing, nil
	}
}

// VerifyLogin runs the full decision pipeline for a login attempt. A
// trusted binding gets a verification login; a revoked binding gets a
// rebind attempt against its retained signature.
func (o *Orchestrator) VerifyLogin(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if err := req.Sample.Validate(); err != nil {
		return nil, err
	}

	binding, err := o.repo.Find(ctx, req.UserID, req.DeviceID)
	if err != nil {
		return nil, err
	}
	if binding == nil || !binding.HasSignature() {
		return nil, errors.Wrap(errors.KindDomain, "auth.verify", "enrollment required", ErrBindingNotFound)
	}

	score, err := voiceprint.Compare(req.Sample, binding.Signature)
	if err != nil {
		return nil, err
	}

	isNewDevice := req.Fingerprint != "" && binding.Fingerprint != "" &&
		req.Fingerprint != binding.Fingerprint
	threshold := o.threshold.Effective(binding.TrustLevel, isNewDevice)

	assessment := o.assess(ctx, risk.Input{
		SimilarityScore:  score,
		Threshold:        threshold,
		UserID:           req.UserID,
		DeviceTrustLevel: string(binding.TrustLevel),
		IsNewDevice:      isNewDevice,
	})

	decision := o.combiner.Combine(score, threshold, assessment)

	// The caller may have gone away while the advisory call was in
	// flight; nothing has been written yet, so just stop.
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.KindDomain, "auth.verify", "request cancelled", err)
	}

	result := &VerifyResult{
		Outcome:    decision.Outcome,
		Reason:     decision.Reason,
		Score:      score,
		Threshold:  threshold,
		TrustLevel: binding.TrustLevel,
	}

	if !decision.Accepted() {
		if binding.IsRevoked() {
			// A rejected rebind leaves the binding revoked; the caller
			// must go through explicit re-enrollment.
			result.Outcome = OutcomeRebindRequired
		}
		o.logger.InfoTag("AUTH", "rejected user=%s device=%s score=%.4f threshold=%.4f reason=%s",
			req.UserID, req.DeviceID, score, threshold, decision.Reason)
		o.publish(eventbus.TopicAuthRejected, binding, string(result.Outcome), string(decision.Reason))
		return result, nil
	}

	rebound := binding.IsRevoked()
	if err := o.mutate(ctx, binding, func(b *aggregate.DeviceBinding) error {
		if b.IsRevoked() {
			return b.Rebind(req.Sample)
		}
		if o.drift {
			return b.MarkVerified(req.Sample)
		}
		return b.MarkVerified(nil)
	}); err != nil {
		return nil, err
	}

	token, err := o.tokens.Generate(req.UserID, req.DeviceID)
	if err != nil {
		return nil, errors.Wrap(errors.KindDomain, "auth.verify", "failed to issue session token", err)
	}

	result.Token = token
	result.Rebound = rebound
	result.TrustLevel = binding.TrustLevel

	o.logger.InfoTag("AUTH", "accepted user=%s device=%s score=%.4f threshold=%.4f reason=%s rebound=%t",
		req.UserID, req.DeviceID, score, threshold, decision.Reason, rebound)
	o.publish(eventbus.TopicAuthAccepted, binding, string(OutcomeAccept), string(decision.Reason))
	if rebound {
		o.publish(eventbus.TopicBindingRebound, binding, string(OutcomeAccept), string(decision.Reason))
	}
	return result, nil
}

// Revoke withdraws trust from a binding. The signature is retained as the
// comparison baseline for a later rebind attempt.
func (o *Orchestrator) Revoke(ctx context.Context, userID, deviceID string) error {
	binding, err := o.repo.Find(ctx, userID, deviceID)
	if err != nil {
		return err
	}
	if binding == nil {
		return errors.Wrap(errors.KindDomain, "auth.revoke", "no binding to revoke", ErrBindingNotFound)
	}

	if err := o.mutate(ctx, binding, func(b *aggregate.DeviceBinding) error {
		return b.Revoke()
	}); err != nil {
		return err
	}

	o.logger.InfoTag("BINDING", "revoked user=%s device=%s", userID, deviceID)
	o.publish(eventbus.TopicBindingRevoked, binding, string(aggregate.TrustRevoked), "")
	return nil
}

// ListBindings returns all bindings for a user.
func (o *Orchestrator) ListBindings(ctx context.Context, userID string) ([]*aggregate.DeviceBinding, error) {
	return o.repo.ListByUser(ctx, userID)
}

// VerifySessionToken validates a previously issued session token.
func (o *Orchestrator) VerifySessionToken(token string) (string, string, error) {
	return o.tokens.Verify(token)
}

// assess consults the advisory service best effort. Any failure is logged
// and converted to a nil assessment; the pipeline falls back to the bare
// threshold comparison.
func (o *Orchestrator) assess(ctx context.Context, input risk.Input) *risk.Assessment {
	if o.assessor == nil {
		return nil
	}

	assessment, err := o.assessor.Assess(ctx, input)
	if err != nil {
		o.logger.WarnTag("ADVISORY", "assessment unavailable for user=%s: %v", input.UserID, err)
		return nil
	}
	o.logger.DebugTag("ADVISORY", "user=%s level=%s recommendation=%s confidence=%.2f",
		input.UserID, assessment.Level, assessment.Recommendation, assessment.Confidence)
	return assessment
}

// mutate applies a transition and writes it back, retrying once on a lost
// compare-and-swap race. The retry re-reads the record and re-applies the
// transition against the fresh state, so a loser of a concurrent rebind
// observes a stale-state rejection instead of clobbering the winner.
func (o *Orchestrator) mutate(ctx context.Context, binding *aggregate.DeviceBinding, apply func(*aggregate.DeviceBinding) error) error {
	if err := apply(binding); err != nil {
		return err
	}

	err := o.repo.Update(ctx, binding)
	if err == nil {
		return nil
	}
	if !stderrors.Is(err, repository.ErrConflict) {
		return err
	}

	fresh, findErr := o.repo.Find(ctx, binding.UserID, binding.DeviceID)
	if findErr != nil {
		return findErr
	}
	if fresh == nil {
		return errors.Wrap(errors.KindDomain, "auth.mutate", "binding disappeared", ErrBindingNotFound)
	}
	if err := apply(fresh); err != nil {
		return err
	}
	if err := o.repo.Update(ctx, fresh); err != nil {
		if stderrors.Is(err, repository.ErrConflict) {
			return errors.Wrap(errors.KindStorage, "auth.mutate", "persistent update conflict", ErrTransientConflict)
		}
		return err
	}

	*binding = *fresh
	return nil
}

func (o *Orchestrator) publish(topic string, binding *aggregate.DeviceBinding, outcome, reason string) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(topic, eventbus.AuthEvent{
		EventID:    uuid.NewString(),
		UserID:     binding.UserID,
		DeviceID:   binding.DeviceID,
		Outcome:    outcome,
		ReasonCode: reason,
		TrustLevel: string(binding.TrustLevel),
		OccurredAt: time.Now(),
	})
}
