package aggregate

import (
	"time"

	"voicegate-server-go/internal/domain/voiceprint"
	"voicegate-server-go/internal/platform/errors"
)

// TrustLevel is the binding's authentication standing.
type TrustLevel string

const (
	TrustUnverified TrustLevel = "UNVERIFIED"
	TrustTrusted    TrustLevel = "TRUSTED"
	TrustRevoked    TrustLevel = "REVOKED"
)

// DeviceBinding ties one device of one user to a stored voice signature.
// The signature is written only by the lifecycle methods below.
type DeviceBinding struct {
	UserID         string               `json:"userId"`
	DeviceID       string               `json:"deviceId"`
	Fingerprint    string               `json:"fingerprint"`
	TrustLevel     TrustLevel           `json:"trustLevel"`
	Signature      voiceprint.Embedding `json:"signature,omitempty"`
	BoundAt        time.Time            `json:"boundAt"`
	LastVerifiedAt time.Time            `json:"lastVerifiedAt"`
	RevokedAt      *time.Time           `json:"revokedAt,omitempty"`

	// Version guards concurrent updates; the store increments it on
	// every successful write.
	Version int64 `json:"version"`
}

// NewDeviceBinding creates an unverified binding with no signature yet.
func NewDeviceBinding(userID, deviceID, fingerprint string) (*DeviceBinding, error) {
	if userID == "" {
		return nil, errors.New(errors.KindDomain, "binding.new", "user ID cannot be empty")
	}
	if deviceID == "" {
		return nil, errors.New(errors.KindDomain, "binding.new", "device ID cannot be empty")
	}

	return &DeviceBinding{
		UserID:      userID,
		DeviceID:    deviceID,
		Fingerprint: fingerprint,
		TrustLevel:  TrustUnverified,
	}, nil
}

// Enroll installs the first voice signature and promotes the binding to
// TRUSTED. Only valid from UNVERIFIED; re-enrollment of a revoked binding
// goes through the explicit re-registration path.
func (b *DeviceBinding) Enroll(sig voiceprint.Embedding) error {
	if b.TrustLevel != TrustUnverified {
		return errors.New(errors.KindDomain, "binding.enroll", "binding already enrolled")
	}
	if err := sig.Validate(); err != nil {
		return err
	}

	now := time.Now()
	b.Signature = sig
	b.TrustLevel = TrustTrusted
	b.BoundAt = now
	b.LastVerifiedAt = now
	b.RevokedAt = nil
	return nil
}

// MarkVerified records a successful verification. The stored signature is
// left untouched unless the caller supplies a refreshed sample for drift
// correction.
func (b *DeviceBinding) MarkVerified(refreshed voiceprint.Embedding) error {
	if b.TrustLevel != TrustTrusted {
		return errors.New(errors.KindDomain, "binding.verify", "binding is not trusted")
	}
	if refreshed != nil {
		if err := refreshed.Validate(); err != nil {
			return err
		}
		b.Signature = refreshed
	}
	b.LastVerifiedAt = time.Now()
	return nil
}

// Revoke withdraws trust. The signature is retained to serve as the
// comparison baseline for a later rebind.
func (b *DeviceBinding) Revoke() error {
	if b.TrustLevel != TrustTrusted {
		return errors.New(errors.KindDomain, "binding.revoke", "binding is not trusted")
	}
	now := time.Now()
	b.TrustLevel = TrustRevoked
	b.RevokedAt = &now
	return nil
}

// Rebind re-establishes trust after revocation, replacing the retained
// signature with the freshly accepted one in the same step.
func (b *DeviceBinding) Rebind(newSig voiceprint.Embedding) error {
	if b.TrustLevel != TrustRevoked {
		return errors.New(errors.KindDomain, "binding.rebind", "binding is not revoked")
	}
	if err := newSig.Validate(); err != nil {
		return err
	}

	now := time.Now()
	b.Signature = newSig
	b.TrustLevel = TrustTrusted
	b.RevokedAt = nil
	b.LastVerifiedAt = now
	return nil
}

// IsTrusted reports whether the binding currently accepts verification logins.
func (b *DeviceBinding) IsTrusted() bool {
	return b.TrustLevel == TrustTrusted
}

// IsRevoked reports whether the binding is in the rebind-or-re-enroll state.
func (b *DeviceBinding) IsRevoked() bool {
	return b.TrustLevel == TrustRevoked
}

// HasSignature reports whether a comparison baseline exists.
func (b *DeviceBinding) HasSignature() bool {
	return len(b.Signature) > 0
}

// Clone returns a deep copy, used by stores handing out records.
func (b *DeviceBinding) Clone() *DeviceBinding {
	clone := *b
	if b.Signature != nil {
		clone.Signature = append(voiceprint.Embedding(nil), b.Signature...)
	}
	if b.RevokedAt != nil {
		revokedAt := *b.RevokedAt
		clone.RevokedAt = &revokedAt
	}
	return &clone
}
