package storage

import (
	"time"

	"gorm.io/datatypes"
)

// DeviceBindingRecord is the persisted form of a device-to-voiceprint
// binding. Exactly one row exists per (user_id, device_id); the Version
// column guards concurrent updates.
type DeviceBindingRecord struct {
	ID             uint           `gorm:"primaryKey"`
	UserID         string         `gorm:"type:varchar(255);uniqueIndex:idx_user_device;not null" json:"user_id"`
	DeviceID       string         `gorm:"type:varchar(255);uniqueIndex:idx_user_device;not null" json:"device_id"`
	Fingerprint    string         `gorm:"type:varchar(255)" json:"fingerprint"`
	TrustLevel     string         `gorm:"type:varchar(32);not null" json:"trust_level"`
	Signature      datatypes.JSON `json:"signature,omitempty"`
	BoundAt        time.Time      `json:"bound_at"`
	LastVerifiedAt time.Time      `json:"last_verified_at"`
	RevokedAt      *time.Time     `json:"revoked_at,omitempty"`
	Version        int64          `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName fixes the table name.
func (DeviceBindingRecord) TableName() string {
	return "device_bindings"
}

// AuthEventRecord stores one audit row per authentication decision or
// binding lifecycle change.
type AuthEventRecord struct {
	ID        uint           `gorm:"primaryKey"`
	EventID   string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"event_id"`
	EventType string         `gorm:"index;not null" json:"event_type"`
	UserID    string         `gorm:"index" json:"user_id"`
	DeviceID  string         `gorm:"index" json:"device_id"`
	Data      datatypes.JSON `gorm:"not null" json:"data"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

// TableName fixes the table name.
func (AuthEventRecord) TableName() string {
	return "auth_events"
}
