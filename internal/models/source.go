package models

import (
	"time"

	"github.com/google/uuid"
)

// Platform identifies the external review platform a source is connected to
type Platform string

const (
	PlatformGoogle     Platform = "google"
	PlatformFacebook   Platform = "facebook"
	PlatformTrustpilot Platform = "trustpilot"
)

// Valid reports whether p is a known platform
func (p Platform) Valid() bool {
	switch p {
	case PlatformGoogle, PlatformFacebook, PlatformTrustpilot:
		return true
	}
	return false
}

// SyncStatus is the outcome of the most recent sync recorded on a source
type SyncStatus string

const (
	SyncStatusNever     SyncStatus = "never"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// ReviewSource is a configured connection to one review platform for one brand.
// At most one sync job may be active for a source at any time; that invariant
// is enforced by a partial unique index on sync_jobs, not here.
type ReviewSource struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	BrandID           uuid.UUID  `json:"brand_id" db:"brand_id"`
	Platform          Platform   `json:"platform" db:"platform"`
	ExternalProfileID string     `json:"external_profile_id" db:"external_profile_id"`
	Active            bool       `json:"active" db:"active"`
	LastSyncAt        *time.Time `json:"last_sync_at,omitempty" db:"last_sync_at"`
	LastSyncStatus    SyncStatus `json:"last_sync_status" db:"last_sync_status"`
	LastSyncError     *string    `json:"last_sync_error,omitempty" db:"last_sync_error"`
	NextScheduledAt   time.Time  `json:"next_scheduled_sync_at" db:"next_scheduled_sync_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}
