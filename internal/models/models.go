package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusReceived       Status = "received"
	StatusAIClassified   Status = "ai_classified"
	StatusPendingTriage  Status = "pending_triage"
	StatusAssigned       Status = "assigned"
	StatusInProgress     Status = "in_progress"
	StatusResolved       Status = "resolved"
	StatusVerifiedClosed Status = "verified_closed"
	StatusNeedMoreInfo   Status = "need_more_info"
	StatusDuplicate      Status = "duplicate"
	StatusRejected       Status = "rejected"
	StatusEscalated      Status = "escalated"
)

const (
	RoleCitizen = "citizen"
	RoleOfficer = "officer"
	RoleAdmin   = "admin"
)

const (
	ActorSystem  = "system"
	ActorAdmin   = "admin"
	ActorCitizen = "citizen"
)

const (
	OTPPending  = "pending"
	OTPVerified = "verified"
	OTPExpired  = "expired"
	OTPBlocked  = "blocked"
)

const (
	EventComplaintCreated         = "complaint_created"
	EventStatusChanged            = "status_changed"
	EventAssigned                 = "assigned"
	EventReassigned               = "reassigned"
	EventAssignmentClosed         = "assignment_closed"
	EventAIClassified             = "ai_classified"
	EventClassificationOverridden = "classification_overridden"
	EventVoiceTranscriptReceived  = "voice_transcript_received"
	EventComplaintDeleted         = "complaint_deleted"
	EventMediaAttached            = "media_attached"
)

const (
	DeliveryQueued    = "queued"
	DeliverySent      = "sent"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// Snapshot is the before/after value of an audit row.
type Snapshot map[string]any

type Citizen struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"           json:"id"`
	PhoneNumber       string     `gorm:"uniqueIndex;not null"           json:"phone_number"`
	Name              *string    `                                      json:"name"`
	PreferredLanguage *string    `                                      json:"preferred_language"`
	Role              string     `gorm:"not null;default:citizen"       json:"role"`
	IsPhoneVerified   bool       `gorm:"not null;default:false"         json:"is_phone_verified"`
	LastLoginAt       *time.Time `                                      json:"last_login_at"`
	CreatedAt         time.Time  `                                      json:"created_at"`
	UpdatedAt         time.Time  `                                      json:"updated_at"`
}

func (c *Citizen) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Role == "" {
		c.Role = RoleCitizen
	}
	return nil
}

// ComplaintSequence hands out complaint numbers. One row per complaint.
type ComplaintSequence struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time
}

type Complaint struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey"             json:"id"`
	ComplaintNumber int64          `gorm:"uniqueIndex;not null"             json:"complaint_number"`
	CitizenID       uuid.UUID      `gorm:"type:uuid;index;not null"         json:"citizen_id"`
	Citizen         *Citizen       `gorm:"foreignKey:CitizenID"             json:"citizen,omitempty"`
	Status          Status         `gorm:"index;not null"                   json:"status"`
	Channel         string         `gorm:"index;not null"                   json:"channel"`
	Priority        string         `gorm:"index;not null;default:medium"    json:"priority"`
	Category        *string        `                                        json:"category"`
	RawText         *string        `                                        json:"raw_text"`
	TranslatedText  *string        `                                        json:"translated_text"`
	LocationText    *string        `                                        json:"location_text"`
	Latitude        *float64       `                                        json:"latitude"`
	Longitude       *float64       `                                        json:"longitude"`
	WardID          *string        `gorm:"index"                            json:"ward_id"`
	DepartmentID    *string        `gorm:"index"                            json:"department_id"`
	SourceMessageID *string        `gorm:"uniqueIndex"                      json:"source_message_id,omitempty"`
	SourceCallID    *string        `gorm:"uniqueIndex"                      json:"source_call_id,omitempty"`
	CreatedAt       time.Time      `gorm:"index"                            json:"created_at"`
	UpdatedAt       time.Time      `                                        json:"updated_at"`
	ResolvedAt      *time.Time     `                                        json:"resolved_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index"                            json:"-"`
}

func (c *Complaint) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type ComplaintEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"          json:"id"`
	ComplaintID uuid.UUID `gorm:"type:uuid;index;not null"      json:"complaint_id"`
	EventType   string    `gorm:"index;not null"                json:"event_type"`
	OldValue    Snapshot  `gorm:"serializer:json;type:text"     json:"old_value"`
	NewValue    Snapshot  `gorm:"serializer:json;type:text"     json:"new_value"`
	ActorID     *string   `                                     json:"actor_id"`
	ActorType   string    `gorm:"not null;default:system"       json:"actor_type"`
	Note        *string   `                                     json:"note"`
	CreatedAt   time.Time `gorm:"index"                         json:"created_at"`
}

func (e *ComplaintEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type ComplaintMedia struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"                  json:"id"`
	ComplaintID    uuid.UUID `gorm:"type:uuid;index;not null"              json:"complaint_id"`
	MediaType      string    `gorm:"not null"                              json:"media_type"`
	StorageBucket  string    `gorm:"not null;default:complaint-evidence"   json:"storage_bucket"`
	StoragePath    string    `gorm:"not null"                              json:"storage_path"`
	MimeType       *string   `                                             json:"mime_type"`
	SizeBytes      *int64    `                                             json:"size_bytes"`
	DurationSec    *float64  `                                             json:"duration_sec"`
	ChecksumSHA256 *string   `gorm:"column:checksum_sha256"                json:"checksum_sha256"`
	UploadedAt     time.Time `gorm:"autoCreateTime"                        json:"uploaded_at"`
}

func (m *ComplaintMedia) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type AIOutput struct {
	ID                       uuid.UUID `gorm:"type:uuid;primaryKey"        json:"id"`
	ComplaintID              uuid.UUID `gorm:"type:uuid;index;not null"    json:"complaint_id"`
	TranscriptText           *string   `                                   json:"transcript_text"`
	TranscriptConfidence     *float64  `                                   json:"transcript_confidence"`
	ClassificationLabel      *string   `                                   json:"classification_label"`
	ClassificationConfidence *float64  `                                   json:"classification_confidence"`
	ModelName                string    `gorm:"not null"                    json:"model_name"`
	OverriddenByHuman        bool      `gorm:"not null;default:false"      json:"overridden_by_human"`
	CreatedAt                time.Time `gorm:"index"                       json:"created_at"`
}

func (AIOutput) TableName() string { return "ai_outputs" }

func (o *AIOutput) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type Assignment struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"                                                  json:"id"`
	ComplaintID    uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_assignments_one_active,where:is_active = true" json:"complaint_id"`
	AssignedToID   string     `gorm:"not null"                                                              json:"assigned_to_id"`
	AssignedToType string     `gorm:"not null;default:field_staff"                                          json:"assigned_to_type"`
	AssignedByID   *string    `                                                                             json:"assigned_by_id"`
	DueAt          *time.Time `                                                                             json:"due_at"`
	IsActive       bool       `gorm:"not null"                                                              json:"is_active"`
	CreatedAt      time.Time  `                                                                             json:"created_at"`
	UpdatedAt      time.Time  `                                                                             json:"updated_at"`
}

func (a *Assignment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type OTPChallenge struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"            json:"id"`
	PhoneNumber  string     `gorm:"index;not null;uniqueIndex:idx_otp_one_pending,where:status = 'pending'" json:"phone_number"`
	OTPHash      string     `gorm:"column:otp_hash;not null"        json:"-"`
	ExpiresAt    time.Time  `gorm:"not null"                        json:"expires_at"`
	AttemptCount int        `gorm:"not null;default:0"              json:"attempt_count"`
	Status       string     `gorm:"index;not null;default:pending"  json:"status"`
	VerifiedAt   *time.Time `                                       json:"verified_at"`
	CreatedAt    time.Time  `                                       json:"created_at"`
}

func (OTPChallenge) TableName() string { return "otp_challenges" }

func (o *OTPChallenge) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type AuthSession struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"        json:"id"`
	CitizenID        uuid.UUID  `gorm:"type:uuid;index;not null"    json:"citizen_id"`
	Citizen          *Citizen   `gorm:"foreignKey:CitizenID"        json:"citizen,omitempty"`
	AccessTokenHash  string     `gorm:"uniqueIndex;not null"        json:"-"`
	RefreshTokenHash string     `gorm:"uniqueIndex;not null"        json:"-"`
	AccessExpiresAt  time.Time  `gorm:"not null"                    json:"access_expires_at"`
	RefreshExpiresAt time.Time  `gorm:"not null"                    json:"refresh_expires_at"`
	IsRevoked        bool       `gorm:"not null;default:false"      json:"is_revoked"`
	RevokedAt        *time.Time `                                   json:"revoked_at"`
	CreatedAt        time.Time  `                                   json:"created_at"`
	UpdatedAt        time.Time  `                                   json:"updated_at"`
}

func (s *AuthSession) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Notification records an outbound message to a citizen. Delivery happens
// elsewhere; this row only tracks what the provider reported.
type Notification struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"          json:"id"`
	ComplaintID       uuid.UUID  `gorm:"type:uuid;index;not null"      json:"complaint_id"`
	Channel           string     `gorm:"not null"                      json:"channel"`
	TemplateKey       *string    `                                     json:"template_key"`
	DeliveryStatus    string     `gorm:"index;not null;default:queued" json:"delivery_status"`
	ProviderMessageID *string    `                                     json:"provider_message_id"`
	ErrorMessage      *string    `                                     json:"error_message"`
	SentAt            *time.Time `                                     json:"sent_at"`
	CreatedAt         time.Time  `gorm:"index"                         json:"created_at"`
	UpdatedAt         time.Time  `                                     json:"updated_at"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&Citizen{},
		&ComplaintSequence{},
		&Complaint{},
		&ComplaintEvent{},
		&ComplaintMedia{},
		&AIOutput{},
		&Assignment{},
		&OTPChallenge{},
		&AuthSession{},
		&Notification{},
	}
}
