package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies an event flowing through the bus.
type EventType string

const (
	ComplaintCreatedType EventType = "complaint.created"
	StatusUpdatedType    EventType = "complaint.status_updated"
	ComplaintDeletedType EventType = "complaint.deleted"
	CallIncomingType     EventType = "call.incoming"
	VoiceChunkType       EventType = "voice.chunk"
	VoiceTranscriptType  EventType = "voice.transcript"
)

// LifecycleTypes are the complaint and call events mirrored to staff.
var LifecycleTypes = []EventType{
	ComplaintCreatedType,
	StatusUpdatedType,
	ComplaintDeletedType,
	CallIncomingType,
}

// Payload is implemented by exactly one struct per EventType.
type Payload interface {
	EventType() EventType
}

type ComplaintCreated struct {
	ComplaintID     uuid.UUID `json:"complaint_id"`
	ComplaintNumber int64     `json:"complaint_number"`
	CitizenID       uuid.UUID `json:"citizen_id"`
	Status          string    `json:"status"`
	Channel         string    `json:"channel"`
	Priority        string    `json:"priority"`
	Category        *string   `json:"category,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type StatusUpdated struct {
	ComplaintID     uuid.UUID  `json:"complaint_id"`
	ComplaintNumber int64      `json:"complaint_number"`
	OldStatus       string     `json:"old_status"`
	NewStatus       string     `json:"new_status"`
	ActorID         *string    `json:"actor_id,omitempty"`
	ActorType       string     `json:"actor_type"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type ComplaintDeleted struct {
	ComplaintID     uuid.UUID `json:"complaint_id"`
	ComplaintNumber int64     `json:"complaint_number"`
	DeletedAt       time.Time `json:"deleted_at"`
}

type CallIncoming struct {
	CallSID         string    `json:"call_sid"`
	From            string    `json:"from"`
	ComplaintID     uuid.UUID `json:"complaint_id"`
	ComplaintNumber int64     `json:"complaint_number"`
	ReceivedAt      time.Time `json:"received_at"`
}

type VoiceChunk struct {
	SessionID string    `json:"session_id"`
	Sequence  int64     `json:"sequence"`
	Chunk     string    `json:"chunk,omitempty"`
	MimeType  string    `json:"mime_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type VoiceTranscript struct {
	SessionID      string     `json:"session_id"`
	ComplaintID    *uuid.UUID `json:"complaint_id,omitempty"`
	TranscriptText string     `json:"transcript_text"`
	Confidence     *float64   `json:"confidence,omitempty"`
	IsFinal        bool       `json:"is_final"`
	Timestamp      time.Time  `json:"timestamp"`
}

func (ComplaintCreated) EventType() EventType { return ComplaintCreatedType }
func (StatusUpdated) EventType() EventType    { return StatusUpdatedType }
func (ComplaintDeleted) EventType() EventType { return ComplaintDeletedType }
func (CallIncoming) EventType() EventType     { return CallIncomingType }
func (VoiceChunk) EventType() EventType       { return VoiceChunkType }
func (VoiceTranscript) EventType() EventType  { return VoiceTranscriptType }

// Event wraps a payload with its type and publish time. Build it with
// NewEvent so Type always matches Payload.
type Event struct {
	Type    EventType `json:"type"`
	At      time.Time `json:"occurred_at"`
	Payload Payload   `json:"payload"`
}

func NewEvent(p Payload) Event {
	return Event{Type: p.EventType(), At: time.Now().UTC(), Payload: p}
}

// Key groups related events: the complaint id for lifecycle events and the
// voice session id for streaming events.
func (e Event) Key() string {
	switch p := e.Payload.(type) {
	case ComplaintCreated:
		return p.ComplaintID.String()
	case StatusUpdated:
		return p.ComplaintID.String()
	case ComplaintDeleted:
		return p.ComplaintID.String()
	case CallIncoming:
		return p.ComplaintID.String()
	case VoiceChunk:
		return p.SessionID
	case VoiceTranscript:
		return p.SessionID
	default:
		return ""
	}
}
