package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/civicdesk/civicdesk/internal/eventbus"
	"github.com/civicdesk/civicdesk/internal/models"
)

// IntakeService adapts provider webhooks onto complaint creation.
type IntakeService struct {
	Complaints *ComplaintService
	Bus        *eventbus.Bus
	Now        func() time.Time
}

type InboundMedia struct {
	URL         string
	ContentType string
}

type SMSMessage struct {
	From       string
	Body       string
	MessageSID string
}

type WhatsAppMessage struct {
	From       string
	Body       string
	MessageSID string
	Media      []InboundMedia
}

type VoiceCall struct {
	From              string
	CallSID           string
	RecordingURL      string
	RecordingDuration *float64
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func textOr(s, def string) *string {
	if s = strings.TrimSpace(s); s == "" {
		s = def
	}
	return &s
}

func (s *IntakeService) SMS(ctx context.Context, m SMSMessage) (*models.Complaint, error) {
	return s.Complaints.Create(ctx, CreateInput{
		PhoneNumber:     m.From,
		Channel:         "sms",
		RawText:         textOr(m.Body, "Media complaint received"),
		SourceMessageID: optional(m.MessageSID),
	}, SystemActor("Complaint created via SMS webhook"))
}

func (s *IntakeService) WhatsApp(ctx context.Context, m WhatsAppMessage) (*models.Complaint, error) {
	sid := strings.TrimSpace(m.MessageSID)
	folder := sid
	if folder == "" {
		folder = fmt.Sprintf("wa-%d", clock(s.Now).UnixMilli())
	}

	var media []MediaInput
	for i, in := range m.Media {
		url, ct := strings.TrimSpace(in.URL), strings.TrimSpace(in.ContentType)
		if url == "" || ct == "" {
			continue
		}
		kind := "image"
		if strings.HasPrefix(ct, "audio/") {
			kind = "audio"
		}
		media = append(media, MediaInput{
			MediaType:     kind,
			StorageBucket: DefaultBucket,
			StoragePath:   fmt.Sprintf("%s/whatsapp/twilio-media-%d", folder, i),
			MimeType:      &ct,
		})
	}

	return s.Complaints.Create(ctx, CreateInput{
		PhoneNumber:     strings.TrimPrefix(strings.TrimSpace(m.From), "whatsapp:"),
		Channel:         "whatsapp",
		RawText:         textOr(m.Body, "WhatsApp media complaint"),
		SourceMessageID: optional(sid),
		Media:           media,
	}, SystemActor("Complaint created via WhatsApp webhook"))
}

// Voice records a call as a complaint and announces the call to staff.
func (s *IntakeService) Voice(ctx context.Context, call VoiceCall) (*models.Complaint, error) {
	sid := strings.TrimSpace(call.CallSID)
	var media []MediaInput
	if url := strings.TrimSpace(call.RecordingURL); url != "" {
		folder := sid
		if folder == "" {
			folder = fmt.Sprintf("%d", clock(s.Now).UnixMilli())
		}
		mime := "audio/mpeg"
		media = append(media, MediaInput{
			MediaType:     "audio",
			StorageBucket: DefaultBucket,
			StoragePath:   folder + "/voice/call-recording",
			MimeType:      &mime,
			DurationSec:   call.RecordingDuration,
		})
	}

	c, err := s.Complaints.Create(ctx, CreateInput{
		PhoneNumber:  call.From,
		Channel:      "voice",
		RawText:      textOr("", "Voice complaint received. Transcript pending."),
		SourceCallID: optional(sid),
		Media:        media,
	}, SystemActor("Complaint created via voice webhook"))
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Bus, eventbus.CallIncoming{
		CallSID:         sid,
		From:            c.Citizen.PhoneNumber,
		ComplaintID:     c.ID,
		ComplaintNumber: c.ComplaintNumber,
		ReceivedAt:      clock(s.Now),
	})
	return c, nil
}

// ChatMessage is a complaint typed into the app or web chat.
type ChatMessage struct {
	PhoneNumber       string       `json:"phone_number"`
	Name              *string      `json:"name"`
	PreferredLanguage *string      `json:"preferred_language"`
	Channel           string       `json:"channel"`
	MessageText       *string      `json:"message_text"`
	Category          *string      `json:"category"`
	Priority          string       `json:"priority"`
	LocationText      *string      `json:"location_text"`
	Latitude          *float64     `json:"latitude"`
	Longitude         *float64     `json:"longitude"`
	WardID            *string      `json:"ward_id"`
	DepartmentID      *string      `json:"department_id"`
	SourceMessageID   *string      `json:"source_message_id"`
	Media             []MediaInput `json:"media"`
}

// Chat files a chat-mode complaint. The channel defaults to whatsapp.
func (s *IntakeService) Chat(ctx context.Context, m ChatMessage) (*models.Complaint, error) {
	channel := m.Channel
	if strings.TrimSpace(channel) == "" {
		channel = "whatsapp"
	}
	return s.Complaints.Create(ctx, CreateInput{
		PhoneNumber:       m.PhoneNumber,
		Name:              m.Name,
		PreferredLanguage: m.PreferredLanguage,
		Channel:           channel,
		Priority:          m.Priority,
		Category:          m.Category,
		RawText:           m.MessageText,
		LocationText:      m.LocationText,
		Latitude:          m.Latitude,
		Longitude:         m.Longitude,
		WardID:            m.WardID,
		DepartmentID:      m.DepartmentID,
		SourceMessageID:   m.SourceMessageID,
		Media:             m.Media,
	}, SystemActor("Complaint created via app/web chat mode"))
}
