package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/inference"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/models"
)

const (
	DefaultAgentLanguage = "English"
	DefaultGreeting      = "Hello! How can I help you with your complaint today?"
	AgentFallbackReply   = "Sorry, I am having trouble thinking right now."
	DefaultAgentCategory = "general"
)

// Agent is the conversational side of the inference service.
type Agent interface {
	Chat(ctx context.Context, text string, history []inference.Turn, language string) (*inference.ChatReply, error)
}

// VoiceAgentService runs guided voice conversations that end in a filed
// complaint. Agent and Classifier are optional; without them the session
// falls back to fixed replies and the default category.
type VoiceAgentService struct {
	Complaints *ComplaintService
	Agent      Agent
	Classifier Classifier
}

type VoiceSession struct {
	SessionID   string `json:"session_id"`
	Message     string `json:"message"`
	AudioBase64 string `json:"audio_base64,omitempty"`
}

type VoiceTurn struct {
	SessionID string           `json:"session_id"`
	Text      string           `json:"text"`
	History   []inference.Turn `json:"history"`
	Language  string           `json:"language"`
}

type VoiceReply struct {
	SessionID    string `json:"session_id"`
	Transcript   string `json:"transcript"`
	ResponseText string `json:"response_text"`
	AudioBase64  string `json:"audio_base64,omitempty"`
}

type VoiceEnd struct {
	SessionID      string           `json:"session_id"`
	PhoneNumber    string           `json:"phone_number"`
	History        []inference.Turn `json:"history"`
	TranscriptFull string           `json:"transcript_full"`
}

func newSessionID() string { return "sess_" + uuid.NewString() }

// Start opens a session with a greeting in the caller's language.
func (s *VoiceAgentService) Start(ctx context.Context, language string) *VoiceSession {
	if language = strings.TrimSpace(language); language == "" {
		language = DefaultAgentLanguage
	}
	out := &VoiceSession{SessionID: newSessionID(), Message: DefaultGreeting}
	if s.Agent == nil {
		return out
	}

	prompt := fmt.Sprintf("You are a civic portal agent. Greet the user and ask them how you can help with their civic complaint today. Respond only in %s.", language)
	reply, err := s.Agent.Chat(ctx, prompt, nil, language)
	if err != nil {
		logging.FromContext(ctx).Warn("agent_greeting_failed", "svc", "voice_agent.start", "error", err)
		return out
	}
	out.Message, out.AudioBase64 = reply.Response, reply.AudioBase64
	return out
}

// Turn answers one caller utterance.
func (s *VoiceAgentService) Turn(ctx context.Context, in VoiceTurn) (*VoiceReply, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, apperr.New(apperr.InvalidInput, "text is required")
	}
	sid := strings.TrimSpace(in.SessionID)
	if sid == "" {
		sid = newSessionID()
	}
	out := &VoiceReply{SessionID: sid, Transcript: text, ResponseText: AgentFallbackReply}
	if s.Agent == nil {
		return out, nil
	}

	reply, err := s.Agent.Chat(ctx, text, in.History, strings.TrimSpace(in.Language))
	if err != nil {
		logging.FromContext(ctx).Warn("agent_chat_failed", "svc", "voice_agent.turn", "session_id", sid, "error", err)
		return out, nil
	}
	out.ResponseText, out.AudioBase64 = reply.Response, reply.AudioBase64
	return out, nil
}

// End files the conversation as a voice complaint. The session id is the
// idempotency key, so ending a session twice fails Conflict.
func (s *VoiceAgentService) End(ctx context.Context, in VoiceEnd) (*models.Complaint, error) {
	sid := strings.TrimSpace(in.SessionID)
	if sid == "" {
		return nil, apperr.New(apperr.InvalidInput, "session_id is required")
	}
	text := strings.TrimSpace(in.TranscriptFull)
	if text == "" {
		lines := make([]string, 0, len(in.History))
		for _, t := range in.History {
			if c := strings.TrimSpace(t.Content); c != "" {
				lines = append(lines, c)
			}
		}
		text = strings.Join(lines, "\n")
	}
	if text == "" {
		return nil, apperr.New(apperr.InvalidInput, "transcript_full or history is required")
	}

	category := DefaultAgentCategory
	if s.Classifier != nil {
		res, err := s.Classifier.Classify(ctx, text, s.Complaints.Labels)
		if err != nil {
			logging.FromContext(ctx).Warn("agent_classify_failed", "svc", "voice_agent.end", "session_id", sid, "error", err)
		} else {
			category = res.TopLabel
		}
	}

	return s.Complaints.Create(ctx, CreateInput{
		PhoneNumber:  in.PhoneNumber,
		Channel:      "voice",
		Priority:     "medium",
		Category:     &category,
		RawText:      &text,
		SourceCallID: &sid,
	}, SystemActor("Voice agent session finalized"))
}
