package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/eventbus"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/service"
)

const (
	OpsHub   = "ops"
	VoiceHub = "voice"
)

type Authenticator interface {
	Resolve(ctx context.Context, accessToken string) (*service.Identity, error)
}

type TranscriptSaver interface {
	SaveStreamingTranscript(ctx context.Context, in service.TranscriptInput) error
}

// Server owns the ops and voice hubs and bridges them to the bus.
type Server struct {
	Sessions    Authenticator
	Transcripts TranscriptSaver
	Bus         *eventbus.Bus
	Ops         *Hub
	Voice       *Hub
	SendBuffer  int

	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(sessions Authenticator, transcripts TranscriptSaver, bus *eventbus.Bus, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		Sessions:    sessions,
		Transcripts: transcripts,
		Bus:         bus,
		Ops:         NewHub(OpsHub),
		Voice:       NewHub(VoiceHub),
		log:         log.With("component", "realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Subscribe attaches the fanout to the bus.
func (s *Server) Subscribe() *eventbus.Subscription {
	return s.Bus.Subscribe("realtime", s.fanout)
}

func (s *Server) fanout(_ context.Context, ev eventbus.Event) error {
	switch p := ev.Payload.(type) {
	case eventbus.ComplaintCreated:
		return s.Ops.Broadcast("complaint:created", p)
	case eventbus.StatusUpdated:
		return s.Ops.Broadcast("complaint:status_updated", p)
	case eventbus.ComplaintDeleted:
		return s.Ops.Broadcast("complaint:deleted", p)
	case eventbus.CallIncoming:
		return s.Ops.Broadcast("call:incoming", p)
	case eventbus.VoiceChunk:
		if err := s.Voice.BroadcastRoom(p.SessionID, "voice:chunk", p); err != nil {
			return err
		}
		return s.Ops.Broadcast("voice:chunk_received", map[string]any{
			"session_id": p.SessionID,
			"sequence":   p.Sequence,
			"timestamp":  p.Timestamp,
		})
	case eventbus.VoiceTranscript:
		if err := s.Voice.BroadcastRoom(p.SessionID, "voice:transcript", p); err != nil {
			return err
		}
		return s.Ops.Broadcast("voice:transcript_received", map[string]any{
			"session_id":      p.SessionID,
			"complaint_id":    p.ComplaintID,
			"transcript_text": p.TranscriptText,
			"timestamp":       p.Timestamp,
		})
	}
	return nil
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	return r.URL.Query().Get("token")
}

// authenticate resolves the caller before the upgrade and writes the
// rejection itself.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, roles ...string) *service.Identity {
	id, err := s.Sessions.Resolve(r.Context(), tokenFrom(r))
	if err == nil && len(roles) > 0 {
		err = service.RequireRole(id, roles...)
	}
	if err != nil {
		http.Error(w, apperr.Message(err), apperr.HTTPStatus(apperr.KindOf(err)))
		return nil
	}
	return id
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request, hub *Hub, id *service.Identity) *Client {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws_upgrade_failed", "hub", hub.Name(), "error", err)
		return nil
	}
	c := newClient(hub.Name(), conn, id, s.SendBuffer)
	hub.add(c)
	s.log.Info("ws_connected", "hub", hub.Name(), "citizen_id", id.Citizen.ID, "role", id.Role)
	go c.writePump()
	return c
}

// ServeOps streams lifecycle events to staff.
func (s *Server) ServeOps(w http.ResponseWriter, r *http.Request) {
	id := s.authenticate(w, r, service.StaffRoles...)
	if id == nil {
		return
	}
	c := s.connect(w, r, s.Ops, id)
	if c == nil {
		return
	}
	defer s.Ops.remove(c)
	c.readPump(nil)
}

// ServeVoice accepts streaming audio and transcripts for any signed-in
// caller.
func (s *Server) ServeVoice(w http.ResponseWriter, r *http.Request) {
	id := s.authenticate(w, r)
	if id == nil {
		return
	}
	c := s.connect(w, r, s.Voice, id)
	if c == nil {
		return
	}
	defer s.Voice.remove(c)

	ctx := logging.IntoContext(context.Background(), s.log.With("hub", VoiceHub, "citizen_id", id.Citizen.ID))
	c.readPump(func(data []byte) { s.handleVoice(ctx, c, data) })
}

type ack struct {
	OK        bool   `json:"ok"`
	Message   string `json:"message,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type voiceData struct {
	SessionID      string   `json:"session_id"`
	Sequence       int64    `json:"sequence"`
	Chunk          string   `json:"chunk"`
	MimeType       string   `json:"mime_type"`
	ComplaintID    string   `json:"complaint_id"`
	TranscriptText string   `json:"transcript_text"`
	Confidence     *float64 `json:"confidence"`
	IsFinal        bool     `json:"is_final"`
	ModelName      string   `json:"model_name"`
}

func (s *Server) reply(c *Client, ackID string, a ack) {
	msg, err := encode("ack", ackID, a)
	if err != nil {
		return
	}
	c.enqueue(msg)
}

func (s *Server) handleVoice(ctx context.Context, c *Client, raw []byte) {
	l := logging.FromContext(ctx)

	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		s.reply(c, "", ack{Message: "invalid frame"})
		return
	}
	var d voiceData
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, &d); err != nil {
			s.reply(c, f.AckID, ack{Message: "invalid data"})
			return
		}
	}
	d.SessionID = strings.TrimSpace(d.SessionID)

	switch f.Event {
	case "voice:join":
		if d.SessionID == "" {
			s.reply(c, f.AckID, ack{Message: "session_id is required"})
			return
		}
		s.Voice.Join(c, d.SessionID)
		s.reply(c, f.AckID, ack{OK: true, SessionID: d.SessionID})

	case "voice:chunk":
		if d.SessionID == "" {
			s.reply(c, f.AckID, ack{Message: "session_id is required"})
			return
		}
		s.Bus.Publish(ctx, eventbus.VoiceChunk{
			SessionID: d.SessionID,
			Sequence:  d.Sequence,
			Chunk:     d.Chunk,
			MimeType:  d.MimeType,
			Timestamp: time.Now().UTC(),
		})
		s.reply(c, f.AckID, ack{OK: true})

	case "voice:transcript":
		if d.SessionID == "" {
			s.reply(c, f.AckID, ack{Message: "session_id is required"})
			return
		}
		var complaintID *uuid.UUID
		if parsed, err := uuid.Parse(d.ComplaintID); err == nil {
			complaintID = &parsed
		}
		if complaintID != nil && s.Transcripts != nil {
			err := s.Transcripts.SaveStreamingTranscript(ctx, service.TranscriptInput{
				ComplaintID:          *complaintID,
				TranscriptText:       d.TranscriptText,
				TranscriptConfidence: d.Confidence,
				ModelName:            d.ModelName,
			})
			if err != nil {
				l.Warn("transcript_persist_failed", "session_id", d.SessionID, "complaint_id", complaintID, "error", err)
			}
		}
		s.Bus.Publish(ctx, eventbus.VoiceTranscript{
			SessionID:      d.SessionID,
			ComplaintID:    complaintID,
			TranscriptText: d.TranscriptText,
			Confidence:     d.Confidence,
			IsFinal:        d.IsFinal,
			Timestamp:      time.Now().UTC(),
		})
		s.reply(c, f.AckID, ack{OK: true})

	default:
		s.reply(c, f.AckID, ack{Message: "unknown event"})
	}
}

// Close disconnects every client of both hubs.
func (s *Server) Close() {
	s.Ops.CloseAll()
	s.Voice.CloseAll()
}
