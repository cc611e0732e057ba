package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/eventbus"
	"github.com/civicdesk/civicdesk/internal/inference"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/metrics"
	"github.com/civicdesk/civicdesk/internal/models"
	"github.com/civicdesk/civicdesk/internal/repo"
	"github.com/civicdesk/civicdesk/internal/util"
)

const DefaultBucket = "complaint-evidence"

var (
	validChannels   = map[string]bool{"sms": true, "whatsapp": true, "voice": true}
	validPriorities = map[string]bool{"low": true, "medium": true, "high": true, "critical": true}
	validMediaTypes = map[string]bool{"audio": true, "image": true}
)

// Classifier labels complaint text. Implemented by the inference client.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (*inference.Result, error)
}

type ComplaintService struct {
	Repo       *repo.GormRepo
	Bus        *eventbus.Bus
	Classifier Classifier
	Labels     []string
	Now        func() time.Time
}

type MediaInput struct {
	MediaType      string   `json:"media_type"`
	StorageBucket  string   `json:"storage_bucket"`
	StoragePath    string   `json:"storage_path"`
	MimeType       *string  `json:"mime_type"`
	SizeBytes      *int64   `json:"size_bytes"`
	DurationSec    *float64 `json:"duration_sec"`
	ChecksumSHA256 *string  `json:"checksum_sha256"`
}

type CreateInput struct {
	PhoneNumber       string       `json:"phone_number"`
	Name              *string      `json:"name"`
	PreferredLanguage *string      `json:"preferred_language"`
	Channel           string       `json:"channel"`
	Priority          string       `json:"priority"`
	Category          *string      `json:"category"`
	RawText           *string      `json:"raw_text"`
	TranslatedText    *string      `json:"translated_text"`
	LocationText      *string      `json:"location_text"`
	Latitude          *float64     `json:"latitude"`
	Longitude         *float64     `json:"longitude"`
	WardID            *string      `json:"ward_id"`
	DepartmentID      *string      `json:"department_id"`
	SourceMessageID   *string      `json:"source_message_id"`
	SourceCallID      *string      `json:"source_call_id"`
	Media             []MediaInput `json:"media"`
}

type ListQuery struct {
	Status       string
	Priority     string
	Channel      string
	WardID       string
	DepartmentID string
	Search       string
	From         *time.Time
	To           *time.Time
	Page         int
	Limit        int
}

type Page[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Detail is a complaint with everything hanging off it, newest first.
type Detail struct {
	*models.Complaint
	Media            []models.ComplaintMedia `json:"media"`
	Events           []models.ComplaintEvent `json:"events"`
	AIOutputs        []models.AIOutput       `json:"ai_outputs"`
	ActiveAssignment *models.Assignment      `json:"active_assignment"`
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func lowered(p *string) *string {
	if p = trimmed(p); p == nil {
		return nil
	}
	v := strings.ToLower(*p)
	return &v
}

type validatedCreate struct {
	phone    string
	channel  string
	priority string
	media    []models.ComplaintMedia
}

func validateCreate(in CreateInput) (*validatedCreate, error) {
	phone, err := NormalizePhone(in.PhoneNumber)
	if err != nil {
		return nil, err
	}
	channel := strings.ToLower(strings.TrimSpace(in.Channel))
	if !validChannels[channel] {
		return nil, apperr.New(apperr.InvalidInput, "channel must be sms, whatsapp, or voice")
	}
	priority := strings.ToLower(strings.TrimSpace(in.Priority))
	if priority == "" {
		priority = "medium"
	}
	if !validPriorities[priority] {
		return nil, apperr.New(apperr.InvalidInput, "priority must be low, medium, high, or critical")
	}
	if trimmed(in.RawText) == nil && len(in.Media) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "either raw_text or at least one media item is required")
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return nil, apperr.New(apperr.InvalidInput, "latitude must be between -90 and 90")
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return nil, apperr.New(apperr.InvalidInput, "longitude must be between -180 and 180")
	}

	media := make([]models.ComplaintMedia, 0, len(in.Media))
	for _, m := range in.Media {
		row, err := validateMedia(m)
		if err != nil {
			return nil, err
		}
		media = append(media, row)
	}
	return &validatedCreate{phone: phone, channel: channel, priority: priority, media: media}, nil
}

func validateMedia(m MediaInput) (models.ComplaintMedia, error) {
	kind := strings.ToLower(strings.TrimSpace(m.MediaType))
	if !validMediaTypes[kind] {
		return models.ComplaintMedia{}, apperr.New(apperr.InvalidInput, "media_type must be audio or image")
	}
	path := strings.TrimSpace(m.StoragePath)
	if path == "" {
		return models.ComplaintMedia{}, apperr.New(apperr.InvalidInput, "media.storage_path is required")
	}
	bucket := strings.TrimSpace(m.StorageBucket)
	if bucket == "" {
		bucket = DefaultBucket
	}
	return models.ComplaintMedia{
		MediaType:      kind,
		StorageBucket:  bucket,
		StoragePath:    path,
		MimeType:       trimmed(m.MimeType),
		SizeBytes:      m.SizeBytes,
		DurationSec:    m.DurationSec,
		ChecksumSHA256: trimmed(m.ChecksumSHA256),
	}, nil
}

// Create registers a complaint for the caller's phone. A repeated intake
// idempotency key fails Conflict and writes nothing.
func (s *ComplaintService) Create(ctx context.Context, in CreateInput, actor Actor) (*models.Complaint, error) {
	l := logging.FromContext(ctx).With("svc", "complaint.create")

	v, err := validateCreate(in)
	if err != nil {
		return nil, err
	}
	actor = actor.orSystem().withDefaultNote("Complaint created")
	msgID, callID := trimmed(in.SourceMessageID), trimmed(in.SourceCallID)

	var created *models.Complaint
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		cols := []string{}
		c := &models.Citizen{PhoneNumber: v.phone}
		if name := trimmed(in.Name); name != nil {
			c.Name = name
			cols = append(cols, "name")
		}
		if lang := trimmed(in.PreferredLanguage); lang != nil {
			c.PreferredLanguage = lang
			cols = append(cols, "preferred_language")
		}
		citizen, err := tx.UpsertCitizen(ctx, c, cols)
		if err != nil {
			return err
		}

		dup, err := tx.ComplaintBySource(ctx, msgID, callID)
		if err != nil {
			return err
		}
		if dup != nil {
			return apperr.New(apperr.Conflict, "duplicate source message/call id")
		}

		number, err := tx.NextComplaintNumber(ctx)
		if err != nil {
			return err
		}
		comp := &models.Complaint{
			ComplaintNumber: number,
			CitizenID:       citizen.ID,
			Status:          models.StatusReceived,
			Channel:         v.channel,
			Priority:        v.priority,
			Category:        lowered(in.Category),
			RawText:         trimmed(in.RawText),
			TranslatedText:  trimmed(in.TranslatedText),
			LocationText:    trimmed(in.LocationText),
			Latitude:        in.Latitude,
			Longitude:       in.Longitude,
			WardID:          trimmed(in.WardID),
			DepartmentID:    trimmed(in.DepartmentID),
			SourceMessageID: msgID,
			SourceCallID:    callID,
		}
		if err := tx.CreateComplaint(ctx, comp); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, auditRow(comp.ID, models.EventComplaintCreated, nil,
			models.Snapshot{"status": string(comp.Status)}, actor)); err != nil {
			return err
		}
		for i := range v.media {
			v.media[i].ComplaintID = comp.ID
		}
		if err := tx.CreateMedia(ctx, v.media); err != nil {
			return err
		}
		comp.Citizen = citizen
		created = comp
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.Conflict {
			l.Info("complaint_duplicate", "source_message_id", msgID, "source_call_id", callID)
			return nil, err
		}
		l.Error("complaint_create_failed", "error", err)
		return nil, err
	}

	l.Info("complaint_created", "complaint_id", created.ID, "number", created.ComplaintNumber, "channel", created.Channel)
	metrics.ComplaintsCreated.WithLabelValues(created.Channel).Inc()
	publish(ctx, s.Bus, eventbus.ComplaintCreated{
		ComplaintID:     created.ID,
		ComplaintNumber: created.ComplaintNumber,
		CitizenID:       created.CitizenID,
		Status:          string(created.Status),
		Channel:         created.Channel,
		Priority:        created.Priority,
		Category:        created.Category,
		CreatedAt:       created.CreatedAt,
	})
	return created, nil
}

// UpdateStatus moves a complaint along one edge of the transition table.
// Asking for the current status is a no-op.
func (s *ComplaintService) UpdateStatus(ctx context.Context, id uuid.UUID, next models.Status, actor Actor) (*models.Complaint, error) {
	l := logging.FromContext(ctx).With("svc", "complaint.update_status", "complaint_id", id)

	next = models.Status(strings.ToLower(strings.TrimSpace(string(next))))
	if !ValidStatus(next) {
		return nil, apperr.New(apperr.InvalidInput, "invalid status value")
	}
	actor = actor.orSystem()

	var (
		updated *models.Complaint
		change  *statusChange
	)
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		c, err := tx.LockComplaint(ctx, id)
		if err != nil {
			return err
		}
		if c.Status != next {
			if !CanTransition(c.Status, next) {
				return apperr.New(apperr.InvalidTransition,
					fmt.Sprintf("invalid status transition from %s to %s", c.Status, next))
			}
			change, err = applyStatus(ctx, tx, c, next, clock(s.Now), nil)
			if err != nil {
				return err
			}
			ev := auditRow(c.ID, models.EventStatusChanged,
				models.Snapshot{"status": string(change.from)},
				models.Snapshot{"status": string(change.to)}, actor)
			if err := tx.AppendEvent(ctx, ev); err != nil {
				return err
			}
		}
		updated, err = tx.ComplaintByID(ctx, id)
		return err
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			l.Error("status_update_failed", "error", err)
		}
		return nil, err
	}

	if change != nil {
		l.Info("status_changed", "from", change.from, "to", change.to)
		s.publishStatus(ctx, updated, change, actor)
	}
	return updated, nil
}

type statusChange struct {
	from, to models.Status
}

// applyStatus writes the new status and stamps resolved_at on the first
// entry into resolved. extra columns are written in the same update.
func applyStatus(ctx context.Context, tx *repo.GormRepo, c *models.Complaint, next models.Status, now time.Time, extra map[string]any) (*statusChange, error) {
	updates := map[string]any{"status": next}
	for k, v := range extra {
		updates[k] = v
	}
	if next == models.StatusResolved && c.ResolvedAt == nil {
		updates["resolved_at"] = now
	}
	if err := tx.UpdateComplaint(ctx, c.ID, updates); err != nil {
		return nil, err
	}
	metrics.ComplaintTransitions.WithLabelValues(string(c.Status), string(next)).Inc()
	return &statusChange{from: c.Status, to: next}, nil
}

func (s *ComplaintService) publishStatus(ctx context.Context, c *models.Complaint, ch *statusChange, actor Actor) {
	publishStatus(ctx, s.Bus, c, ch, actor)
}

func publishStatus(ctx context.Context, bus *eventbus.Bus, c *models.Complaint, ch *statusChange, actor Actor) {
	publish(ctx, bus, eventbus.StatusUpdated{
		ComplaintID:     c.ID,
		ComplaintNumber: c.ComplaintNumber,
		OldStatus:       string(ch.from),
		NewStatus:       string(ch.to),
		ActorID:         actor.ID,
		ActorType:       actor.Type,
		ResolvedAt:      c.ResolvedAt,
		UpdatedAt:       c.UpdatedAt,
	})
}

func auditRow(complaintID uuid.UUID, eventType string, oldValue, newValue models.Snapshot, actor Actor) *models.ComplaintEvent {
	return &models.ComplaintEvent{
		ComplaintID: complaintID,
		EventType:   eventType,
		OldValue:    oldValue,
		NewValue:    newValue,
		ActorID:     actor.ID,
		ActorType:   actor.Type,
		Note:        actor.Note,
	}
}

func (s *ComplaintService) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	c, err := s.Repo.ComplaintByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, c)
}

func (s *ComplaintService) GetByNumber(ctx context.Context, number int64) (*Detail, error) {
	if number <= 0 {
		return nil, apperr.New(apperr.InvalidInput, "complaint_no must be a positive integer")
	}
	c, err := s.Repo.ComplaintByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, c)
}

func (s *ComplaintService) detail(ctx context.Context, c *models.Complaint) (*Detail, error) {
	d := &Detail{Complaint: c}
	var err error
	if d.Media, err = s.Repo.MediaForComplaint(ctx, c.ID); err != nil {
		return nil, err
	}
	if d.Events, err = s.Repo.EventsForComplaint(ctx, c.ID); err != nil {
		return nil, err
	}
	if d.AIOutputs, err = s.Repo.AIOutputsForComplaint(ctx, c.ID); err != nil {
		return nil, err
	}
	if d.ActiveAssignment, err = s.Repo.ActiveAssignment(ctx, c.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *ComplaintService) List(ctx context.Context, q ListQuery) (*Page[models.Complaint], error) {
	offset, limit := util.Calculate(q.Page, q.Limit)
	items, total, err := s.Repo.ListComplaints(ctx, repo.ComplaintFilter{
		Status:       strings.TrimSpace(q.Status),
		Priority:     strings.TrimSpace(q.Priority),
		Channel:      strings.TrimSpace(q.Channel),
		WardID:       strings.TrimSpace(q.WardID),
		DepartmentID: strings.TrimSpace(q.DepartmentID),
		Search:       strings.ReplaceAll(q.Search, ",", " "),
		From:         q.From,
		To:           q.To,
		Offset:       offset,
		Limit:        limit,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Complaint{}
	}
	return &Page[models.Complaint]{Items: items, Page: util.Page(offset, limit), Limit: limit, Total: total}, nil
}

// Delete hides the complaint from reads. Its audit history is kept.
func (s *ComplaintService) Delete(ctx context.Context, id uuid.UUID, actor Actor) (*models.Complaint, error) {
	l := logging.FromContext(ctx).With("svc", "complaint.delete", "complaint_id", id)
	actor = actor.orSystem().withDefaultNote("Complaint deleted")

	var deleted *models.Complaint
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		c, err := tx.LockComplaint(ctx, id)
		if err != nil {
			return err
		}
		ev := auditRow(c.ID, models.EventComplaintDeleted,
			models.Snapshot{"status": string(c.Status)},
			models.Snapshot{"deleted": true}, actor)
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return err
		}
		deleted = c
		return tx.SoftDeleteComplaint(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	l.Info("complaint_deleted", "number", deleted.ComplaintNumber)
	publish(ctx, s.Bus, eventbus.ComplaintDeleted{
		ComplaintID:     deleted.ID,
		ComplaintNumber: deleted.ComplaintNumber,
		DeletedAt:       clock(s.Now),
	})
	return deleted, nil
}

type TranscriptInput struct {
	ComplaintID          uuid.UUID
	TranscriptText       string
	TranscriptConfidence *float64
	ModelName            string
}

// SaveTranscript stores a transcript without touching the complaint status.
func (s *ComplaintService) SaveTranscript(ctx context.Context, in TranscriptInput) (*models.AIOutput, error) {
	text := strings.TrimSpace(in.TranscriptText)
	if in.ComplaintID == uuid.Nil || text == "" {
		return nil, apperr.New(apperr.InvalidInput, "complaint_id and transcript_text are required")
	}
	if _, err := s.Repo.ComplaintByID(ctx, in.ComplaintID); err != nil {
		return nil, err
	}
	out := &models.AIOutput{
		ComplaintID:          in.ComplaintID,
		TranscriptText:       &text,
		TranscriptConfidence: in.TranscriptConfidence,
		ModelName:            modelOr(in.ModelName, "whisper"),
	}
	if err := s.Repo.CreateAIOutput(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveStreamingTranscript persists a transcript fragment from the voice
// channel with its audit row. Callers treat failures as non-fatal.
func (s *ComplaintService) SaveStreamingTranscript(ctx context.Context, in TranscriptInput) error {
	text := strings.TrimSpace(in.TranscriptText)
	if in.ComplaintID == uuid.Nil || text == "" {
		return nil
	}
	actor := SystemActor("Streaming transcript received via voice socket")
	return s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if _, err := tx.ComplaintByID(ctx, in.ComplaintID); err != nil {
			return err
		}
		out := &models.AIOutput{
			ComplaintID:          in.ComplaintID,
			TranscriptText:       &text,
			TranscriptConfidence: in.TranscriptConfidence,
			ModelName:            modelOr(in.ModelName, "streaming-stt"),
		}
		if err := tx.CreateAIOutput(ctx, out); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, auditRow(in.ComplaintID, models.EventVoiceTranscriptReceived, nil,
			models.Snapshot{"transcript_text": text, "source": "socket"}, actor))
	})
}

func modelOr(name, def string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return def
}

// ParseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates. A plain
// end date covers the whole day.
func ParseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, apperr.New(apperr.InvalidInput, fmt.Sprintf("invalid date %q", raw))
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	t = t.UTC()
	return &t, nil
}
