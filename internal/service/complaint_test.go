package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/eventbus"
	"github.com/civicdesk/civicdesk/internal/inference"
	"github.com/civicdesk/civicdesk/internal/models"
)

func TestTransitionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to models.Status
		want     bool
	}{
		{models.StatusReceived, models.StatusAIClassified, true},
		{models.StatusReceived, models.StatusAssigned, false},
		{models.StatusAIClassified, models.StatusAssigned, true},
		{models.StatusAssigned, models.StatusInProgress, true},
		{models.StatusInProgress, models.StatusResolved, true},
		{models.StatusResolved, models.StatusInProgress, true},
		{models.StatusResolved, models.StatusVerifiedClosed, true},
		{models.StatusEscalated, models.StatusResolved, true},
		{models.StatusVerifiedClosed, models.StatusInProgress, false},
		{models.StatusRejected, models.StatusPendingTriage, false},
		{models.StatusDuplicate, models.StatusAssigned, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}

	for _, s := range []models.Status{models.StatusVerifiedClosed, models.StatusDuplicate, models.StatusRejected} {
		assert.True(t, IsTerminal(s), s)
	}
	assert.False(t, IsTerminal(models.StatusResolved))
	assert.False(t, ValidStatus("closed"))
	assert.Len(t, AllStatuses(), 11)
}

func TestCreate_ValidatesInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name string
		in   CreateInput
		msg  string
	}{
		{"missing phone", CreateInput{Channel: "sms", RawText: ptr("x")}, "phone_number is required"},
		{"bad channel", CreateInput{PhoneNumber: "+15551000", Channel: "fax", RawText: ptr("x")}, "channel must be"},
		{"bad priority", CreateInput{PhoneNumber: "+15551000", Channel: "sms", Priority: "urgent", RawText: ptr("x")}, "priority must be"},
		{"no content", CreateInput{PhoneNumber: "+15551000", Channel: "sms", RawText: ptr("   ")}, "raw_text or at least one media"},
		{"latitude", CreateInput{PhoneNumber: "+15551000", Channel: "sms", RawText: ptr("x"), Latitude: ptr(91.0)}, "latitude"},
		{"media type", CreateInput{PhoneNumber: "+15551000", Channel: "sms", Media: []MediaInput{{MediaType: "video", StoragePath: "a"}}}, "media_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.complaints.Create(context.Background(), tt.in, SystemActor(""))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.InvalidInput)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCreate_PersistsAuditsAndPublishes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.complaints.Create(ctx, CreateInput{
		PhoneNumber:  "+1 (555) 200-3000",
		Name:         ptr("Ravi"),
		Channel:      "WhatsApp",
		Priority:     "HIGH",
		Category:     ptr("Water_Supply"),
		RawText:      ptr("  no water since morning "),
		WardID:       ptr("w-12"),
		Media:        []MediaInput{{MediaType: "image", StoragePath: "x/photo.jpg"}},
		LocationText: ptr("Block C"),
	}, SystemActor(""))
	require.NoError(t, err)

	assert.Equal(t, int64(1), c.ComplaintNumber)
	assert.Equal(t, models.StatusReceived, c.Status)
	assert.Equal(t, "whatsapp", c.Channel)
	assert.Equal(t, "high", c.Priority)
	assert.Equal(t, "water_supply", *c.Category)
	assert.Equal(t, "no water since morning", *c.RawText)
	require.NotNil(t, c.Citizen)
	assert.Equal(t, "+15552003000", c.Citizen.PhoneNumber)

	d, err := f.complaints.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, d.Media, 1)
	assert.Equal(t, DefaultBucket, d.Media[0].StorageBucket)
	require.Len(t, d.Events, 1)
	assert.Equal(t, models.EventComplaintCreated, d.Events[0].EventType)
	assert.Equal(t, models.ActorSystem, d.Events[0].ActorType)
	assert.Nil(t, d.ActiveAssignment)

	created := f.events.ofType(eventbus.ComplaintCreatedType)
	require.Len(t, created, 1)
	payload := created[0].Payload.(eventbus.ComplaintCreated)
	assert.Equal(t, c.ID, payload.ComplaintID)
	assert.Equal(t, c.ID.String(), created[0].Key())

	next := f.newComplaint(t, "+15552003000")
	assert.Equal(t, int64(2), next.ComplaintNumber, "numbers are sequential")
}

func TestCreate_DuplicateSourceIsConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	in := CreateInput{PhoneNumber: "+15551001", Channel: "sms", RawText: ptr("hi"), SourceMessageID: ptr("SM-1")}

	first, err := f.complaints.Create(ctx, in, SystemActor(""))
	require.NoError(t, err)

	_, err = f.complaints.Create(ctx, in, SystemActor(""))
	assert.ErrorIs(t, err, apperr.Conflict)

	_, err = f.complaints.Delete(ctx, first.ID, SystemActor(""))
	require.NoError(t, err)
	_, err = f.complaints.Create(ctx, in, SystemActor(""))
	assert.ErrorIs(t, err, apperr.Conflict, "deleted complaints still claim their source id")

	assert.Len(t, f.events.ofType(eventbus.ComplaintCreatedType), 1)
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c := f.newComplaint(t, "+15551002")
	officer := Actor{Type: models.ActorAdmin, ID: ptr("officer-1")}

	_, err := f.complaints.UpdateStatus(ctx, c.ID, models.StatusResolved, officer)
	assert.ErrorIs(t, err, apperr.InvalidTransition)

	_, err = f.complaints.UpdateStatus(ctx, c.ID, "bogus", officer)
	assert.ErrorIs(t, err, apperr.InvalidInput)

	_, err = f.complaints.UpdateStatus(ctx, uuid.New(), models.StatusPendingTriage, officer)
	assert.ErrorIs(t, err, apperr.NotFound)

	for _, s := range []models.Status{models.StatusPendingTriage, models.StatusAssigned, models.StatusInProgress} {
		_, err = f.complaints.UpdateStatus(ctx, c.ID, s, officer)
		require.NoError(t, err, s)
	}

	resolved, err := f.complaints.UpdateStatus(ctx, c.ID, " RESOLVED ", officer)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	firstResolved := *resolved.ResolvedAt

	f.advance(time.Hour)
	_, err = f.complaints.UpdateStatus(ctx, c.ID, models.StatusInProgress, officer)
	require.NoError(t, err)
	f.advance(time.Hour)
	again, err := f.complaints.UpdateStatus(ctx, c.ID, models.StatusResolved, officer)
	require.NoError(t, err)
	require.NotNil(t, again.ResolvedAt)
	assert.True(t, firstResolved.Equal(*again.ResolvedAt), "resolved_at is stamped once")

	same, err := f.complaints.UpdateStatus(ctx, c.ID, models.StatusResolved, officer)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, same.Status)

	assert.Equal(t, int64(6), f.countEvents(t, c.ID, models.EventStatusChanged), "no-op update is not audited")
	updates := f.events.ofType(eventbus.StatusUpdatedType)
	require.Len(t, updates, 6)
	last := updates[5].Payload.(eventbus.StatusUpdated)
	assert.Equal(t, "in_progress", last.OldStatus)
	assert.Equal(t, "resolved", last.NewStatus)
	assert.Equal(t, "officer-1", *last.ActorID)

	_, err = f.complaints.UpdateStatus(ctx, c.ID, models.StatusVerifiedClosed, officer)
	require.NoError(t, err)
	_, err = f.complaints.UpdateStatus(ctx, c.ID, models.StatusInProgress, officer)
	assert.ErrorIs(t, err, apperr.InvalidTransition, "verified_closed is terminal")
}

func TestDelete_HidesComplaintAndKeepsAudit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c := f.newComplaint(t, "+15551003")

	_, err := f.complaints.Delete(ctx, c.ID, Actor{Type: models.ActorAdmin})
	require.NoError(t, err)

	_, err = f.complaints.Get(ctx, c.ID)
	assert.ErrorIs(t, err, apperr.NotFound)
	_, err = f.complaints.Delete(ctx, c.ID, Actor{Type: models.ActorAdmin})
	assert.ErrorIs(t, err, apperr.NotFound)

	assert.Equal(t, int64(1), f.countEvents(t, c.ID, models.EventComplaintDeleted))
	assert.Equal(t, int64(1), f.countEvents(t, c.ID, models.EventComplaintCreated))
	require.Len(t, f.events.ofType(eventbus.ComplaintDeletedType), 1)

	page, err := f.complaints.List(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Items)
}

func TestList_FiltersAndPaginates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f.newComplaint(t, "+15551004")
	}
	high, err := f.complaints.Create(ctx, CreateInput{
		PhoneNumber: "+15551005", Channel: "voice", Priority: "high", RawText: ptr("broken water main"), WardID: ptr("w-7"),
	}, SystemActor(""))
	require.NoError(t, err)

	tests := []struct {
		name  string
		q     ListQuery
		total int64
		items int
	}{
		{"all", ListQuery{}, 4, 4},
		{"page size", ListQuery{Limit: 2, Page: 2}, 4, 2},
		{"priority", ListQuery{Priority: "high"}, 1, 1},
		{"channel", ListQuery{Channel: "voice"}, 1, 1},
		{"ward", ListQuery{WardID: "w-7"}, 1, 1},
		{"status", ListQuery{Status: "assigned"}, 0, 0},
		{"search", ListQuery{Search: "water"}, 1, 1},
		{"future", ListQuery{From: ptr(time.Now().Add(24 * time.Hour))}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.complaints.List(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.total, page.Total)
			assert.Len(t, page.Items, tt.items)
		})
	}

	page, err := f.complaints.List(ctx, ListQuery{Priority: "high"})
	require.NoError(t, err)
	assert.Equal(t, high.ID, page.Items[0].ID)
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	start, err := ParseDate("2026-02-01", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *start)

	end, err := ParseDate("2026-02-01", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 23, 59, 59, 999999999, time.UTC), *end)

	ts, err := ParseDate("2026-02-01T10:00:00+02:00", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC), *ts)

	none, err := ParseDate(" ", false)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = ParseDate("01/02/2026", false)
	assert.ErrorIs(t, err, apperr.InvalidInput)
}

func TestTranscripts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c := f.newComplaint(t, "+15551006")

	out, err := f.complaints.SaveTranscript(ctx, TranscriptInput{ComplaintID: c.ID, TranscriptText: " the drain is blocked "})
	require.NoError(t, err)
	assert.Equal(t, "whisper", out.ModelName)
	assert.Equal(t, "the drain is blocked", *out.TranscriptText)

	_, err = f.complaints.SaveTranscript(ctx, TranscriptInput{ComplaintID: uuid.New(), TranscriptText: "x"})
	assert.ErrorIs(t, err, apperr.NotFound)
	_, err = f.complaints.SaveTranscript(ctx, TranscriptInput{ComplaintID: c.ID})
	assert.ErrorIs(t, err, apperr.InvalidInput)

	require.NoError(t, f.complaints.SaveStreamingTranscript(ctx, TranscriptInput{ComplaintID: c.ID, TranscriptText: "partial"}))
	require.NoError(t, f.complaints.SaveStreamingTranscript(ctx, TranscriptInput{TranscriptText: "no complaint"}), "unbound fragments are skipped")
	assert.Equal(t, int64(1), f.countEvents(t, c.ID, models.EventVoiceTranscriptReceived))

	got, err := f.repo.ComplaintByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, got.Status, "transcripts never move the status")
}

type fakeClassifier struct {
	res    *inference.Result
	err    error
	text   string
	labels []string
}

func (f *fakeClassifier) Classify(_ context.Context, text string, labels []string) (*inference.Result, error) {
	f.text, f.labels = text, labels
	return f.res, f.err
}

func TestClassification(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c := f.newComplaint(t, "+15551007")

	_, err := f.complaints.RecordClassification(ctx, ClassificationInput{ComplaintID: c.ID, Label: "x", Confidence: ptr(1.2)}, SystemActor(""))
	assert.ErrorIs(t, err, apperr.InvalidInput)
	_, err = f.complaints.RecordClassification(ctx, ClassificationInput{ComplaintID: c.ID}, SystemActor(""))
	assert.ErrorIs(t, err, apperr.InvalidInput)

	out, err := f.complaints.RecordClassification(ctx, ClassificationInput{ComplaintID: c.ID, Label: " Garbage ", Confidence: ptr(0.8)}, SystemActor(""))
	require.NoError(t, err)
	assert.Equal(t, "garbage", *out.ClassificationLabel)
	assert.Equal(t, "classifier-v1", out.ModelName)

	got, err := f.repo.ComplaintByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAIClassified, got.Status)
	assert.Equal(t, "garbage", *got.Category)
	require.Len(t, f.events.ofType(eventbus.StatusUpdatedType), 1)

	_, err = f.complaints.RecordClassification(ctx, ClassificationInput{ComplaintID: c.ID, Label: "pothole"}, SystemActor(""))
	require.NoError(t, err)
	assert.Len(t, f.events.ofType(eventbus.StatusUpdatedType), 1, "reclassifying does not move the status again")
	assert.Equal(t, int64(2), f.countEvents(t, c.ID, models.EventAIClassified))

	override, err := f.complaints.OverrideClassification(ctx, c.ID, "Sewage", Actor{ID: ptr("officer-2")})
	require.NoError(t, err)
	assert.True(t, override.OverriddenByHuman)
	assert.Equal(t, "manual-override", override.ModelName)

	outputs, err := f.repo.AIOutputsForComplaint(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, outputs, 3)
	overridden := 0
	for _, o := range outputs {
		if o.OverriddenByHuman {
			overridden++
		}
	}
	assert.Equal(t, 2, overridden, "the replaced model label is flagged too")

	got, err = f.repo.ComplaintByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "sewage", *got.Category)
	assert.Equal(t, models.StatusAIClassified, got.Status)
}

func TestAutoClassify(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	c := f.newComplaint(t, "+15551008")

	_, err := f.complaints.AutoClassify(ctx, c.ID, SystemActor(""))
	assert.ErrorIs(t, err, apperr.NotFound, "no classifier configured")

	fake := &fakeClassifier{res: &inference.Result{TopLabel: "garbage", Scores: map[string]float64{"garbage": 0.93}, ModelName: "zero-shot"}}
	f.complaints.Classifier = fake

	out, err := f.complaints.AutoClassify(ctx, c.ID, SystemActor(""))
	require.NoError(t, err)
	assert.Equal(t, "Overflowing garbage bin near the market", fake.text)
	assert.Equal(t, []string{"pothole", "garbage"}, fake.labels)
	assert.Equal(t, "zero-shot", out.ModelName)
	assert.InDelta(t, 0.93, *out.ClassificationConfidence, 1e-9)

	fake.err = errors.New("model offline")
	_, err = f.complaints.AutoClassify(ctx, c.ID, SystemActor(""))
	assert.ErrorIs(t, err, apperr.Internal)
}

func TestCitizenLookup(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.newComplaint(t, "+15551009")
	}

	c, err := f.citizens.GetByPhone(ctx, "+1 555 100 9")
	require.NoError(t, err)
	assert.Equal(t, "+15551009", c.PhoneNumber)

	history, err := f.citizens.History(ctx, "+15551009", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(3), history[0].ComplaintNumber, "newest first")

	_, err = f.citizens.GetByPhone(ctx, "+15550000")
	assert.ErrorIs(t, err, apperr.NotFound)
	_, err = f.citizens.History(ctx, "abc", 5)
	assert.ErrorIs(t, err, apperr.InvalidInput)
}
