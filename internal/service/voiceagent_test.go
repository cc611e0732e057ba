package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/inference"
	"github.com/civicdesk/civicdesk/internal/models"
)

type fakeAgent struct {
	reply    *inference.ChatReply
	err      error
	text     string
	history  []inference.Turn
	language string
}

func (a *fakeAgent) Chat(_ context.Context, text string, history []inference.Turn, language string) (*inference.ChatReply, error) {
	a.text, a.history, a.language = text, history, language
	return a.reply, a.err
}

func TestVoiceAgent_StartAndTurn(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	bare := &VoiceAgentService{Complaints: f.complaints}
	s := bare.Start(ctx, "")
	assert.True(t, strings.HasPrefix(s.SessionID, "sess_"))
	assert.Equal(t, DefaultGreeting, s.Message)
	assert.NotEqual(t, s.SessionID, bare.Start(ctx, "").SessionID)

	agent := &fakeAgent{reply: &inference.ChatReply{Response: "Namaste", AudioBase64: "QQ=="}}
	svc := &VoiceAgentService{Complaints: f.complaints, Agent: agent}
	s = svc.Start(ctx, "Hindi")
	assert.Equal(t, "Namaste", s.Message)
	assert.Equal(t, "QQ==", s.AudioBase64)
	assert.Equal(t, "Hindi", agent.language)
	assert.Contains(t, agent.text, "Respond only in Hindi")

	history := []inference.Turn{{Role: "assistant", Content: "Namaste"}}
	reply, err := svc.Turn(ctx, VoiceTurn{SessionID: s.SessionID, Text: " pipe burst ", History: history, Language: "Hindi"})
	require.NoError(t, err)
	assert.Equal(t, s.SessionID, reply.SessionID)
	assert.Equal(t, "pipe burst", reply.Transcript)
	assert.Equal(t, "Namaste", reply.ResponseText)
	assert.Equal(t, history, agent.history)

	_, err = svc.Turn(ctx, VoiceTurn{SessionID: s.SessionID})
	assert.ErrorIs(t, err, apperr.InvalidInput)

	agent.err = errors.New("agent down")
	s = svc.Start(ctx, "Hindi")
	assert.Equal(t, DefaultGreeting, s.Message, "greeting falls back when the agent fails")
	reply, err = svc.Turn(ctx, VoiceTurn{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, AgentFallbackReply, reply.ResponseText)
	assert.True(t, strings.HasPrefix(reply.SessionID, "sess_"))
}

func TestVoiceAgent_EndFilesComplaint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	cls := &fakeClassifier{res: &inference.Result{TopLabel: "water", Scores: map[string]float64{"water": 0.8}}}
	svc := &VoiceAgentService{Complaints: f.complaints, Classifier: cls}

	_, err := svc.End(ctx, VoiceEnd{PhoneNumber: "+15558001", TranscriptFull: "leak"})
	assert.ErrorIs(t, err, apperr.InvalidInput)
	_, err = svc.End(ctx, VoiceEnd{SessionID: "sess_1", PhoneNumber: "+15558001"})
	assert.ErrorIs(t, err, apperr.InvalidInput)

	c, err := svc.End(ctx, VoiceEnd{
		SessionID:   "sess_1",
		PhoneNumber: "+15558001",
		History: []inference.Turn{
			{Role: "assistant", Content: "How can I help?"},
			{Role: "user", Content: "Water pipe burst near school"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "voice", c.Channel)
	assert.Equal(t, "water", *c.Category)
	assert.Equal(t, "How can I help?\nWater pipe burst near school", *c.RawText)
	assert.Equal(t, "sess_1", *c.SourceCallID)
	assert.Equal(t, cls.text, *c.RawText)
	assert.Equal(t, f.complaints.Labels, cls.labels)

	_, err = svc.End(ctx, VoiceEnd{SessionID: "sess_1", PhoneNumber: "+15558001", TranscriptFull: "again"})
	assert.ErrorIs(t, err, apperr.Conflict, "a session files once")

	cls.err = errors.New("classifier down")
	c, err = svc.End(ctx, VoiceEnd{SessionID: "sess_2", PhoneNumber: "+15558001", TranscriptFull: "Broken bench"})
	require.NoError(t, err)
	assert.Equal(t, DefaultAgentCategory, *c.Category)
	assert.Equal(t, int64(1), f.countEvents(t, c.ID, models.EventComplaintCreated))
}
