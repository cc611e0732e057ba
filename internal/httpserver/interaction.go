package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/middleware"
	"github.com/civicdesk/civicdesk/internal/service"
	"github.com/civicdesk/civicdesk/internal/transport"
)

// InteractionHTTP serves the app's chat and voice-agent modes. Citizens
// always file under their own number.
type InteractionHTTP struct {
	Intake *service.IntakeService
	Voice  *service.VoiceAgentService
}

func (h *InteractionHTTP) Chat(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "interaction.chat")

	var in service.ChatMessage
	if err := bindBody(c, &in); err != nil {
		return fail(l, "chat_interaction_failed", err)
	}
	if id := middleware.IdentityFrom(c); !id.IsStaff() {
		in.PhoneNumber = id.Citizen.PhoneNumber
	}

	created, err := h.Intake.Chat(ctx, in)
	if err != nil {
		return fail(l, "chat_interaction_failed", err)
	}
	return okMessage(c, http.StatusCreated, "Complaint created via chat", created)
}

func (h *InteractionHTTP) VoiceStart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "interaction.voice_start")

	var req transport.VoiceStartRequest
	if err := bindBody(c, &req); err != nil {
		return fail(l, "voice_start_failed", err)
	}
	return ok(c, http.StatusOK, h.Voice.Start(ctx, req.Language))
}

func (h *InteractionHTTP) VoiceTurn(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "interaction.voice_turn")

	var in service.VoiceTurn
	if err := bindBody(c, &in); err != nil {
		return fail(l, "voice_turn_failed", err)
	}
	reply, err := h.Voice.Turn(ctx, in)
	if err != nil {
		return fail(l, "voice_turn_failed", err)
	}
	return ok(c, http.StatusOK, reply)
}

func (h *InteractionHTTP) VoiceEnd(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "interaction.voice_end")

	var in service.VoiceEnd
	if err := bindBody(c, &in); err != nil {
		return fail(l, "voice_end_failed", err)
	}
	if id := middleware.IdentityFrom(c); !id.IsStaff() {
		in.PhoneNumber = id.Citizen.PhoneNumber
	}

	created, err := h.Voice.End(ctx, in)
	if err != nil {
		return fail(l, "voice_end_failed", err)
	}
	return okMessage(c, http.StatusCreated, "Complaint created via voice agent", created)
}
