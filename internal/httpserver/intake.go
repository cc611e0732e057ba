package httpserver

import (
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/models"
	"github.com/civicdesk/civicdesk/internal/service"
	"github.com/civicdesk/civicdesk/internal/util"
)

const maxInboundMedia = 10

// twiml is the reply body webhook providers expect.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
	Say     string   `xml:"Say,omitempty"`
}

type IntakeHTTP struct {
	Svc *service.IntakeService
}

func sender(c echo.Context) (string, error) {
	from := strings.TrimSpace(c.FormValue("From"))
	if from == "" {
		return "", apperr.New(apperr.InvalidInput, "From is required")
	}
	return from, nil
}

// reply answers a delivery. Duplicates are acknowledged with an empty
// response so the provider stops retrying.
func reply(c echo.Context, l *slog.Logger, err error, body func(*models.Complaint) twiml, created *models.Complaint) error {
	if errors.Is(err, apperr.Conflict) {
		l.Info("intake_duplicate")
		return c.XML(http.StatusOK, twiml{})
	}
	return c.XML(http.StatusOK, body(created))
}

func messageReply(cmp *models.Complaint) twiml {
	return twiml{Message: fmt.Sprintf("Complaint #%d received. We will keep you updated.", cmp.ComplaintNumber)}
}

func (h *IntakeHTTP) SMS(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "intake.sms")

	from, err := sender(c)
	if err != nil {
		return fail(l, "intake_sms_failed", err)
	}
	cmp, err := h.Svc.SMS(ctx, service.SMSMessage{
		From:       from,
		Body:       c.FormValue("Body"),
		MessageSID: c.FormValue("MessageSid"),
	})
	if err != nil && !errors.Is(err, apperr.Conflict) {
		return fail(l, "intake_sms_failed", err)
	}
	return reply(c, l, err, messageReply, cmp)
}

func (h *IntakeHTTP) WhatsApp(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "intake.whatsapp")

	from, err := sender(c)
	if err != nil {
		return fail(l, "intake_whatsapp_failed", err)
	}
	n := util.ParseIntDefault(c.FormValue("NumMedia"), 0)
	if n > maxInboundMedia {
		n = maxInboundMedia
	}
	media := make([]service.InboundMedia, 0, n)
	for i := 0; i < n; i++ {
		idx := strconv.Itoa(i)
		media = append(media, service.InboundMedia{
			URL:         c.FormValue("MediaUrl" + idx),
			ContentType: c.FormValue("MediaContentType" + idx),
		})
	}

	cmp, err := h.Svc.WhatsApp(ctx, service.WhatsAppMessage{
		From:       from,
		Body:       c.FormValue("Body"),
		MessageSID: c.FormValue("MessageSid"),
		Media:      media,
	})
	if err != nil && !errors.Is(err, apperr.Conflict) {
		return fail(l, "intake_whatsapp_failed", err)
	}
	return reply(c, l, err, messageReply, cmp)
}

func (h *IntakeHTTP) Voice(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "intake.voice")

	from, err := sender(c)
	if err != nil {
		return fail(l, "intake_voice_failed", err)
	}
	call := service.VoiceCall{
		From:         from,
		CallSID:      c.FormValue("CallSid"),
		RecordingURL: c.FormValue("RecordingUrl"),
	}
	if raw := strings.TrimSpace(c.FormValue("RecordingDuration")); raw != "" {
		if d, perr := strconv.ParseFloat(raw, 64); perr == nil {
			call.RecordingDuration = &d
		}
	}

	cmp, err := h.Svc.Voice(ctx, call)
	if err != nil && !errors.Is(err, apperr.Conflict) {
		return fail(l, "intake_voice_failed", err)
	}
	return reply(c, l, err, func(cmp *models.Complaint) twiml {
		return twiml{Say: fmt.Sprintf("Complaint %d registered successfully.", cmp.ComplaintNumber)}
	}, cmp)
}
