package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/middleware"
	"github.com/civicdesk/civicdesk/internal/service"
	"github.com/civicdesk/civicdesk/internal/transport"
)

type AIHTTP struct {
	Svc *service.ComplaintService
}

func (h *AIHTTP) Transcription(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "ai.transcription")

	var req transport.TranscriptionRequest
	if err := bindBody(c, &req); err != nil {
		return fail(l, "transcription_failed", err)
	}
	complaintID, err := parseID(req.ComplaintID, "complaint_id")
	if err != nil {
		return fail(l, "transcription_failed", err)
	}

	out, err := h.Svc.SaveTranscript(ctx, service.TranscriptInput{
		ComplaintID:          complaintID,
		TranscriptText:       req.TranscriptText,
		TranscriptConfidence: req.TranscriptConfidence,
		ModelName:            req.ModelName,
	})
	if err != nil {
		return fail(l, "transcription_failed", err)
	}
	return okMessage(c, http.StatusCreated, "Transcript saved", out)
}

func (h *AIHTTP) Classification(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "ai.classification")

	var req transport.ClassificationRequest
	if err := bindBody(c, &req); err != nil {
		return fail(l, "classification_failed", err)
	}
	complaintID, err := parseID(req.ComplaintID, "complaint_id")
	if err != nil {
		return fail(l, "classification_failed", err)
	}

	out, err := h.Svc.RecordClassification(ctx, service.ClassificationInput{
		ComplaintID: complaintID,
		Label:       req.ClassificationLabel,
		Confidence:  req.ClassificationConfidence,
		ModelName:   req.ModelName,
	}, middleware.IdentityFrom(c).Actor(""))
	if err != nil {
		return fail(l, "classification_failed", err)
	}
	return okMessage(c, http.StatusCreated, "AI classification saved", out)
}

func (h *AIHTTP) Override(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "ai.override")

	var req transport.OverrideRequest
	if err := bindBody(c, &req); err != nil {
		return fail(l, "override_failed", err)
	}
	complaintID, err := parseID(req.ComplaintID, "complaint_id")
	if err != nil {
		return fail(l, "override_failed", err)
	}

	out, err := h.Svc.OverrideClassification(ctx, complaintID, req.ClassificationLabel,
		middleware.IdentityFrom(c).Actor(noteOf(req.Note)))
	if err != nil {
		return fail(l, "override_failed", err)
	}
	return okMessage(c, http.StatusOK, "AI classification overridden", out)
}

// AutoClassify runs the external classifier on the complaint text.
func (h *AIHTTP) AutoClassify(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "ai.auto_classify")

	id, err := parseID(c.Param("id"), "complaint_id")
	if err != nil {
		return fail(l, "auto_classify_failed", err)
	}
	out, err := h.Svc.AutoClassify(ctx, id, middleware.IdentityFrom(c).Actor("Classified by external model"))
	if err != nil {
		return fail(l, "auto_classify_failed", err)
	}
	return okMessage(c, http.StatusCreated, "AI classification saved", out)
}
