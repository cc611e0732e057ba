package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/civicdesk/civicdesk/internal/metrics"
	"github.com/civicdesk/civicdesk/internal/middleware"
	"github.com/civicdesk/civicdesk/internal/models"
	"github.com/civicdesk/civicdesk/internal/realtime"
	"github.com/civicdesk/civicdesk/internal/service"
	loggingmw "github.com/civicdesk/civicdesk/pkg/middleware/logging"
)

type Deps struct {
	Log *slog.Logger

	Health        *HealthHTTP
	Auth          *AuthHTTP
	Complaints    *ComplaintHTTP
	Media         *MediaHTTP
	Assignments   *AssignmentHTTP
	AI            *AIHTTP
	Citizens      *CitizenHTTP
	Notifications *NotificationHTTP
	Interactions  *InteractionHTTP
	Search        *SearchHTTP
	Intake        *IntakeHTTP

	Sessions     middleware.Resolver
	OTPLimiter   *middleware.RateLimiter
	IntakeKey    []byte
	IntakeIssuer string

	// Realtime is optional; without it the websocket routes are absent.
	Realtime *realtime.Server
}

// New builds an echo instance with the shared middleware chain and error
// renderer and registers every route.
func New(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), loggingmw.RequestLogger(d.Log))
	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", d.Health.Live)
	e.GET("/health/ready", d.Health.Ready)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	auth := middleware.NewAuth(d.Sessions)
	staff := middleware.RequireRole(service.StaffRoles...)
	admin := middleware.RequireRole(models.RoleAdmin)

	otp := []echo.MiddlewareFunc{}
	if d.OTPLimiter != nil {
		otp = append(otp, d.OTPLimiter.Middleware)
	}
	a := e.Group("/api/v1/auth")
	a.POST("/otp/request", d.Auth.RequestOTP, otp...)
	a.POST("/otp/verify", d.Auth.VerifyOTP, otp...)
	a.POST("/refresh", d.Auth.Refresh)
	a.POST("/logout", d.Auth.Logout, auth.RequireAuth)
	a.GET("/me", d.Auth.Me, auth.RequireAuth)

	in := e.Group("/api/v1/intake", middleware.RequireIntakeToken(d.IntakeKey, d.IntakeIssuer))
	in.POST("/sms", d.Intake.SMS)
	in.POST("/whatsapp", d.Intake.WhatsApp)
	in.POST("/voice", d.Intake.Voice)

	api := e.Group("/api/v1", auth.RequireAuth)
	api.POST("/complaints", d.Complaints.Create)
	api.GET("/complaints", d.Complaints.List, staff)
	api.GET("/complaints/number/:complaint_no", d.Complaints.GetByNumber, staff)
	api.GET("/complaints/:id", d.Complaints.Get, staff)
	api.PATCH("/complaints/:id/status", d.Complaints.UpdateStatus, staff)
	api.DELETE("/complaints/:id", d.Complaints.Delete, admin)

	api.POST("/media/complaints/:complaint_id", d.Media.Attach, staff)
	api.GET("/media/complaints/:complaint_id", d.Media.List, staff)

	api.POST("/assignments", d.Assignments.Assign, staff)
	api.PATCH("/assignments/:id/reassign", d.Assignments.Reassign, staff)
	api.PATCH("/assignments/:id/close", d.Assignments.Close, staff)

	api.POST("/ai/transcription", d.AI.Transcription, staff)
	api.POST("/ai/classification", d.AI.Classification, staff)
	api.PATCH("/ai/classification/override", d.AI.Override, staff)
	api.POST("/ai/classification/auto/:id", d.AI.AutoClassify, staff)

	api.GET("/citizens/:phone", d.Citizens.Get, staff)
	api.GET("/citizens/:phone/history", d.Citizens.History, staff)

	api.POST("/notifications", d.Notifications.Queue, staff)
	api.GET("/notifications/complaints/:complaint_id", d.Notifications.List, staff)
	api.PATCH("/notifications/:id/status", d.Notifications.MarkStatus, staff)

	api.POST("/interactions/chat", d.Interactions.Chat)
	api.POST("/interactions/voice/start", d.Interactions.VoiceStart)
	api.POST("/interactions/voice", d.Interactions.VoiceTurn)
	api.POST("/interactions/voice/end", d.Interactions.VoiceEnd)

	api.GET("/search/complaints", d.Search.Complaints, staff)

	if d.Realtime != nil {
		e.GET("/ws/ops", echo.WrapHandler(http.HandlerFunc(d.Realtime.ServeOps)))
		e.GET("/ws/voice", echo.WrapHandler(http.HandlerFunc(d.Realtime.ServeVoice)))
	}
}
