package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicdesk/civicdesk/internal/dbtest"
	"github.com/civicdesk/civicdesk/internal/eventbus"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/middleware"
	"github.com/civicdesk/civicdesk/internal/models"
	"github.com/civicdesk/civicdesk/internal/repo"
	"github.com/civicdesk/civicdesk/internal/search"
	"github.com/civicdesk/civicdesk/internal/service"
	"github.com/civicdesk/civicdesk/pkg/tokens"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Error   *errorBody      `json:"error"`
}

type testEnv struct {
	e        *echo.Echo
	repo     *repo.GormRepo
	sessions *service.SessionService
	deps     *Deps
}

func newEnv(t *testing.T, tweak func(*Deps)) *testEnv {
	t.Helper()
	gdb := dbtest.New(t)
	r := repo.New(gdb)
	bus := eventbus.New(logging.Discard())

	sessions := &service.SessionService{Repo: r}
	complaints := &service.ComplaintService{Repo: r, Bus: bus}
	intake := &service.IntakeService{Complaints: complaints, Bus: bus}
	d := &Deps{
		Log:           logging.Discard(),
		Health:        &HealthHTTP{DB: gdb},
		Auth:          &AuthHTTP{Auth: &service.AuthService{Repo: r, Sessions: sessions, HashCost: bcrypt.MinCost, EchoCode: true}, Sessions: sessions},
		Complaints:    &ComplaintHTTP{Svc: complaints},
		Media:         &MediaHTTP{Svc: complaints},
		Assignments:   &AssignmentHTTP{Svc: &service.AssignmentService{Repo: r, Bus: bus}},
		AI:            &AIHTTP{Svc: complaints},
		Citizens:      &CitizenHTTP{Svc: &service.CitizenService{Repo: r}},
		Notifications: &NotificationHTTP{Svc: &service.NotificationService{Repo: r}},
		Interactions:  &InteractionHTTP{Intake: intake, Voice: &service.VoiceAgentService{Complaints: complaints}},
		Search:        &SearchHTTP{},
		Intake:        &IntakeHTTP{Svc: intake},
		Sessions:      sessions,
	}
	if tweak != nil {
		tweak(d)
	}
	return &testEnv{e: New(d), repo: r, sessions: sessions, deps: d}
}

// login creates a citizen with role and returns a bearer token for it.
func (env *testEnv) login(t *testing.T, phone, role string) string {
	t.Helper()
	ctx := context.Background()
	c, err := env.repo.UpsertCitizen(ctx, &models.Citizen{PhoneNumber: phone, Role: role}, nil)
	require.NoError(t, err)
	pair, err := env.sessions.Create(ctx, c.ID)
	require.NoError(t, err)
	return pair.AccessToken
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var out apiResponse
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func (env *testEnv) form(t *testing.T, path string, values url.Values, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func createComplaint(t *testing.T, env *testEnv, token string) models.Complaint {
	t.Helper()
	rec, res := env.do(t, http.MethodPost, "/api/v1/complaints", token, map[string]any{
		"channel":  "sms",
		"raw_text": "Streetlight out on Lake Road",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Complaint](t, res.Data)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestUnknownRouteRendersEnvelope(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)

	rec, res := env.do(t, http.MethodGet, "/api/v2/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, "not_found", res.Error.Kind)
}

func TestOTPLoginFlow(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)

	rec, res := env.do(t, http.MethodPost, "/api/v1/auth/otp/request", "", map[string]string{"phone_number": "+91 98765-43210"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "OTP sent successfully", res.Message)
	ch := decode[service.Challenge](t, res.Data)
	assert.Equal(t, "+919876543210", ch.PhoneNumber)
	require.Len(t, ch.DevCode, 6)

	rec, res = env.do(t, http.MethodPost, "/api/v1/auth/otp/verify", "", map[string]string{
		"phone_number": ch.PhoneNumber, "otp": "wrong!",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credential", res.Error.Kind)

	rec, res = env.do(t, http.MethodPost, "/api/v1/auth/otp/verify", "", map[string]string{
		"phone_number": ch.PhoneNumber, "otp": ch.DevCode, "name": "Asha",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		User         struct {
			PhoneNumber string `json:"phone_number"`
		} `json:"user"`
	}](t, res.Data)
	require.NotEmpty(t, login.AccessToken)
	assert.Equal(t, ch.PhoneNumber, login.User.PhoneNumber)

	rec, res = env.do(t, http.MethodGet, "/api/v1/auth/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[struct {
		Role string `json:"role"`
	}](t, res.Data)
	assert.Equal(t, models.RoleCitizen, me.Role)

	rec, res = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": login.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pair := decode[service.TokenPair](t, res.Data)
	assert.NotEqual(t, login.AccessToken, pair.AccessToken)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "rotated refresh token is spent")

	rec, _ = env.do(t, http.MethodPost, "/api/v1/auth/logout", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/api/v1/auth/me", pair.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOTPRoutesAreRateLimited(t *testing.T) {
	t.Parallel()
	env := newEnv(t, func(d *Deps) { d.OTPLimiter = middleware.NewRateLimiter(1, 1) })

	body := map[string]string{"phone_number": "+15550100"}
	rec, _ := env.do(t, http.MethodPost, "/api/v1/auth/otp/request", "", body)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, res := env.do(t, http.MethodPost, "/api/v1/auth/otp/request", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", res.Error.Kind)
}

func TestComplaintRoutes(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)
	citizen := env.login(t, "+15550001", models.RoleCitizen)
	officer := env.login(t, "+15550002", models.RoleOfficer)
	admin := env.login(t, "+15550003", models.RoleAdmin)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/complaints", "", map[string]string{"channel": "sms"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/complaints", citizen, map[string]any{
		"phone_number": "+19999999", "channel": "sms", "raw_text": "pothole",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Complaint](t, json.RawMessage(extractData(t, rec)))
	require.NotNil(t, created.Citizen)
	assert.Equal(t, "+15550001", created.Citizen.PhoneNumber, "citizens file under their own number")
	assert.Equal(t, models.StatusReceived, created.Status)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/complaints", citizen, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, res := env.do(t, http.MethodGet, "/api/v1/complaints?status=received&limit=500", officer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	meta := decode[pageMeta](t, res.Meta)
	assert.Equal(t, pageMeta{Page: 1, Limit: 100, Total: 1}, meta)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/complaints?start_date=yesterday", officer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/api/v1/complaints/" + created.ID.String()
	rec, res = env.do(t, http.MethodGet, path, officer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[struct {
		ComplaintNumber int64                   `json:"complaint_number"`
		Events          []models.ComplaintEvent `json:"events"`
	}](t, res.Data)
	assert.Equal(t, created.ComplaintNumber, detail.ComplaintNumber)
	require.Len(t, detail.Events, 1)
	assert.Equal(t, models.EventComplaintCreated, detail.Events[0].EventType)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/complaints/number/"+itoa(created.ComplaintNumber), officer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/api/v1/complaints/number/abc", officer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/api/v1/complaints/not-a-uuid", officer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, res = env.do(t, http.MethodPatch, path+"/status", officer, map[string]string{"status": "verified_closed"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_transition", res.Error.Kind)

	rec, res = env.do(t, http.MethodPatch, path+"/status", officer, map[string]string{"status": "pending_triage", "note": "triage"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.StatusPendingTriage, decode[models.Complaint](t, res.Data).Status)

	rec, _ = env.do(t, http.MethodDelete, path, officer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = env.do(t, http.MethodDelete, path, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = env.do(t, http.MethodGet, path, officer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func extractData(t *testing.T, rec *httptest.ResponseRecorder) []byte {
	t.Helper()
	var res apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res.Data
}

func itoa(n int64) string {
	raw, _ := json.Marshal(n)
	return string(raw)
}

func TestAssignmentRoutes(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)
	citizen := env.login(t, "+15550011", models.RoleCitizen)
	officer := env.login(t, "+15550012", models.RoleOfficer)
	cmp := createComplaint(t, env, citizen)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/assignments", officer, map[string]string{"complaint_id": cmp.ID.String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "assignee is required")

	rec, res := env.do(t, http.MethodPost, "/api/v1/assignments", officer, map[string]any{
		"complaint_id": cmp.ID.String(), "assigned_to_id": "crew-7", "due_at": time.Now().Add(48 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[models.Assignment](t, res.Data)
	assert.True(t, first.IsActive)
	assert.Equal(t, service.DefaultAssigneeType, first.AssignedToType)

	rec, res = env.do(t, http.MethodPatch, "/api/v1/assignments/"+first.ID.String()+"/reassign", officer, map[string]string{
		"assigned_to_id": "crew-9", "assigned_to_type": "contractor",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode[models.Assignment](t, res.Data)
	assert.NotEqual(t, first.ID, second.ID)

	rec, res = env.do(t, http.MethodPatch, "/api/v1/assignments/"+second.ID.String()+"/close", officer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[models.Assignment](t, res.Data).IsActive)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/assignments", citizen, map[string]string{
		"complaint_id": cmp.ID.String(), "assigned_to_id": "crew-1",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAIRoutes(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)
	citizen := env.login(t, "+15550021", models.RoleCitizen)
	officer := env.login(t, "+15550022", models.RoleOfficer)
	cmp := createComplaint(t, env, citizen)

	rec, res := env.do(t, http.MethodPost, "/api/v1/ai/transcription", officer, map[string]any{
		"complaint_id": cmp.ID.String(), "transcript_text": "light is broken",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "whisper", decode[models.AIOutput](t, res.Data).ModelName)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/ai/classification", officer, map[string]any{
		"complaint_id": cmp.ID.String(), "classification_label": "Streetlight", "classification_confidence": 0.91,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got, err := env.repo.ComplaintByID(context.Background(), cmp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAIClassified, got.Status)
	require.NotNil(t, got.Category)
	assert.Equal(t, "streetlight", *got.Category)

	rec, _ = env.do(t, http.MethodPatch, "/api/v1/ai/classification/override", officer, map[string]any{
		"complaint_id": cmp.ID.String(), "classification_label": "electrical",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, res = env.do(t, http.MethodPost, "/api/v1/ai/classification/auto/"+cmp.ID.String(), officer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "classifier is not configured", res.Error.Message)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/ai/classification", officer, map[string]any{
		"complaint_id": cmp.ID.String(), "classification_label": "x", "classification_confidence": 1.5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCitizenRoutes(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)
	citizen := env.login(t, "+15550031", models.RoleCitizen)
	officer := env.login(t, "+15550032", models.RoleOfficer)
	createComplaint(t, env, citizen)
	createComplaint(t, env, citizen)

	rec, res := env.do(t, http.MethodGet, "/api/v1/citizens/+15550031", officer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "+15550031", decode[models.Citizen](t, res.Data).PhoneNumber)

	rec, res = env.do(t, http.MethodGet, "/api/v1/citizens/+15550031/history?limit=1", officer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Complaint](t, res.Data), 1)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/citizens/+15559999", officer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeSearcher struct {
	query     string
	from, max int
	id        uuid.UUID
}

func (f *fakeSearcher) Search(_ context.Context, q string, from, size int) (int64, []search.Document, error) {
	f.query, f.from, f.max = q, from, size
	return 42, []search.Document{{ID: f.id, ComplaintNumber: 7}}, nil
}

func TestSearchRoute(t *testing.T) {
	t.Parallel()

	env := newEnv(t, nil)
	officer := env.login(t, "+15550041", models.RoleOfficer)
	rec, res := env.do(t, http.MethodGet, "/api/v1/search/complaints?q=pothole", officer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "search is not configured", res.Error.Message)

	fake := &fakeSearcher{id: uuid.New()}
	env = newEnv(t, func(d *Deps) { d.Search = &SearchHTTP{Searcher: fake} })
	officer = env.login(t, "+15550042", models.RoleOfficer)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/search/complaints", officer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, res = env.do(t, http.MethodGet, "/api/v1/search/complaints?q=water+leak&page=3&size=10", officer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "water leak", fake.query)
	assert.Equal(t, 20, fake.from)
	assert.Equal(t, 10, fake.max)
	assert.Equal(t, pageMeta{Page: 3, Limit: 10, Total: 42}, decode[pageMeta](t, res.Meta))
	docs := decode[[]search.Document](t, res.Data)
	require.Len(t, docs, 1)
	assert.Equal(t, fake.id, docs[0].ID)
	assert.Equal(t, int64(7), docs[0].ComplaintNumber)
}

func TestIntakeWebhooks(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)

	sms := url.Values{"From": {"+15550051"}, "Body": {"garbage not collected"}, "MessageSid": {"SM1"}}
	rec := env.form(t, "/api/v1/intake/sms", sms, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "<Message>Complaint #1 received. We will keep you updated.</Message>")

	rec = env.form(t, "/api/v1/intake/sms", sms, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Response></Response>", "redelivery is acknowledged empty")

	rec = env.form(t, "/api/v1/intake/sms", url.Values{"Body": {"no sender"}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	wa := url.Values{
		"From":              {"whatsapp:+15550052"},
		"MessageSid":        {"WA1"},
		"NumMedia":          {"2"},
		"MediaUrl0":         {"https://media.example/0"},
		"MediaContentType0": {"audio/ogg"},
		"MediaUrl1":         {"https://media.example/1"},
		"MediaContentType1": {"image/jpeg"},
	}
	rec = env.form(t, "/api/v1/intake/whatsapp", wa, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Complaint #2 received")

	cmp, err := env.repo.ComplaintByNumber(context.Background(), 2)
	require.NoError(t, err)
	media, err := env.repo.MediaForComplaint(context.Background(), cmp.ID)
	require.NoError(t, err)
	require.Len(t, media, 2)

	voice := url.Values{"From": {"+15550053"}, "CallSid": {"CA1"}, "RecordingUrl": {"https://rec.example/1"}, "RecordingDuration": {"12.5"}}
	rec = env.form(t, "/api/v1/intake/voice", voice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "<Say>Complaint 3 registered successfully.</Say>")
}

func TestIntakeRequiresTokenWhenConfigured(t *testing.T) {
	t.Parallel()
	secret := []byte("intake-secret")
	env := newEnv(t, func(d *Deps) {
		d.IntakeKey = secret
		d.IntakeIssuer = "civicdesk"
	})
	msg := url.Values{"From": {"+15550061"}, "Body": {"flooded street"}}

	rec := env.form(t, "/api/v1/intake/sms", msg, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := tokens.SignIntakeToken(secret, "civicdesk", "twilio", time.Minute)
	require.NoError(t, err)
	rec = env.form(t, "/api/v1/intake/sms", msg, http.Header{middleware.IntakeTokenHeader: {tok}})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestMediaRoutes(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)
	officer := env.login(t, "+15550051", models.RoleOfficer)
	citizen := env.login(t, "+15550052", models.RoleCitizen)
	c := createComplaint(t, env, citizen)
	path := "/api/v1/media/complaints/" + c.ID.String()

	rec, _ := env.do(t, http.MethodPost, path, citizen, map[string]any{"media_type": "image", "storage_path": "x/y.jpg"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.do(t, http.MethodPost, path, officer, map[string]any{"media_type": "video", "storage_path": "x/y.mp4"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, res := env.do(t, http.MethodPost, path, officer, map[string]any{
		"media_type":   "Image",
		"storage_path": "evidence/lamp.jpg",
		"mime_type":    "image/jpeg",
		"size_bytes":   2048,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	m := decode[models.ComplaintMedia](t, res.Data)
	assert.Equal(t, "image", m.MediaType)
	assert.Equal(t, service.DefaultBucket, m.StorageBucket)

	rec, res = env.do(t, http.MethodGet, path, officer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.ComplaintMedia](t, res.Data), 1)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/media/complaints/"+uuid.NewString(), officer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationRoutes(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)
	officer := env.login(t, "+15550061", models.RoleOfficer)
	c := createComplaint(t, env, env.login(t, "+15550062", models.RoleCitizen))

	rec, _ := env.do(t, http.MethodPost, "/api/v1/notifications", officer, map[string]any{"complaint_id": c.ID.String(), "channel": "fax"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = env.do(t, http.MethodPost, "/api/v1/notifications", officer, map[string]any{"complaint_id": uuid.NewString(), "channel": "sms"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, res := env.do(t, http.MethodPost, "/api/v1/notifications", officer, map[string]any{
		"complaint_id": c.ID.String(),
		"channel":      "SMS",
		"template_key": "status_update",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	n := decode[models.Notification](t, res.Data)
	assert.Equal(t, "sms", n.Channel)
	assert.Equal(t, models.DeliveryQueued, n.DeliveryStatus)

	rec, res = env.do(t, http.MethodPatch, "/api/v1/notifications/"+n.ID.String()+"/status", officer, map[string]any{
		"delivery_status":     "delivered",
		"provider_message_id": "SM-out-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	n = decode[models.Notification](t, res.Data)
	assert.Equal(t, models.DeliveryDelivered, n.DeliveryStatus)
	assert.NotNil(t, n.SentAt)

	rec, _ = env.do(t, http.MethodPatch, "/api/v1/notifications/"+n.ID.String()+"/status", officer, map[string]any{"delivery_status": "lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = env.do(t, http.MethodPatch, "/api/v1/notifications/"+uuid.NewString()+"/status", officer, map[string]any{"delivery_status": "sent"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, res = env.do(t, http.MethodGet, "/api/v1/notifications/complaints/"+c.ID.String(), officer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Notification](t, res.Data), 1)
}

func TestInteractionRoutes(t *testing.T) {
	t.Parallel()
	env := newEnv(t, nil)
	citizen := env.login(t, "+15550071", models.RoleCitizen)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/interactions/chat", "", map[string]any{"message_text": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, res := env.do(t, http.MethodPost, "/api/v1/interactions/chat", citizen, map[string]any{
		"phone_number": "+15559990",
		"message_text": "Garbage not collected for a week",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	chat := decode[models.Complaint](t, res.Data)
	assert.Equal(t, "whatsapp", chat.Channel)
	assert.Equal(t, "+15550071", chat.Citizen.PhoneNumber, "citizens file under their own number")

	rec, res = env.do(t, http.MethodPost, "/api/v1/interactions/voice/start", citizen, map[string]any{"language": "Hindi"})
	require.Equal(t, http.StatusOK, rec.Code)
	session := decode[service.VoiceSession](t, res.Data)
	assert.True(t, strings.HasPrefix(session.SessionID, "sess_"))
	assert.Equal(t, service.DefaultGreeting, session.Message)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/interactions/voice", citizen, map[string]any{"session_id": session.SessionID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, res = env.do(t, http.MethodPost, "/api/v1/interactions/voice", citizen, map[string]any{"session_id": session.SessionID, "text": "water leak"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.AgentFallbackReply, decode[service.VoiceReply](t, res.Data).ResponseText)

	end := map[string]any{
		"session_id": session.SessionID,
		"history":    []map[string]string{{"role": "user", "content": "Water leaking on Main St"}},
	}
	rec, res = env.do(t, http.MethodPost, "/api/v1/interactions/voice/end", citizen, end)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	voice := decode[models.Complaint](t, res.Data)
	assert.Equal(t, "voice", voice.Channel)
	assert.Equal(t, session.SessionID, *voice.SourceCallID)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/interactions/voice/end", citizen, end)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
