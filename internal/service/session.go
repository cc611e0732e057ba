package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/hash"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/models"
	"github.com/civicdesk/civicdesk/internal/repo"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

var StaffRoles = []string{models.RoleOfficer, models.RoleAdmin}

type SessionService struct {
	Repo       *repo.GormRepo
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// TokenPair carries plaintext tokens. It is returned once at issue or
// rotation and never stored.
type TokenPair struct {
	SessionID        uuid.UUID `json:"session_id"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresIn  int64     `json:"access_expires_in"`
	RefreshExpiresIn int64     `json:"refresh_expires_in"`
	TokenType        string    `json:"token_type"`
}

// Identity is the caller bound to a presented access token.
type Identity struct {
	SessionID uuid.UUID
	Citizen   *models.Citizen
	Role      string
}

func (i Identity) IsStaff() bool {
	return i.Role == models.RoleOfficer || i.Role == models.RoleAdmin
}

// Actor maps the identity onto an audit actor. Staff act as admin.
func (i Identity) Actor(note string) Actor {
	a := Actor{Type: models.ActorCitizen}
	if i.IsStaff() {
		a.Type = models.ActorAdmin
	}
	if i.Citizen != nil {
		id := i.Citizen.ID.String()
		a.ID = &id
	}
	if note != "" {
		a.Note = &note
	}
	return a
}

func (s *SessionService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return DefaultAccessTTL
}

func (s *SessionService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return DefaultRefreshTTL
}

func (s *SessionService) Create(ctx context.Context, citizenID uuid.UUID) (*TokenPair, error) {
	return s.issue(ctx, s.Repo, citizenID)
}

// issue mints a session through r so callers can bind it to a transaction.
func (s *SessionService) issue(ctx context.Context, r *repo.GormRepo, citizenID uuid.UUID) (*TokenPair, error) {
	access, refresh, err := newTokenPair()
	if err != nil {
		return nil, err
	}
	now := clock(s.Now)
	sess := &models.AuthSession{
		CitizenID:        citizenID,
		AccessTokenHash:  hash.Sha256Hex(access),
		RefreshTokenHash: hash.Sha256Hex(refresh),
		AccessExpiresAt:  now.Add(s.accessTTL()),
		RefreshExpiresAt: now.Add(s.refreshTTL()),
	}
	if err := r.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return s.pair(sess.ID, access, refresh), nil
}

func (s *SessionService) pair(id uuid.UUID, access, refresh string) *TokenPair {
	return &TokenPair{
		SessionID:        id,
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresIn:  int64(s.accessTTL().Seconds()),
		RefreshExpiresIn: int64(s.refreshTTL().Seconds()),
		TokenType:        "bearer",
	}
}

func (s *SessionService) Resolve(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, apperr.New(apperr.Unauthorized, "missing bearer token")
	}
	sess, err := s.Repo.SessionByAccessHash(ctx, hash.Sha256Hex(accessToken))
	if err != nil {
		if errors.Is(err, apperr.NotFound) {
			return nil, apperr.New(apperr.Unauthorized, "invalid or expired token")
		}
		return nil, err
	}
	if sess.IsRevoked || !clock(s.Now).Before(sess.AccessExpiresAt) || sess.Citizen == nil {
		return nil, apperr.New(apperr.Unauthorized, "invalid or expired token")
	}
	role := sess.Citizen.Role
	if role == "" {
		role = models.RoleCitizen
	}
	return &Identity{SessionID: sess.ID, Citizen: sess.Citizen, Role: role}, nil
}

// Refresh rotates both tokens. Of several concurrent calls presenting the
// same refresh token exactly one succeeds.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if refreshToken == "" {
		return nil, apperr.New(apperr.InvalidInput, "refresh_token is required")
	}
	oldHash := hash.Sha256Hex(refreshToken)
	sess, err := s.Repo.SessionByRefreshHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, apperr.NotFound) {
			return nil, apperr.New(apperr.Unauthorized, "invalid refresh token")
		}
		return nil, err
	}
	if sess.IsRevoked {
		return nil, apperr.New(apperr.Unauthorized, "invalid refresh token")
	}

	now := clock(s.Now)
	if !now.Before(sess.RefreshExpiresAt) {
		if err := s.Repo.RevokeSession(ctx, sess.ID, now); err != nil {
			return nil, err
		}
		l.Info("refresh_expired", "session_id", sess.ID)
		return nil, apperr.New(apperr.Unauthorized, "refresh token expired")
	}

	access, refresh, err := newTokenPair()
	if err != nil {
		return nil, err
	}
	next := repo.Rotation{
		AccessTokenHash:  hash.Sha256Hex(access),
		RefreshTokenHash: hash.Sha256Hex(refresh),
		AccessExpiresAt:  now.Add(s.accessTTL()),
		RefreshExpiresAt: now.Add(s.refreshTTL()),
	}
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		ok, err := tx.RotateSession(ctx, sess.ID, oldHash, next)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.Unauthorized, "refresh token already used")
		}
		return tx.TouchCitizenLogin(ctx, sess.CitizenID, now)
	})
	if err != nil {
		l.Warn("refresh_failed", "session_id", sess.ID, "error", err)
		return nil, err
	}
	return s.pair(sess.ID, access, refresh), nil
}

// Revoke is idempotent.
func (s *SessionService) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	return s.Repo.RevokeSession(ctx, sessionID, clock(s.Now))
}

// RequireRole fails Forbidden unless the identity holds one of roles.
func RequireRole(id *Identity, roles ...string) error {
	if id == nil {
		return apperr.New(apperr.Unauthorized, "authentication required")
	}
	for _, r := range roles {
		if id.Role == r {
			return nil
		}
	}
	return apperr.New(apperr.Forbidden, "insufficient role")
}

func newTokenPair() (access, refresh string, err error) {
	if access, err = hash.NewToken(); err != nil {
		return "", "", apperr.Wrap(apperr.Internal, err, "generate token")
	}
	if refresh, err = hash.NewToken(); err != nil {
		return "", "", apperr.Wrap(apperr.Internal, err, "generate token")
	}
	return access, refresh, nil
}
