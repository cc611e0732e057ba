package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/hash"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/metrics"
	"github.com/civicdesk/civicdesk/internal/models"
	"github.com/civicdesk/civicdesk/internal/repo"
)

const (
	DefaultOTPTTL         = 5 * time.Minute
	DefaultOTPMaxAttempts = 5
	otpDigits             = 6
)

// CodeSender delivers a one-time code out of band.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// LogSender records that a code was issued without delivering it anywhere.
type LogSender struct{}

func (LogSender) SendCode(ctx context.Context, phone, _ string) error {
	logging.FromContext(ctx).Info("otp_issued", "phone", phone)
	return nil
}

type AuthService struct {
	Repo        *repo.GormRepo
	Sessions    *SessionService
	Sender      CodeSender
	Now         func() time.Time
	TTL         time.Duration
	MaxAttempts int
	// HashCost is the bcrypt cost; zero selects the library default.
	HashCost int
	// EchoCode returns the plaintext code to the caller. Development only.
	EchoCode bool
}

type Challenge struct {
	PhoneNumber string    `json:"phone_number"`
	ExpiresAt   time.Time `json:"expires_at"`
	DevCode     string    `json:"dev_otp,omitempty"`
}

type Profile struct {
	Name              *string
	PreferredLanguage *string
}

type Login struct {
	Tokens  *TokenPair
	Citizen *models.Citizen
}

func (s *AuthService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultOTPTTL
}

func (s *AuthService) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return DefaultOTPMaxAttempts
}

// RequestChallenge expires any pending challenge for the phone and issues a
// new one. It succeeds for known and unknown numbers alike.
func (s *AuthService) RequestChallenge(ctx context.Context, rawPhone string) (*Challenge, error) {
	l := logging.FromContext(ctx).With("svc", "auth.otp_request")

	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	code, err := hash.NewCode(otpDigits)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "generate otp")
	}
	codeHash, err := hash.HashCode(code, s.HashCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "hash otp")
	}

	ch := &models.OTPChallenge{
		PhoneNumber: phone,
		OTPHash:     codeHash,
		ExpiresAt:   clock(s.Now).Add(s.ttl()),
		Status:      models.OTPPending,
	}
	// A concurrent request for the same phone can win the pending slot
	// between our expire and insert; one retry picks up its row.
	for attempt := 0; ; attempt++ {
		err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
			if err := tx.ExpirePendingChallenges(ctx, phone); err != nil {
				return err
			}
			return tx.CreateChallenge(ctx, ch)
		})
		if err == nil || attempt > 0 || !errors.Is(err, apperr.Conflict) {
			break
		}
		ch.ID = uuid.Nil
	}
	if err != nil {
		l.Error("otp_request_failed", "phone", phone, "error", err)
		return nil, err
	}

	if s.Sender != nil {
		if err := s.Sender.SendCode(ctx, phone, code); err != nil {
			l.Error("otp_send_failed", "phone", phone, "error", err)
			return nil, apperr.Wrap(apperr.Internal, err, "send otp")
		}
	}
	metrics.OTPChallenges.WithLabelValues("issued").Inc()

	out := &Challenge{PhoneNumber: phone, ExpiresAt: ch.ExpiresAt}
	if s.EchoCode {
		out.DevCode = code
	}
	return out, nil
}

// VerifyChallenge checks code against the newest pending challenge. On
// success the challenge is consumed, the citizen upserted and a session
// minted, all in one transaction.
func (s *AuthService) VerifyChallenge(ctx context.Context, rawPhone, code string, profile Profile) (*Login, error) {
	l := logging.FromContext(ctx).With("svc", "auth.otp_verify")

	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, apperr.New(apperr.InvalidInput, "otp is required")
	}

	ch, err := s.Repo.LatestPendingChallenge(ctx, phone)
	if err != nil {
		if errors.Is(err, apperr.NotFound) {
			metrics.OTPChallenges.WithLabelValues("not_found").Inc()
			return nil, apperr.New(apperr.NotFound, "no pending otp challenge")
		}
		return nil, err
	}

	now := clock(s.Now)
	if now.After(ch.ExpiresAt) {
		if _, err := s.Repo.SetPendingChallengeStatus(ctx, ch.ID, models.OTPExpired, nil); err != nil {
			return nil, err
		}
		metrics.OTPChallenges.WithLabelValues("expired").Inc()
		return nil, apperr.New(apperr.Expired, "otp expired")
	}

	claimed, err := s.Repo.ClaimChallengeAttempt(ctx, ch.ID, s.maxAttempts())
	if err != nil {
		return nil, err
	}
	if !claimed {
		if _, err := s.Repo.SetPendingChallengeStatus(ctx, ch.ID, models.OTPBlocked, nil); err != nil {
			return nil, err
		}
		l.Warn("otp_blocked", "phone", phone, "challenge_id", ch.ID)
		metrics.OTPChallenges.WithLabelValues("blocked").Inc()
		return nil, apperr.New(apperr.RateLimited, "maximum otp attempts exceeded")
	}

	if !hash.CheckCode(ch.OTPHash, code) {
		l.Info("otp_verify_failed", "phone", phone, "attempts", ch.AttemptCount+1)
		metrics.OTPChallenges.WithLabelValues("invalid").Inc()
		return nil, apperr.New(apperr.InvalidCredential, "invalid otp")
	}

	var login Login
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		ok, err := tx.SetPendingChallengeStatus(ctx, ch.ID, models.OTPVerified, &now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.NotFound, "no pending otp challenge")
		}

		cols := []string{"is_phone_verified", "last_login_at"}
		c := &models.Citizen{PhoneNumber: phone, IsPhoneVerified: true, LastLoginAt: &now}
		if profile.Name != nil && *profile.Name != "" {
			c.Name = profile.Name
			cols = append(cols, "name")
		}
		if profile.PreferredLanguage != nil && *profile.PreferredLanguage != "" {
			c.PreferredLanguage = profile.PreferredLanguage
			cols = append(cols, "preferred_language")
		}
		citizen, err := tx.UpsertCitizen(ctx, c, cols)
		if err != nil {
			return err
		}

		tokens, err := s.Sessions.issue(ctx, tx, citizen.ID)
		if err != nil {
			return err
		}
		login = Login{Tokens: tokens, Citizen: citizen}
		return nil
	})
	if err != nil {
		l.Error("otp_verify_error", "phone", phone, "error", err)
		return nil, err
	}

	l.Info("otp_verified", "citizen_id", login.Citizen.ID)
	metrics.OTPChallenges.WithLabelValues("verified").Inc()
	return &login, nil
}
