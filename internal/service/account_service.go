package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/oneauction/internal/lockout"
	"github.com/shinyyama/oneauction/internal/mailer"
	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/reqctx"
	"github.com/shinyyama/oneauction/internal/repository"
)

const activationTTL = 72 * time.Hour

type AccountConfig struct {
	// Debug activates accounts on registration instead of mailing a link.
	Debug    bool
	AppURL   string
	TokenTTL time.Duration
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password1 string
	Password2 string
}

type SettingsInput struct {
	FirstName       string
	LastName        string
	Email           string
	NewPassword     string
	ConfirmPassword string
}

type LoginResult struct {
	User  *model.User
	Token string
}

type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Activate(ctx context.Context, encodedID, token string) (*model.User, error)
	Login(ctx context.Context, visitors []string, email, password string) (*LoginResult, error)
	Authenticate(ctx context.Context, token string) (*model.User, error)
	ExternalUser(ctx context.Context, email, displayName string) (*model.User, error)
	User(ctx context.Context, id uint64) (*model.User, error)
	UpdateSettings(ctx context.Context, userID uint64, in SettingsInput) (*model.User, error)
}

type accountService struct {
	users   repository.UserRepository
	tokens  *TokenManager
	mailer  mailer.Mailer
	lockout *lockout.Tracker
	cfg     AccountConfig
	now     func() time.Time
}

func NewAccountService(users repository.UserRepository, tokens *TokenManager, m mailer.Mailer, tracker *lockout.Tracker, cfg AccountConfig) AccountService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 72 * time.Hour
	}
	return &accountService{users: users, tokens: tokens, mailer: m, lockout: tracker, cfg: cfg, now: time.Now}
}

func (s *accountService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if first == "" || last == "" {
		return nil, invalid("First and last name are required.")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return nil, err
	}
	if in.Password1 != in.Password2 {
		return nil, invalid(MsgPasswordsDiffer)
	}
	if !IsPasswordStrong(in.Password1) {
		return nil, invalid(MsgWeakPassword)
	}
	hash, err := HashPassword(in.Password1)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		Email:        email,
		FirstName:    first,
		LastName:     last,
		PasswordHash: hash,
		IsActive:     s.cfg.Debug,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	if !u.IsActive {
		if err := s.sendActivation(ctx, u); err != nil {
			log.Printf("%sactivation mail for user %d: %v", reqctx.Prefix(ctx), u.ID, err)
		}
	}
	return u, nil
}

func (s *accountService) sendActivation(ctx context.Context, u *model.User) error {
	token, err := s.tokens.Issue(u.ID, PurposeActivateAccount, activationTTL)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/activate-account/%s/%s", strings.TrimRight(s.cfg.AppURL, "/"), EncodeUID(u.ID), token)
	body := fmt.Sprintf(`Hi %s,

Welcome to OneAuction, thank you for joining our service.
We have created an account for you to unlock more features.

Please click the link below to verify your account:
%s

Thanks,
The OneAuction Team`, u.FullName(), link)
	return s.mailer.Send(ctx, u.Email, "Activate your OneAuction Account", body)
}

// EncodeUID renders a user id the way activation links carry it.
func EncodeUID(id uint64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(id, 10)))
}

func DecodeUID(s string) (uint64, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(b), 10, 64)
}

func (s *accountService) Activate(ctx context.Context, encodedID, token string) (*model.User, error) {
	id, err := DecodeUID(encodedID)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	tokenID, err := s.tokens.Parse(token, PurposeActivateAccount)
	if err != nil || tokenID != id {
		return nil, ErrUnauthenticated
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if u.IsActive {
		return u, nil
	}
	u.IsActive = true
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks credentials; visitors key the lockout counters.
func (s *accountService) Login(ctx context.Context, visitors []string, email, password string) (*LoginResult, error) {
	if s.lockout.Locked(visitors...) {
		return nil, ErrLockedOut
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(notFound(err), ErrNotFound) {
		return nil, err
	}
	if u == nil || !u.IsActive || !CheckPassword(u.PasswordHash, password) {
		s.lockout.Fail(visitors...)
		return nil, ErrBadCredentials
	}
	s.lockout.Reset(visitors...)

	now := s.now()
	u.LastLogin = &now
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(u.ID, PurposeAccess, s.cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: u, Token: token}, nil
}

func (s *accountService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	id, err := s.tokens.Parse(token, PurposeAccess)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return s.activeUser(ctx, id)
}

// ExternalUser maps a verified identity-provider email to a local user, creating it on first sight.
func (s *accountService) ExternalUser(ctx context.Context, email, displayName string) (*model.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		if !u.IsActive {
			return nil, ErrUnauthenticated
		}
		return u, nil
	}
	if !errors.Is(notFound(err), ErrNotFound) {
		return nil, err
	}
	// the random password is never disclosed, so only the provider can sign in
	hash, err := HashPassword(uuid.NewString())
	if err != nil {
		return nil, err
	}
	first, last, _ := strings.Cut(strings.TrimSpace(displayName), " ")
	u = &model.User{
		Email:        email,
		FirstName:    first,
		LastName:     strings.TrimSpace(last),
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *accountService) User(ctx context.Context, id uint64) (*model.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *accountService) UpdateSettings(ctx context.Context, userID uint64, in SettingsInput) (*model.User, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if first == "" || last == "" {
		return nil, invalid("First and last name are required.")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(email, u.Email) {
		if err := s.ensureEmailFree(ctx, email, u.ID); err != nil {
			return nil, err
		}
	}
	if in.NewPassword != "" || in.ConfirmPassword != "" {
		if in.NewPassword != in.ConfirmPassword {
			return nil, invalid(MsgPasswordsDiffer)
		}
		if !IsPasswordStrong(in.NewPassword) {
			return nil, invalid(MsgWeakPassword)
		}
		hash, err := HashPassword(in.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}
	u.FirstName, u.LastName, u.Email = first, last, email
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *accountService) activeUser(ctx context.Context, id uint64) (*model.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrUnauthenticated
	}
	return u, nil
}

func (s *accountService) ensureEmailFree(ctx context.Context, email string, self uint64) error {
	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil && existing.ID != self {
		return ErrEmailTaken
	}
	if err != nil && !errors.Is(notFound(err), ErrNotFound) {
		return err
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || len(email) > 254 {
		return "", invalid("Enter a valid email address.")
	}
	return email, nil
}
