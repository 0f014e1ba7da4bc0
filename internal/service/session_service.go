package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/repository"
)

type SessionService interface {
	// Load returns the live session with the given id, or nil when there is none.
	Load(ctx context.Context, id string) (*model.Session, error)
	// ForUser returns the user's most recent live session, or nil.
	ForUser(ctx context.Context, userID uint64) (*model.Session, error)
	// Start creates a session, bound to userID when it is non-nil.
	Start(ctx context.Context, userID *uint64) (*model.Session, error)
	Bind(ctx context.Context, sess *model.Session, userID uint64) error
	Destroy(ctx context.Context, id string) error
	Sweep(ctx context.Context) (int64, error)
}

type sessionService struct {
	repo repository.SessionRepository
	ttl  time.Duration
}

func NewSessionService(repo repository.SessionRepository, ttl time.Duration) SessionService {
	return &sessionService{repo: repo, ttl: ttl}
}

func (s *sessionService) Load(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, nil
	}
	sess, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

func (s *sessionService) ForUser(ctx context.Context, userID uint64) (*model.Session, error) {
	sess, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

func (s *sessionService) Start(ctx context.Context, userID *uint64) (*model.Session, error) {
	return s.repo.Create(ctx, userID, s.ttl)
}

// Bind attaches the session to a user and renews its expiry.
func (s *sessionService) Bind(ctx context.Context, sess *model.Session, userID uint64) error {
	sess.UserID = &userID
	sess.ExpiresAt = time.Now().Add(s.ttl)
	return s.repo.Save(ctx, sess)
}

func (s *sessionService) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.repo.Delete(ctx, id)
}

func (s *sessionService) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("removed %d expired sessions", n)
	}
	return n, nil
}
