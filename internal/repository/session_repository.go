package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/oneauction/internal/model"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, userID *uint64, ttl time.Duration) (*model.Session, error)
	Find(ctx context.Context, id string) (*model.Session, error)
	FindByUser(ctx context.Context, userID uint64) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	SetDB(db *gorm.DB)
}

type sessionRepository struct {
	conn
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	r := &sessionRepository{}
	r.SetDB(db)
	return r
}

func (r *sessionRepository) Create(ctx context.Context, userID *uint64, ttl time.Duration) (*model.Session, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	s := &model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Cart:      model.Cart{},
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// Find returns gorm.ErrRecordNotFound for unknown or expired sessions.
func (r *sessionRepository) Find(ctx context.Context, id string) (*model.Session, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var s model.Session
	if err := db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, time.Now()).
		First(&s).Error; err != nil {
		return nil, err
	}
	if s.Cart == nil {
		s.Cart = model.Cart{}
	}
	return &s, nil
}

// FindByUser returns the user's live session that expires last.
func (r *sessionRepository) FindByUser(ctx context.Context, userID uint64) (*model.Session, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var s model.Session
	if err := db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, time.Now()).
		Order("expires_at desc").
		First(&s).Error; err != nil {
		return nil, err
	}
	if s.Cart == nil {
		s.Cart = model.Cart{}
	}
	return &s, nil
}

func (r *sessionRepository) Save(ctx context.Context, s *model.Session) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Save(s).Error
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Delete(&model.Session{}, "id = ?", id).Error
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	db := r.get()
	if db == nil {
		return 0, ErrDBNotReady
	}
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.Session{})
	return res.RowsAffected, res.Error
}
