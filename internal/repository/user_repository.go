package repository

import (
	"context"
	"strings"

	"github.com/shinyyama/oneauction/internal/model"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.User, error)
	Update(ctx context.Context, user *model.User) error
	List(ctx context.Context, limit, offset int) ([]model.User, int64, error)
	SetDB(db *gorm.DB)
}

type userRepository struct {
	conn
}

func NewUserRepository(db *gorm.DB) UserRepository {
	r := &userRepository{}
	r.SetDB(db)
	return r
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var u model.User
	if err := db.WithContext(ctx).Scopes(NotDeleted("users")).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var u model.User
	if err := db.WithContext(ctx).
		Scopes(NotDeleted("users")).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.User, error) {
	out := make(map[uint64]model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var users []model.User
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]model.User, int64, error) {
	db := r.get()
	if db == nil {
		return nil, 0, ErrDBNotReady
	}
	var (
		users []model.User
		total int64
	)
	q := apply(db.WithContext(ctx).Model(&model.User{}), NotDeleted("users"))
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("id asc").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
