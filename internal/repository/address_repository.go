package repository

import (
	"context"

	"github.com/shinyyama/oneauction/internal/model"
	"gorm.io/gorm"
)

type AddressRepository interface {
	ListByUser(ctx context.Context, userID uint64) ([]model.Address, error)
	FindByID(ctx context.Context, userID, id uint64) (*model.Address, error)
	Save(ctx context.Context, a *model.Address) error
	Delete(ctx context.Context, userID, id uint64) (bool, error)
	SetDB(db *gorm.DB)
}

type addressRepository struct {
	conn
}

func NewAddressRepository(db *gorm.DB) AddressRepository {
	r := &addressRepository{}
	r.SetDB(db)
	return r
}

func (r *addressRepository) ListByUser(ctx context.Context, userID uint64) ([]model.Address, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Address
	if err := db.WithContext(ctx).
		Where("user_id = ? AND delete_fl = ?", userID, false).
		Order("id asc").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *addressRepository) FindByID(ctx context.Context, userID, id uint64) (*model.Address, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var a model.Address
	if err := db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND delete_fl = ?", id, userID, false).
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// Save inserts or updates the address; a primary address demotes the user's others.
func (r *addressRepository) Save(ctx context.Context, a *model.Address) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(a).Error; err != nil {
			return err
		}
		if !a.IsPrimary {
			return nil
		}
		return tx.Model(&model.Address{}).
			Where("user_id = ? AND id <> ? AND is_primary = ?", a.UserID, a.ID, true).
			Update("is_primary", false).Error
	})
}

func (r *addressRepository) Delete(ctx context.Context, userID, id uint64) (bool, error) {
	db := r.get()
	if db == nil {
		return false, ErrDBNotReady
	}
	res := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Address{})
	return res.RowsAffected > 0, res.Error
}
