package repository

import (
	"context"

	"github.com/shinyyama/oneauction/internal/model"
	"gorm.io/gorm"
)

type PaymentMethodRepository interface {
	ListByUser(ctx context.Context, userID uint64) ([]model.PaymentMethod, error)
	FindByID(ctx context.Context, userID, id uint64) (*model.PaymentMethod, error)
	Save(ctx context.Context, p *model.PaymentMethod) error
	Delete(ctx context.Context, userID, id uint64) (bool, error)
	SetDB(db *gorm.DB)
}

type paymentMethodRepository struct {
	conn
}

func NewPaymentMethodRepository(db *gorm.DB) PaymentMethodRepository {
	r := &paymentMethodRepository{}
	r.SetDB(db)
	return r
}

func (r *paymentMethodRepository) ListByUser(ctx context.Context, userID uint64) ([]model.PaymentMethod, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.PaymentMethod
	if err := db.WithContext(ctx).
		Where("user_id = ? AND delete_fl = ?", userID, false).
		Order("id asc").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *paymentMethodRepository) FindByID(ctx context.Context, userID, id uint64) (*model.PaymentMethod, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var p model.PaymentMethod
	if err := db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND delete_fl = ?", id, userID, false).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Save inserts or updates the card; a primary card demotes the user's others.
func (r *paymentMethodRepository) Save(ctx context.Context, p *model.PaymentMethod) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(p).Error; err != nil {
			return err
		}
		if !p.IsPrimary {
			return nil
		}
		return tx.Model(&model.PaymentMethod{}).
			Where("user_id = ? AND id <> ? AND is_primary = ?", p.UserID, p.ID, true).
			Update("is_primary", false).Error
	})
}

func (r *paymentMethodRepository) Delete(ctx context.Context, userID, id uint64) (bool, error) {
	db := r.get()
	if db == nil {
		return false, ErrDBNotReady
	}
	res := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.PaymentMethod{})
	return res.RowsAffected > 0, res.Error
}
