package model

import (
	"time"

	"gorm.io/gorm"
)

// Base carries the audit columns shared by every persisted entity.
type Base struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	CreatedDttm  time.Time `gorm:"column:created_dttm;autoCreateTime;index"`
	ModifiedDttm time.Time `gorm:"column:modified_dttm;autoUpdateTime"`
	Reference    *string   `gorm:"column:reference;size:2048"`
	DeleteFl     bool      `gorm:"column:delete_fl;not null;default:false;index"`
	OrderNo      int       `gorm:"column:order_no;default:1"`
	VersionNo    int       `gorm:"column:version_no;default:1"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.OrderNo == 0 {
		b.OrderNo = 1
	}
	if b.VersionNo == 0 {
		b.VersionNo = 1
	}
	return nil
}

// BeforeUpdate bumps the version on full-struct saves.
func (b *Base) BeforeUpdate(tx *gorm.DB) error {
	b.VersionNo++
	return nil
}

// All lists the models for migration, parents before children.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Session{},
		&Item{},
		&Image{},
		&Bid{},
		&Order{},
		&OrderStatus{},
		&Review{},
		&Note{},
		&Address{},
		&PaymentMethod{},
		&Notification{},
	}
}
