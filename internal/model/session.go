package model

import "time"

// Cart maps item id to quantity.
type Cart map[uint64]int

type Session struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    *uint64   `gorm:"column:user_id;index"`
	Cart      Cart      `gorm:"serializer:json;type:text"`
	ExpiresAt time.Time `gorm:"column:expires_at;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Session) TableName() string {
	return "sessions"
}
