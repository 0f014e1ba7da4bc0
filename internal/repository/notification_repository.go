package repository

import (
	"context"
	"time"

	"github.com/shinyyama/oneauction/internal/model"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	Count(ctx context.Context, recipientID uint64, unreadOnly bool) (int64, error)
	// List returns a page of the recipient's inbox, newest first.
	List(ctx context.Context, recipientID uint64, unreadOnly bool, limit, offset int) ([]model.Notification, error)
	// MarkRead marks the given notifications read, or all unread ones when ids is empty.
	MarkRead(ctx context.Context, recipientID uint64, ids []uint64, at time.Time) (int64, error)
	SetDB(db *gorm.DB)
}

type notificationRepository struct {
	conn
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	r := &notificationRepository{}
	r.SetDB(db)
	return r
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Create(n).Error
}

func inbox(db *gorm.DB, recipientID uint64, unreadOnly bool) *gorm.DB {
	db = db.Model(&model.Notification{}).
		Where("recipient_id = ? AND delete_fl = ?", recipientID, false)
	if unreadOnly {
		db = db.Where("is_read = ?", false)
	}
	return db
}

func (r *notificationRepository) Count(ctx context.Context, recipientID uint64, unreadOnly bool) (int64, error) {
	db := r.get()
	if db == nil {
		return 0, ErrDBNotReady
	}
	var n int64
	if err := inbox(db.WithContext(ctx), recipientID, unreadOnly).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *notificationRepository) List(ctx context.Context, recipientID uint64, unreadOnly bool, limit, offset int) ([]model.Notification, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Notification
	err := inbox(db.WithContext(ctx), recipientID, unreadOnly).
		Order("created_dttm desc").
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&list).Error
	return list, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, recipientID uint64, ids []uint64, at time.Time) (int64, error) {
	db := r.get()
	if db == nil {
		return 0, ErrDBNotReady
	}
	q := inbox(db.WithContext(ctx), recipientID, true)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Updates(map[string]interface{}{
		"is_read":    true,
		"read_dttm":  at,
		"version_no": gorm.Expr("version_no + 1"),
	})
	return res.RowsAffected, res.Error
}
