package repository

import (
	"context"

	"github.com/shinyyama/oneauction/internal/model"
	"gorm.io/gorm"
)

// ReviewStats aggregates the reviews left on an item's orders.
type ReviewStats struct {
	Average float64
	Count   int64
}

type FeedbackRepository interface {
	CreateNote(ctx context.Context, n *model.Note) error
	ListNotes(ctx context.Context, orderID uint64) ([]model.Note, error)
	CreateReview(ctx context.Context, rv *model.Review) error
	ListReviews(ctx context.Context, orderID uint64) ([]model.Review, error)
	ListItemReviews(ctx context.Context, itemID uint64) ([]model.Review, error)
	ItemReviewStats(ctx context.Context, itemID uint64) (ReviewStats, error)
	SetDB(db *gorm.DB)
}

type feedbackRepository struct {
	conn
}

func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	r := &feedbackRepository{}
	r.SetDB(db)
	return r
}

func (r *feedbackRepository) CreateNote(ctx context.Context, n *model.Note) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Create(n).Error
}

func (r *feedbackRepository) ListNotes(ctx context.Context, orderID uint64) ([]model.Note, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var notes []model.Note
	if err := db.WithContext(ctx).
		Where("order_id = ? AND delete_fl = ?", orderID, false).
		Order("id asc").
		Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *feedbackRepository) CreateReview(ctx context.Context, rv *model.Review) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Create(rv).Error
}

func (r *feedbackRepository) ListReviews(ctx context.Context, orderID uint64) ([]model.Review, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var reviews []model.Review
	if err := db.WithContext(ctx).
		Where("order_id = ? AND delete_fl = ?", orderID, false).
		Order("id asc").
		Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *feedbackRepository) ListItemReviews(ctx context.Context, itemID uint64) ([]model.Review, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var reviews []model.Review
	if err := db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = reviews.order_id").
		Where("orders.item_id = ? AND reviews.delete_fl = ?", itemID, false).
		Order("reviews.id desc").
		Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *feedbackRepository) ItemReviewStats(ctx context.Context, itemID uint64) (ReviewStats, error) {
	var stats ReviewStats
	db := r.get()
	if db == nil {
		return stats, ErrDBNotReady
	}
	err := db.WithContext(ctx).
		Model(&model.Review{}).
		Select("COALESCE(AVG(reviews.rating), 0) AS average, COUNT(reviews.id) AS count").
		Joins("JOIN orders ON orders.id = reviews.order_id").
		Where("orders.item_id = ? AND reviews.delete_fl = ?", itemID, false).
		Scan(&stats).Error
	return stats, err
}
