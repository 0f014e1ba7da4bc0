package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BidCheck decides whether a bid may be placed on the locked item given its latest bid (nil when none).
type BidCheck func(item *model.Item, latest *model.Bid) error

// UserBid is one row per item a user bid on.
type UserBid struct {
	ItemID  uint64
	MaxBid  decimal.Decimal
	LastBid uint64
}

type BidRepository interface {
	PlaceBid(ctx context.Context, itemID, bidderID uint64, amount decimal.Decimal, check BidCheck) (bid *model.Bid, previous *model.Bid, err error)
	Latest(ctx context.Context, itemID uint64) (*model.Bid, error)
	LatestForItems(ctx context.Context, itemIDs []uint64) (map[uint64]model.Bid, error)
	ListByItem(ctx context.Context, itemID uint64) ([]model.Bid, error)
	ListByBidder(ctx context.Context, bidderID uint64) ([]UserBid, error)
	Count(ctx context.Context) (int64, error)
	SetDB(db *gorm.DB)
}

type bidRepository struct {
	conn
}

func NewBidRepository(db *gorm.DB) BidRepository {
	r := &bidRepository{}
	r.SetDB(db)
	return r
}

func (r *bidRepository) PlaceBid(ctx context.Context, itemID, bidderID uint64, amount decimal.Decimal, check BidCheck) (*model.Bid, *model.Bid, error) {
	db := r.get()
	if db == nil {
		return nil, nil, ErrDBNotReady
	}
	var (
		bid      *model.Bid
		previous *model.Bid
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.Item
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("delete_fl = ?", false).
			First(&item, itemID).Error; err != nil {
			return err
		}
		var latest model.Bid
		err := tx.Where("item_id = ? AND delete_fl = ?", itemID, false).Order("id desc").First(&latest).Error
		switch {
		case err == nil:
			previous = &latest
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		if err := check(&item, previous); err != nil {
			return err
		}
		bid = &model.Bid{ItemID: itemID, BidderID: bidderID, Price: amount}
		return tx.Create(bid).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return bid, previous, nil
}

// Latest returns nil, nil when the item has no bids.
func (r *bidRepository) Latest(ctx context.Context, itemID uint64) (*model.Bid, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var b model.Bid
	if err := db.WithContext(ctx).
		Where("item_id = ? AND delete_fl = ?", itemID, false).
		Order("id desc").
		First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *bidRepository) LatestForItems(ctx context.Context, itemIDs []uint64) (map[uint64]model.Bid, error) {
	out := make(map[uint64]model.Bid, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	latestIDs := db.Model(&model.Bid{}).
		Select("MAX(id)").
		Where("item_id IN ? AND delete_fl = ?", itemIDs, false).
		Group("item_id")
	var bids []model.Bid
	if err := db.WithContext(ctx).Where("id IN (?)", latestIDs).Find(&bids).Error; err != nil {
		return nil, err
	}
	for _, b := range bids {
		out[b.ItemID] = b
	}
	return out, nil
}

func (r *bidRepository) ListByItem(ctx context.Context, itemID uint64) ([]model.Bid, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var bids []model.Bid
	if err := db.WithContext(ctx).
		Preload("Bidder").
		Where("item_id = ? AND delete_fl = ?", itemID, false).
		Order("id desc").
		Find(&bids).Error; err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *bidRepository) ListByBidder(ctx context.Context, bidderID uint64) ([]UserBid, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var rows []UserBid
	if err := db.WithContext(ctx).
		Model(&model.Bid{}).
		Select("item_id, MAX(price) AS max_bid, MAX(id) AS last_bid").
		Where("bidder_id = ? AND delete_fl = ?", bidderID, false).
		Group("item_id").
		Order("last_bid desc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *bidRepository) Count(ctx context.Context) (int64, error) {
	db := r.get()
	if db == nil {
		return 0, ErrDBNotReady
	}
	var n int64
	err := db.WithContext(ctx).Model(&model.Bid{}).Where("delete_fl = ?", false).Count(&n).Error
	return n, err
}
