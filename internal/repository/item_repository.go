package repository

import (
	"context"
	"time"

	"github.com/shinyyama/oneauction/internal/model"
	"gorm.io/gorm"
)

// ItemFilter narrows an item search. Zero values do not filter.
type ItemFilter struct {
	Terms     []string
	SellerID  *uint64
	Type      model.ItemType
	ExcludeID uint64
	// ExpiredAt keeps auctions whose expire date is at or before the instant.
	ExpiredAt *time.Time
}

type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	FindByID(ctx context.Context, id uint64) (*model.Item, error)
	FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Item, error)
	Search(ctx context.Context, f ItemFilter, limit, offset int) ([]model.Item, int64, error)
	// UpdateListing writes the seller-editable columns of a live item. Stock is
	// only written when withStock is set so concurrent checkouts are not undone.
	UpdateListing(ctx context.Context, item *model.Item, withStock bool) error
	SoftDelete(ctx context.Context, id uint64) error
	AddImages(ctx context.Context, images []model.Image) error
	FindImage(ctx context.Context, itemID, imageID uint64) (*model.Image, error)
	DeleteImage(ctx context.Context, imageID uint64) error
	Count(ctx context.Context) (int64, error)
	SetDB(db *gorm.DB)
}

type itemRepository struct {
	conn
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	r := &itemRepository{}
	r.SetDB(db)
	return r
}

func (r *itemRepository) Create(ctx context.Context, item *model.Item) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Create(item).Error
}

func (r *itemRepository) FindByID(ctx context.Context, id uint64) (*model.Item, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var item model.Item
	if err := db.WithContext(ctx).
		Scopes(NotDeleted("items")).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("images.id asc") }).
		Preload("Seller").
		First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Item, error) {
	out := make(map[uint64]model.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var items []model.Item
	if err := db.WithContext(ctx).
		Scopes(NotDeleted("items")).
		Preload("Images").
		Where("id IN ?", ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

func (r *itemRepository) Search(ctx context.Context, f ItemFilter, limit, offset int) ([]model.Item, int64, error) {
	db := r.get()
	if db == nil {
		return nil, 0, ErrDBNotReady
	}
	var (
		items []model.Item
		total int64
	)
	q := apply(db.WithContext(ctx).Model(&model.Item{}), ItemSearch(f.Terms), itemFilter(f))
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Preload("Images").
		Order("items.created_dttm desc").
		Order("items.id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func itemFilter(f ItemFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.SellerID != nil {
			db = db.Where("items.seller_id = ?", *f.SellerID)
		}
		if f.Type != "" {
			db = db.Where("items.type = ?", f.Type)
		}
		if f.ExcludeID != 0 {
			db = db.Where("items.id <> ?", f.ExcludeID)
		}
		if f.ExpiredAt != nil {
			db = db.Where("items.type = ? AND items.expire_date <= ?", model.ItemTypeAuction, *f.ExpiredAt)
		}
		return db
	}
}

func (r *itemRepository) UpdateListing(ctx context.Context, item *model.Item, withStock bool) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	cols := map[string]interface{}{
		"title":           item.Title,
		"description":     item.Description,
		"price":           item.Price,
		"delivery_charge": item.DeliveryCharge,
		"condition":       item.Condition,
		"type":            item.Type,
		"expire_date":     item.ExpireDate,
		"version_no":      gorm.Expr("version_no + 1"),
	}
	if withStock {
		cols["stock"] = item.Stock
	}
	res := db.WithContext(ctx).
		Model(&model.Item{}).
		Where("id = ? AND delete_fl = ?", item.ID, false).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *itemRepository) SoftDelete(ctx context.Context, id uint64) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).
		Model(&model.Item{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"delete_fl":  true,
			"version_no": gorm.Expr("version_no + 1"),
		}).Error
}

func (r *itemRepository) AddImages(ctx context.Context, images []model.Image) error {
	if len(images) == 0 {
		return nil
	}
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Create(&images).Error
}

func (r *itemRepository) FindImage(ctx context.Context, itemID, imageID uint64) (*model.Image, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var img model.Image
	if err := db.WithContext(ctx).
		Where("id = ? AND item_id = ?", imageID, itemID).
		First(&img).Error; err != nil {
		return nil, err
	}
	return &img, nil
}

func (r *itemRepository) DeleteImage(ctx context.Context, imageID uint64) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Delete(&model.Image{}, imageID).Error
}

func (r *itemRepository) Count(ctx context.Context) (int64, error) {
	db := r.get()
	if db == nil {
		return 0, ErrDBNotReady
	}
	var n int64
	err := db.WithContext(ctx).Model(&model.Item{}).Scopes(NotDeleted("items")).Count(&n).Error
	return n, err
}
