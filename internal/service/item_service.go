package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/reqctx"
	"github.com/shinyyama/oneauction/internal/repository"
	"github.com/shinyyama/oneauction/internal/storage"
	"github.com/shopspring/decimal"
)

const similarItemsLimit = 16

var maxPrice = decimal.RequireFromString("9999999.99")

// Upload is one image attached to a listing form.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type ListingInput struct {
	Title          string
	Description    string
	Price          decimal.Decimal
	DeliveryCharge *decimal.Decimal
	Stock          *int
	Condition      string
	ExpireDate     *time.Time
	Images         []Upload
}

// ItemView is an item with the values derived from its bids and orders.
type ItemView struct {
	Item         model.Item
	CurrentPrice decimal.Decimal
	Status       string
	Orders       int64
}

type ItemDetail struct {
	ItemView
	Rating      float64
	ReviewCount int64
	Reviews     []model.Review
	Similar     []ItemView
}

type ItemPage struct {
	Items []ItemView
	Page  Page
}

type ItemService interface {
	Create(ctx context.Context, sellerID uint64, in ListingInput) (*model.Item, error)
	Update(ctx context.Context, sellerID, itemID uint64, in ListingInput) (*model.Item, error)
	Delete(ctx context.Context, sellerID, itemID uint64) error
	DeleteImage(ctx context.Context, sellerID, itemID, imageID uint64) error
	Get(ctx context.Context, id uint64) (*ItemDetail, error)
	Search(ctx context.Context, query string, page int) (*ItemPage, error)
	ListBySeller(ctx context.Context, sellerID uint64, query string, page int) (*ItemPage, error)
	ClosedAuctions(ctx context.Context, page int) (*ItemPage, error)
}

type itemService struct {
	items    repository.ItemRepository
	bids     repository.BidRepository
	orders   repository.OrderRepository
	feedback repository.FeedbackRepository
	store    storage.Store
	notifier Notifier
	now      func() time.Time
}

func NewItemService(items repository.ItemRepository, bids repository.BidRepository, orders repository.OrderRepository,
	feedback repository.FeedbackRepository, store storage.Store, notifier Notifier) ItemService {
	return &itemService{
		items:    items,
		bids:     bids,
		orders:   orders,
		feedback: feedback,
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *itemService) Create(ctx context.Context, sellerID uint64, in ListingInput) (*model.Item, error) {
	item := &model.Item{SellerID: sellerID}
	if err := s.applyListing(item, in, true); err != nil {
		return nil, err
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	images, err := s.upload(ctx, item.ID, in.Images)
	if err != nil {
		if derr := s.items.SoftDelete(ctx, item.ID); derr != nil {
			log.Printf("%srollback listing %d: %v", reqctx.Prefix(ctx), item.ID, derr)
		}
		return nil, err
	}
	item.Images = images
	return item, nil
}

func (s *itemService) Update(ctx context.Context, sellerID, itemID uint64, in ListingInput) (*model.Item, error) {
	item, err := s.owned(ctx, sellerID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.applyListing(item, in, false); err != nil {
		return nil, err
	}
	if err := s.items.UpdateListing(ctx, item, in.Stock != nil); err != nil {
		return nil, notFound(err)
	}
	images, err := s.upload(ctx, item.ID, in.Images)
	if err != nil {
		return nil, err
	}
	item.Images = append(item.Images, images...)
	return item, nil
}

func (s *itemService) Delete(ctx context.Context, sellerID, itemID uint64) error {
	if _, err := s.owned(ctx, sellerID, itemID); err != nil {
		return err
	}
	return s.items.SoftDelete(ctx, itemID)
}

func (s *itemService) DeleteImage(ctx context.Context, sellerID, itemID, imageID uint64) error {
	if _, err := s.owned(ctx, sellerID, itemID); err != nil {
		return err
	}
	img, err := s.items.FindImage(ctx, itemID, imageID)
	if err != nil {
		return notFound(err)
	}
	if err := s.items.DeleteImage(ctx, img.ID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, img.ObjectKey); err != nil {
		log.Printf("%sdelete object %s: %v", reqctx.Prefix(ctx), img.ObjectKey, err)
	}
	return nil
}

func (s *itemService) Get(ctx context.Context, id uint64) (*ItemDetail, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	views, err := s.views(ctx, []model.Item{*item})
	if err != nil {
		return nil, err
	}
	stats, err := s.feedback.ItemReviewStats(ctx, id)
	if err != nil {
		return nil, err
	}
	reviews, err := s.feedback.ListItemReviews(ctx, id)
	if err != nil {
		return nil, err
	}
	similar, _, err := s.items.Search(ctx, repository.ItemFilter{
		Terms:     SearchTerms(item.Title),
		ExcludeID: item.ID,
	}, similarItemsLimit, 0)
	if err != nil {
		return nil, err
	}
	similarViews, err := s.views(ctx, similar)
	if err != nil {
		return nil, err
	}
	return &ItemDetail{
		ItemView:    views[0],
		Rating:      RoundRating(stats.Average),
		ReviewCount: stats.Count,
		Reviews:     reviews,
		Similar:     similarViews,
	}, nil
}

func (s *itemService) Search(ctx context.Context, query string, page int) (*ItemPage, error) {
	return s.page(ctx, repository.ItemFilter{Terms: SearchTerms(query)}, page)
}

func (s *itemService) ListBySeller(ctx context.Context, sellerID uint64, query string, page int) (*ItemPage, error) {
	return s.page(ctx, repository.ItemFilter{Terms: SearchTerms(query), SellerID: &sellerID}, page)
}

// ClosedAuctions lists expired auctions and turns each unsettled winning bid into an order.
func (s *itemService) ClosedAuctions(ctx context.Context, page int) (*ItemPage, error) {
	now := s.now()
	p, err := s.page(ctx, repository.ItemFilter{ExpiredAt: &now}, page)
	if err != nil {
		return nil, err
	}
	for i := range p.Items {
		v := &p.Items[i]
		if v.Orders > 0 {
			continue
		}
		settled, err := s.settle(ctx, &v.Item)
		if err != nil {
			return nil, err
		}
		if settled {
			v.Orders = 1
			v.Status = StatusSold
		}
	}
	return p, nil
}

func (s *itemService) settle(ctx context.Context, item *model.Item) (bool, error) {
	winner, err := s.bids.Latest(ctx, item.ID)
	if err != nil || winner == nil {
		return false, err
	}
	order := &model.Order{
		ItemID:   item.ID,
		BuyerID:  winner.BidderID,
		Total:    winner.Price.Add(item.Delivery()),
		Quantity: 1,
		Number:   NewOrderNumber(),
		Statuses: []model.OrderStatus{{Status: model.StatusOrdered, Description: "Auction won"}},
	}
	created, err := s.orders.SettleAuction(ctx, order)
	if err != nil || !created {
		return false, err
	}
	price := winner.Price.StringFixed(2)
	s.notifier.Notify(ctx, Notice{
		RecipientID: item.SellerID,
		Kind:        model.NotificationItemSold,
		Subject:     "Your auction has ended",
		Message:     fmt.Sprintf("%s sold for %s", item.Title, price),
		ItemID:      uint64Ptr(item.ID),
		OrderID:     uint64Ptr(order.ID),
	})
	s.notifier.Notify(ctx, Notice{
		RecipientID: winner.BidderID,
		Kind:        model.NotificationAuctionWon,
		Subject:     "You won an auction",
		Message:     fmt.Sprintf("You won %s for %s", item.Title, price),
		ItemID:      uint64Ptr(item.ID),
		OrderID:     uint64Ptr(order.ID),
	})
	return true, nil
}

func (s *itemService) page(ctx context.Context, f repository.ItemFilter, number int) (*ItemPage, error) {
	if number < 1 {
		number = 1
	}
	items, total, err := s.items.Search(ctx, f, DefaultPageSize, (number-1)*DefaultPageSize)
	if err != nil {
		return nil, err
	}
	p := NewPage(number, DefaultPageSize, total)
	if p.Number != number {
		// past the end: serve the last page
		items, total, err = s.items.Search(ctx, f, DefaultPageSize, p.Offset())
		if err != nil {
			return nil, err
		}
		p = NewPage(p.Number, DefaultPageSize, total)
	}
	views, err := s.views(ctx, items)
	if err != nil {
		return nil, err
	}
	return &ItemPage{Items: views, Page: p}, nil
}

func (s *itemService) views(ctx context.Context, items []model.Item) ([]ItemView, error) {
	ids := make([]uint64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	latest, err := s.bids.LatestForItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	counts, err := s.orders.CountByItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		v := ItemView{Item: it, Orders: counts[it.ID]}
		if b, ok := latest[it.ID]; ok {
			v.CurrentPrice = CurrentPrice(&it, &b)
		} else {
			v.CurrentPrice = CurrentPrice(&it, nil)
		}
		status, err := ItemStatus(&it, v.Orders, now)
		if err != nil {
			log.Printf("%sitem %d: %v", reqctx.Prefix(ctx), it.ID, err)
		}
		v.Status = status
		out = append(out, v)
	}
	return out, nil
}

func (s *itemService) owned(ctx context.Context, sellerID, itemID uint64) (*model.Item, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, notFound(err)
	}
	if item.SellerID != sellerID {
		return nil, ErrForbidden
	}
	return item, nil
}

func (s *itemService) applyListing(item *model.Item, in ListingInput, isNew bool) error {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" {
		return invalid("Title is required.")
	}
	if len(title) > 1024 {
		return invalid("Title must be at most 1024 characters.")
	}
	if description == "" {
		return invalid("Description is required.")
	}
	if err := validMoney(in.Price, "Price"); err != nil {
		return err
	}
	delivery := decimal.NullDecimal{}
	if in.DeliveryCharge != nil {
		if err := validMoney(*in.DeliveryCharge, "Delivery charge"); err != nil {
			return err
		}
		delivery = decimal.NewNullDecimal(*in.DeliveryCharge)
	}
	stock := item.Stock
	if isNew {
		stock = 1
	}
	if in.Stock != nil {
		stock = *in.Stock
	}
	if stock < 1 {
		return invalid("Stock must be at least 1.")
	}
	condition := model.ConditionNew
	if c := strings.TrimSpace(in.Condition); c != "" {
		condition = model.Condition(strings.ToUpper(c))
		if !condition.Valid() {
			return invalid("Select a valid condition.")
		}
	}
	typ := model.ItemTypeBuyItNow
	if in.ExpireDate != nil {
		typ = model.ItemTypeAuction
		unchanged := !isNew && item.ExpireDate != nil && item.ExpireDate.Equal(*in.ExpireDate)
		if !unchanged && !in.ExpireDate.After(s.now()) {
			return invalid("Expire date must be in the future.")
		}
	}
	for _, up := range in.Images {
		if !strings.HasPrefix(up.ContentType, "image/") {
			return invalid("Only image uploads are allowed.")
		}
	}

	item.Title = title
	item.Description = description
	item.Price = in.Price
	item.DeliveryCharge = delivery
	item.Stock = stock
	item.Condition = condition
	item.Type = typ
	item.ExpireDate = in.ExpireDate
	return nil
}

func validMoney(v decimal.Decimal, field string) error {
	if v.IsNegative() {
		return invalid(field + " cannot be negative.")
	}
	if v.GreaterThan(maxPrice) {
		return invalid(field + " is too large.")
	}
	if !v.Equal(v.Round(2)) {
		return invalid(field + " can have at most 2 decimal places.")
	}
	return nil
}

func (s *itemService) upload(ctx context.Context, itemID uint64, uploads []Upload) ([]model.Image, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	images := make([]model.Image, 0, len(uploads))
	for _, up := range uploads {
		key := storage.ObjectKey(itemID, up.Filename)
		url, err := s.store.Put(ctx, key, up.ContentType, up.Body)
		if err != nil {
			return nil, fmt.Errorf("store image: %w", err)
		}
		images = append(images, model.Image{ItemID: itemID, ObjectKey: key, URL: url})
	}
	if err := s.items.AddImages(ctx, images); err != nil {
		return nil, err
	}
	return images, nil
}
