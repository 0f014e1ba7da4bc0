package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/repository"
	"github.com/shopspring/decimal"
)

const (
	BidStatusOutbid  = "You've been outbid!"
	BidStatusHighest = "You are the highest bidder!"
)

// UserBidView summarises a user's bidding on one item.
type UserBidView struct {
	ItemID       uint64
	Title        string
	ItemType     model.ItemType
	HighestBid   decimal.Decimal
	CurrentPrice decimal.Decimal
	Status       string
}

type BidService interface {
	Place(ctx context.Context, bidderID, itemID uint64, amount decimal.Decimal) (*model.Bid, error)
	ListForItem(ctx context.Context, itemID uint64) ([]model.Bid, error)
	ListForUser(ctx context.Context, userID uint64) ([]UserBidView, error)
}

type bidService struct {
	bids     repository.BidRepository
	items    repository.ItemRepository
	notifier Notifier
	now      func() time.Time
}

func NewBidService(bids repository.BidRepository, items repository.ItemRepository, notifier Notifier) BidService {
	return &bidService{bids: bids, items: items, notifier: notifier, now: time.Now}
}

func (s *bidService) Place(ctx context.Context, bidderID, itemID uint64, amount decimal.Decimal) (*model.Bid, error) {
	if err := validMoney(amount, "Bid"); err != nil {
		return nil, err
	}
	var title string
	bid, previous, err := s.bids.PlaceBid(ctx, itemID, bidderID, amount, func(item *model.Item, latest *model.Bid) error {
		title = item.Title
		return s.checkBid(item, latest, bidderID, amount)
	})
	if err != nil {
		return nil, notFound(err)
	}
	if previous != nil && previous.BidderID != bidderID {
		s.notifier.Notify(ctx, Notice{
			RecipientID: previous.BidderID,
			Kind:        model.NotificationOutbid,
			Subject:     "You've been outbid!",
			Message:     fmt.Sprintf("Someone bid %s on %s", amount.StringFixed(2), title),
			ItemID:      uint64Ptr(itemID),
		})
	}
	return bid, nil
}

func (s *bidService) checkBid(item *model.Item, latest *model.Bid, bidderID uint64, amount decimal.Decimal) error {
	if item.Type != model.ItemTypeAuction {
		return invalid("Only auction items accept bids.")
	}
	if item.IsExpired(s.now()) {
		return invalid("This auction has ended.")
	}
	if item.SellerID == bidderID {
		return invalid("You cannot bid on your own item.")
	}
	if item.Stock <= 0 {
		return invalid("This item is out of stock.")
	}
	return AcceptBid(CurrentPrice(item, latest), amount)
}

func (s *bidService) ListForItem(ctx context.Context, itemID uint64) ([]model.Bid, error) {
	if _, err := s.items.FindByID(ctx, itemID); err != nil {
		return nil, notFound(err)
	}
	return s.bids.ListByItem(ctx, itemID)
}

func (s *bidService) ListForUser(ctx context.Context, userID uint64) ([]UserBidView, error) {
	rows, err := s.bids.ListByBidder(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ItemID)
	}
	items, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	latest, err := s.bids.LatestForItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]UserBidView, 0, len(rows))
	for _, r := range rows {
		item, ok := items[r.ItemID]
		if !ok {
			continue
		}
		current := item.Price
		if b, ok := latest[r.ItemID]; ok {
			current = b.Price
		}
		status := BidStatusHighest
		if r.MaxBid.LessThan(current) {
			status = BidStatusOutbid
		}
		out = append(out, UserBidView{
			ItemID:       r.ItemID,
			Title:        item.Title,
			ItemType:     item.Type,
			HighestBid:   r.MaxBid,
			CurrentPrice: current,
			Status:       status,
		})
	}
	return out, nil
}
