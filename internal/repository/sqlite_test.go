package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// memDB opens a migrated in-memory database. SQLite ignores row locks, so these
// tests cover the conditional updates and transaction rollbacks, not blocking.
func memDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// each connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, PasswordHash: "x", IsActive: true}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedItem(t *testing.T, db *gorm.DB, sellerID uint64, title string, stock int) *model.Item {
	t.Helper()
	it := &model.Item{SellerID: sellerID, Title: title, Description: "d", Price: dec("3.00"), Type: model.ItemTypeBuyItNow, Condition: model.ConditionNew, Stock: stock}
	if err := db.Create(it).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return it
}

func stockOf(t *testing.T, db *gorm.DB, id uint64) int {
	t.Helper()
	var it model.Item
	if err := db.First(&it, id).Error; err != nil {
		t.Fatalf("load item %d: %v", id, err)
	}
	return it.Stock
}

func orderFor(buyerID uint64) OrderBuilder {
	return func(item *model.Item, quantity int) (*model.Order, error) {
		return &model.Order{
			ItemID:   item.ID,
			BuyerID:  buyerID,
			Total:    item.Price.Mul(decimal.NewFromInt(int64(quantity))),
			Quantity: quantity,
			Number:   fmt.Sprintf("T%d-%d", item.ID, time.Now().UnixNano()),
		}, nil
	}
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		mugQty    int
		penQty    int
		deletePen bool
		wantErr   error
		wantMug   int
		wantPen   int
		wantRows  int64
	}{
		{name: "both lines", mugQty: 2, penQty: 1, wantMug: 3, wantPen: 0, wantRows: 2},
		{name: "second line short restores the first", mugQty: 2, penQty: 2, wantErr: ErrStockConflict, wantMug: 5, wantPen: 1},
		{name: "second line withdrawn", mugQty: 2, penQty: 1, deletePen: true, wantErr: gorm.ErrRecordNotFound, wantMug: 5, wantPen: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := memDB(t)
			seller := seedUser(t, db, "seller@example.com")
			buyer := seedUser(t, db, "buyer@example.com")
			mug := seedItem(t, db, seller.ID, "Mug", 5)
			pen := seedItem(t, db, seller.ID, "Pen", 1)
			if tt.deletePen {
				if err := NewItemRepository(db).SoftDelete(ctx, pen.ID); err != nil {
					t.Fatalf("soft delete: %v", err)
				}
			}

			repo := NewOrderRepository(db)
			orders, err := repo.Checkout(ctx, []CartLine{
				{ItemID: mug.ID, Quantity: tt.mugQty},
				{ItemID: pen.ID, Quantity: tt.penQty},
			}, orderFor(buyer.ID))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err got=%v want=%v", err, tt.wantErr)
			}
			if got := stockOf(t, db, mug.ID); got != tt.wantMug {
				t.Fatalf("mug stock got=%d want=%d", got, tt.wantMug)
			}
			if got := stockOf(t, db, pen.ID); got != tt.wantPen {
				t.Fatalf("pen stock got=%d want=%d", got, tt.wantPen)
			}
			var rows, statuses int64
			db.Model(&model.Order{}).Count(&rows)
			db.Model(&model.OrderStatus{}).Count(&statuses)
			if rows != tt.wantRows || statuses != tt.wantRows {
				t.Fatalf("orders=%d statuses=%d want=%d", rows, statuses, tt.wantRows)
			}
			if tt.wantErr == nil && (len(orders) != 2 || orders[0].ID == 0 || len(orders[0].Statuses) != 1) {
				t.Fatalf("orders got=%+v", orders)
			}
		})
	}
}

func TestCheckoutBuilderErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	db := memDB(t)
	seller := seedUser(t, db, "seller@example.com")
	mug := seedItem(t, db, seller.ID, "Mug", 5)
	pen := seedItem(t, db, seller.ID, "Pen", 5)
	refuse := errors.New("own item")
	build := orderFor(seller.ID + 1)
	_, err := NewOrderRepository(db).Checkout(ctx, []CartLine{{ItemID: mug.ID, Quantity: 1}, {ItemID: pen.ID, Quantity: 1}},
		func(item *model.Item, quantity int) (*model.Order, error) {
			if item.ID == pen.ID {
				return nil, refuse
			}
			return build(item, quantity)
		})
	if !errors.Is(err, refuse) {
		t.Fatalf("got=%v want=%v", err, refuse)
	}
	if got := stockOf(t, db, mug.ID); got != 5 {
		t.Fatalf("mug stock got=%d want=5", got)
	}
}

func TestAddressPrimaryDemotesOthers(t *testing.T) {
	ctx := context.Background()
	db := memDB(t)
	ada := seedUser(t, db, "ada@example.com")
	bob := seedUser(t, db, "bob@example.com")
	repo := NewAddressRepository(db)

	addr := func(userID uint64, line string, primary bool) *model.Address {
		a := &model.Address{UserID: userID, AddressLine1: line, Town: "Leeds", Postcode: "LS1 1AA", Country: "GB", IsPrimary: primary}
		if err := repo.Save(ctx, a); err != nil {
			t.Fatalf("save %s: %v", line, err)
		}
		return a
	}
	first := addr(ada.ID, "1 First St", true)
	others := addr(bob.ID, "9 Other Rd", true)
	second := addr(ada.ID, "2 Second St", true)
	third := addr(ada.ID, "3 Third St", false)

	list, err := repo.ListByUser(ctx, ada.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	primary := map[uint64]bool{}
	for _, a := range list {
		primary[a.ID] = a.IsPrimary
	}
	if primary[first.ID] || !primary[second.ID] || primary[third.ID] {
		t.Fatalf("primary flags got=%v", primary)
	}
	kept, err := repo.FindByID(ctx, bob.ID, others.ID)
	if err != nil || !kept.IsPrimary {
		t.Fatalf("another user's primary must stay: %+v err=%v", kept, err)
	}

	// promoting an existing address goes through the same path
	first.IsPrimary = true
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if again, _ := repo.FindByID(ctx, ada.ID, second.ID); again.IsPrimary {
		t.Fatalf("second address still primary after promoting the first")
	}
}

func TestPaymentMethodPrimaryDemotesOthers(t *testing.T) {
	ctx := context.Background()
	db := memDB(t)
	ada := seedUser(t, db, "ada@example.com")
	repo := NewPaymentMethodRepository(db)
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	first := &model.PaymentMethod{UserID: ada.ID, Number: "4111111111111111", Name: "Ada", Expiration: exp, IsPrimary: true}
	second := &model.PaymentMethod{UserID: ada.ID, Number: "5555555555554444", Name: "Ada", Expiration: exp, IsPrimary: true}
	for _, p := range []*model.PaymentMethod{first, second} {
		if err := repo.Save(ctx, p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	list, err := repo.ListByUser(ctx, ada.ID)
	if err != nil || len(list) != 2 {
		t.Fatalf("list got=%d err=%v", len(list), err)
	}
	for _, p := range list {
		if p.IsPrimary != (p.ID == second.ID) {
			t.Fatalf("card %d primary=%v", p.ID, p.IsPrimary)
		}
	}
}

func TestPlaceBidChecksLatestBid(t *testing.T) {
	ctx := context.Background()
	db := memDB(t)
	seller := seedUser(t, db, "seller@example.com")
	ann := seedUser(t, db, "ann@example.com")
	ben := seedUser(t, db, "ben@example.com")
	item := seedItem(t, db, seller.ID, "Clock", 1)
	repo := NewBidRepository(db)

	var seen []*model.Bid
	higher := func(item *model.Item, latest *model.Bid) error {
		seen = append(seen, latest)
		return nil
	}

	first, previous, err := repo.PlaceBid(ctx, item.ID, ann.ID, dec("10.00"), higher)
	if err != nil || previous != nil || first.ID == 0 {
		t.Fatalf("first bid got=%+v previous=%+v err=%v", first, previous, err)
	}
	second, previous, err := repo.PlaceBid(ctx, item.ID, ben.ID, dec("12.00"), higher)
	if err != nil || previous == nil || previous.ID != first.ID {
		t.Fatalf("second bid previous=%+v err=%v", previous, err)
	}
	if seen[0] != nil || seen[1] == nil || seen[1].BidderID != ann.ID || !seen[1].Price.Equal(dec("10")) {
		t.Fatalf("check saw %+v", seen)
	}

	tooLow := errors.New("too low")
	_, _, err = repo.PlaceBid(ctx, item.ID, ann.ID, dec("11.00"), func(item *model.Item, latest *model.Bid) error {
		if latest == nil || latest.ID != second.ID {
			return fmt.Errorf("latest got=%+v", latest)
		}
		if !dec("11.00").GreaterThan(latest.Price) {
			return tooLow
		}
		return nil
	})
	if !errors.Is(err, tooLow) {
		t.Fatalf("got=%v want=%v", err, tooLow)
	}
	if n, _ := repo.Count(ctx); n != 2 {
		t.Fatalf("rejected bid was stored, bids=%d", n)
	}

	if err := NewItemRepository(db).SoftDelete(ctx, item.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, _, err := repo.PlaceBid(ctx, item.ID, ann.ID, dec("20.00"), higher); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("withdrawn item: got=%v", err)
	}
}

func TestUpdateListingKeepsSoldStock(t *testing.T) {
	ctx := context.Background()
	db := memDB(t)
	seller := seedUser(t, db, "seller@example.com")
	buyer := seedUser(t, db, "buyer@example.com")
	items := NewItemRepository(db)
	it := seedItem(t, db, seller.ID, "Mug", 5)

	edit, err := items.FindByID(ctx, it.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if _, err := NewOrderRepository(db).Checkout(ctx, []CartLine{{ItemID: it.ID, Quantity: 1}}, orderFor(buyer.ID)); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	edit.Title = "Mug v2"
	edit.Price = dec("4.50")
	if err := items.UpdateListing(ctx, edit, false); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := items.FindByID(ctx, it.ID)
	if got.Title != "Mug v2" || !got.Price.Equal(dec("4.5")) || got.Stock != 4 {
		t.Fatalf("after edit got title=%q price=%s stock=%d", got.Title, got.Price, got.Stock)
	}
	if got.VersionNo <= edit.VersionNo {
		t.Fatalf("version not bumped: %d", got.VersionNo)
	}

	edit.Stock = 9
	if err := items.UpdateListing(ctx, edit, true); err != nil {
		t.Fatalf("update stock: %v", err)
	}
	if s := stockOf(t, db, it.ID); s != 9 {
		t.Fatalf("explicit stock got=%d want=9", s)
	}

	if err := items.SoftDelete(ctx, it.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := items.UpdateListing(ctx, edit, false); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("withdrawn item: got=%v", err)
	}
}

func TestNotificationInbox(t *testing.T) {
	ctx := context.Background()
	db := memDB(t)
	ada := seedUser(t, db, "ada@example.com")
	bob := seedUser(t, db, "bob@example.com")
	repo := NewNotificationRepository(db)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []uint64
	for i := 0; i < 4; i++ {
		n := &model.Notification{RecipientID: ada.ID, Kind: model.NotificationOutbid, Subject: fmt.Sprintf("n%d", i)}
		n.CreatedDttm = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, n); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, n.ID)
	}
	other := &model.Notification{RecipientID: bob.ID, Kind: model.NotificationItemSold, Subject: "bob"}
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("create: %v", err)
	}
	withdrawn := &model.Notification{RecipientID: ada.ID, Kind: model.NotificationOutbid, Subject: "gone"}
	withdrawn.DeleteFl = true
	if err := repo.Create(ctx, withdrawn); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := repo.List(ctx, ada.ID, true, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Subject != "n3" || list[1].Subject != "n2" {
		t.Fatalf("newest first got=%v", subjects(list))
	}
	list, _ = repo.List(ctx, ada.ID, true, 2, 2)
	if len(list) != 2 || list[0].Subject != "n1" || list[1].Subject != "n0" {
		t.Fatalf("second page got=%v", subjects(list))
	}

	at := base.Add(time.Hour)
	n, err := repo.MarkRead(ctx, ada.ID, []uint64{ids[3], other.ID}, at)
	if err != nil || n != 1 {
		t.Fatalf("mark ids got=%d err=%v", n, err)
	}
	if unread, _ := repo.Count(ctx, ada.ID, true); unread != 3 {
		t.Fatalf("unread got=%d want=3", unread)
	}
	if all, _ := repo.Count(ctx, ada.ID, false); all != 4 {
		t.Fatalf("all got=%d want=4", all)
	}
	if n, _ := repo.MarkRead(ctx, ada.ID, nil, at); n != 3 {
		t.Fatalf("mark all got=%d want=3", n)
	}
	if unread, _ := repo.Count(ctx, bob.ID, true); unread != 1 {
		t.Fatalf("bob unread got=%d want=1", unread)
	}
	list, _ = repo.List(ctx, ada.ID, false, 10, 0)
	for _, row := range list {
		if !row.IsRead || row.ReadDttm == nil || !row.ReadDttm.Equal(at) {
			t.Fatalf("row %s read=%v at=%v", row.Subject, row.IsRead, row.ReadDttm)
		}
	}
}

func subjects(list []model.Notification) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.Subject)
	}
	return out
}

func TestSessionFindByUser(t *testing.T) {
	ctx := context.Background()
	db := memDB(t)
	repo := NewSessionRepository(db)
	uid := uint64(7)

	if _, err := repo.FindByUser(ctx, uid); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("no session: got=%v", err)
	}
	short, _ := repo.Create(ctx, &uid, time.Hour)
	long, _ := repo.Create(ctx, &uid, 2*time.Hour)
	expired, _ := repo.Create(ctx, &uid, 3*time.Hour)
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	if err := repo.Save(ctx, expired); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := repo.Create(ctx, nil, 5*time.Hour); err != nil {
		t.Fatalf("anonymous: %v", err)
	}

	got, err := repo.FindByUser(ctx, uid)
	if err != nil || got.ID != long.ID {
		t.Fatalf("got=%+v err=%v want=%s (not %s)", got, err, long.ID, short.ID)
	}
	if got.Cart == nil {
		t.Fatalf("cart must not be nil")
	}
}

func TestConnBeforeAndAfterSetDB(t *testing.T) {
	ctx := context.Background()
	repo := NewItemRepository(nil)
	if _, err := repo.Count(ctx); !errors.Is(err, ErrDBNotReady) {
		t.Fatalf("before SetDB: got=%v", err)
	}
	db := memDB(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := repo.Count(ctx); err != nil && !errors.Is(err, ErrDBNotReady) {
					t.Errorf("count: %v", err)
					return
				}
			}
		}()
	}
	repo.SetDB(db)
	wg.Wait()

	if n, err := repo.Count(ctx); err != nil || n != 0 {
		t.Fatalf("after SetDB got=%d err=%v", n, err)
	}
}
