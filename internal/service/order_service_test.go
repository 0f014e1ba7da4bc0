package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shinyyama/oneauction/internal/model"
)

type orderFixture struct {
	items    *fakeItems
	bids     *fakeBids
	orders   *fakeOrders
	feedback *fakeFeedback
	notifier *recordingNotifier
	svc      OrderService
	order    model.Order
}

// newOrderFixture sets up seller 1, buyer 2 and one order.
func newOrderFixture() *orderFixture {
	items := newFakeItems()
	f := &orderFixture{
		items:    items,
		bids:     &fakeBids{items: items},
		orders:   &fakeOrders{items: items},
		feedback: &fakeFeedback{},
		notifier: &recordingNotifier{},
	}
	f.svc = NewOrderService(f.orders, f.bids, f.feedback, f.notifier)
	item := items.put(model.Item{SellerID: 1, Title: "Lamp", Type: model.ItemTypeBuyItNow, Price: dec("4.00"), Stock: 1})
	o := model.Order{ItemID: item.ID, BuyerID: 2, Total: dec("4.00"), Quantity: 1, Number: "ABCDEF123456",
		Statuses: []model.OrderStatus{{Status: model.StatusOrdered}}}
	o.ID = 1
	f.orders.orders = append(f.orders.orders, o)
	f.order = o
	return f
}

func TestOrderDetailAccess(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()
	tests := []struct {
		name    string
		actor   Actor
		wantErr error
	}{
		{"buyer", Actor{ID: 2}, nil},
		{"seller", Actor{ID: 1}, nil},
		{"staff", Actor{ID: 9, IsStaff: true}, nil},
		{"stranger", Actor{ID: 9}, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f.svc.Detail(ctx, tt.actor, f.order.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got=%v want=%v", err, tt.wantErr)
			}
			if err == nil && (d.CurrentStatus != model.StatusOrdered || !d.UnitPrice.Equal(dec("4"))) {
				t.Fatalf("detail got status=%s unit=%s", d.CurrentStatus, d.UnitPrice)
			}
		})
	}
	if _, err := f.svc.Detail(ctx, Actor{ID: 2}, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing order: got=%v", err)
	}
}

func TestAuctionOrderUnitPriceIsWinningBid(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()
	auction := f.items.put(model.Item{SellerID: 1, Title: "Clock", Type: model.ItemTypeAuction, Price: dec("1"), Stock: 1})
	f.bids.bids = append(f.bids.bids, model.Bid{ItemID: auction.ID, BidderID: 2, Price: dec("6.50")})
	o := model.Order{ItemID: auction.ID, BuyerID: 2, Total: dec("6.50"), Quantity: 1, Number: "000000000001"}
	o.ID = 2
	f.orders.orders = append(f.orders.orders, o)

	d, err := f.svc.Detail(ctx, Actor{ID: 2}, 2)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if !d.UnitPrice.Equal(dec("6.5")) {
		t.Fatalf("unit price got=%s want=6.5", d.UnitPrice)
	}
}

func TestAddStatus(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()
	tracking := "  RM123GB "

	if _, err := f.svc.AddStatus(ctx, Actor{ID: 2}, f.order.ID, StatusInput{Status: "DISPATCHED"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("buyer adding status: got=%v", err)
	}
	var ve *ValidationError
	if _, err := f.svc.AddStatus(ctx, Actor{ID: 1}, f.order.ID, StatusInput{Status: "LOST"}); !errors.As(err, &ve) {
		t.Fatalf("unknown status: got=%v", err)
	}
	st, err := f.svc.AddStatus(ctx, Actor{ID: 1}, f.order.ID, StatusInput{Status: "dispatched", Description: "Posted", Tracking: &tracking})
	if err != nil {
		t.Fatalf("add status: %v", err)
	}
	if st.Status != model.StatusDispatched {
		t.Fatalf("status got=%s", st.Status)
	}
	d, err := f.svc.Detail(ctx, Actor{ID: 2}, f.order.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if d.CurrentStatus != model.StatusDispatched || d.Order.Tracking == nil || *d.Order.Tracking != "RM123GB" {
		t.Fatalf("after status: current=%s tracking=%v", d.CurrentStatus, d.Order.Tracking)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].RecipientID != 2 || f.notifier.sent[0].Kind != model.NotificationOrderStatus {
		t.Fatalf("buyer not notified: %+v", f.notifier.sent)
	}
	if _, err := f.svc.AddStatus(ctx, Actor{ID: 7, IsStaff: true}, f.order.ID, StatusInput{Status: "DELIVERED"}); err != nil {
		t.Fatalf("staff add status: %v", err)
	}
}

func TestAddNoteAndReview(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	if _, err := f.svc.AddNote(ctx, Actor{ID: 1}, f.order.ID, "s", "d"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("seller note: got=%v", err)
	}
	var ve *ValidationError
	if _, err := f.svc.AddNote(ctx, Actor{ID: 2}, f.order.ID, " ", "d"); !errors.As(err, &ve) {
		t.Fatalf("blank note: got=%v", err)
	}
	if _, err := f.svc.AddNote(ctx, Actor{ID: 2}, f.order.ID, "Leave at door", "Please"); err != nil {
		t.Fatalf("note: %v", err)
	}

	tests := []struct {
		name   string
		rating int
		ok     bool
	}{
		{"zero", 0, false},
		{"six", 6, false},
		{"one", 1, true},
		{"five", 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddReview(ctx, Actor{ID: 2}, f.order.ID, ReviewInput{Summary: "Good", Description: "Works", Rating: tt.rating})
			if tt.ok && err != nil {
				t.Fatalf("rating %d: %v", tt.rating, err)
			}
			if !tt.ok && !errors.As(err, &ve) {
				t.Fatalf("rating %d: got=%v want ValidationError", tt.rating, err)
			}
		})
	}
	d, err := f.svc.Detail(ctx, Actor{ID: 1}, f.order.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(d.Notes) != 1 || len(d.Reviews) != 2 {
		t.Fatalf("notes=%d reviews=%d", len(d.Notes), len(d.Reviews))
	}
}

func TestListPurchasesAndSales(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()
	p, err := f.svc.ListPurchases(ctx, 2, "", 1)
	if err != nil || len(p.Orders) != 1 {
		t.Fatalf("purchases got=%v err=%v", p, err)
	}
	s, err := f.svc.ListSales(ctx, 1, "", 1)
	if err != nil || len(s.Orders) != 1 {
		t.Fatalf("sales got=%v err=%v", s, err)
	}
	none, err := f.svc.ListSales(ctx, 2, "", 1)
	if err != nil || len(none.Orders) != 0 {
		t.Fatalf("buyer has no sales, got=%v err=%v", none, err)
	}
}
