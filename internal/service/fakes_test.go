package service

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// fakeItems is an in-memory ItemRepository.
type fakeItems struct {
	mu     sync.Mutex
	nextID uint64
	items  map[uint64]*model.Item
	images map[uint64]*model.Image
}

func newFakeItems() *fakeItems {
	return &fakeItems{items: map[uint64]*model.Item{}, images: map[uint64]*model.Image{}}
}

func (f *fakeItems) put(it model.Item) *model.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if it.ID == 0 {
		it.ID = f.nextID
	}
	if it.CreatedDttm.IsZero() {
		it.CreatedDttm = time.Now()
	}
	cp := it
	f.items[it.ID] = &cp
	return &cp
}

func (f *fakeItems) Create(ctx context.Context, item *model.Item) error {
	created := f.put(*item)
	item.ID = created.ID
	return nil
}

func (f *fakeItems) FindByID(ctx context.Context, id uint64) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok || it.DeleteFl {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *it
	cp.Images = f.imagesFor(id)
	return &cp, nil
}

func (f *fakeItems) imagesFor(itemID uint64) []model.Image {
	var out []model.Image
	for _, img := range f.images {
		if img.ItemID == itemID {
			out = append(out, *img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeItems) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Item, error) {
	out := map[uint64]model.Item{}
	for _, id := range ids {
		if it, err := f.FindByID(ctx, id); err == nil {
			out[id] = *it
		}
	}
	return out, nil
}

func (f *fakeItems) Search(ctx context.Context, flt repository.ItemFilter, limit, offset int) ([]model.Item, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []model.Item
	for _, it := range f.items {
		if it.DeleteFl || !matchesItem(it, flt) {
			continue
		}
		matched = append(matched, *it)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func matchesItem(it *model.Item, f repository.ItemFilter) bool {
	if f.SellerID != nil && it.SellerID != *f.SellerID {
		return false
	}
	if f.Type != "" && it.Type != f.Type {
		return false
	}
	if f.ExcludeID != 0 && it.ID == f.ExcludeID {
		return false
	}
	if f.ExpiredAt != nil && (it.Type != model.ItemTypeAuction || it.ExpireDate == nil || it.ExpireDate.After(*f.ExpiredAt)) {
		return false
	}
	for _, term := range f.Terms {
		t := strings.ToLower(term)
		if !strings.Contains(strings.ToLower(it.Title), t) &&
			!strings.Contains(strings.ToLower(it.Description), t) &&
			!strings.Contains(strings.ToLower(string(it.Condition)), t) {
			return false
		}
	}
	return true
}

func (f *fakeItems) UpdateListing(ctx context.Context, item *model.Item, withStock bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.items[item.ID]
	if !ok || cur.DeleteFl {
		return gorm.ErrRecordNotFound
	}
	cp := *item
	cp.Images = nil
	if !withStock {
		cp.Stock = cur.Stock
	}
	f.items[item.ID] = &cp
	return nil
}

func (f *fakeItems) SoftDelete(ctx context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if it, ok := f.items[id]; ok {
		it.DeleteFl = true
	}
	return nil
}

func (f *fakeItems) AddImages(ctx context.Context, images []model.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range images {
		f.nextID++
		images[i].ID = f.nextID
		cp := images[i]
		f.images[cp.ID] = &cp
	}
	return nil
}

func (f *fakeItems) FindImage(ctx context.Context, itemID, imageID uint64) (*model.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.images[imageID]
	if !ok || img.ItemID != itemID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *img
	return &cp, nil
}

func (f *fakeItems) DeleteImage(ctx context.Context, imageID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.images, imageID)
	return nil
}

func (f *fakeItems) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.items)), nil
}

func (f *fakeItems) SetDB(*gorm.DB) {}

func (f *fakeItems) stock(id uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id].Stock
}

// fakeBids is an in-memory BidRepository backed by fakeItems.
type fakeBids struct {
	mu    sync.Mutex
	items *fakeItems
	bids  []model.Bid
}

func (f *fakeBids) PlaceBid(ctx context.Context, itemID, bidderID uint64, amount decimal.Decimal, check repository.BidCheck) (*model.Bid, *model.Bid, error) {
	item, err := f.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.latestLocked(itemID)
	if err := check(item, prev); err != nil {
		return nil, nil, err
	}
	b := model.Bid{ItemID: itemID, BidderID: bidderID, Price: amount}
	b.ID = uint64(len(f.bids) + 1)
	f.bids = append(f.bids, b)
	return &b, prev, nil
}

func (f *fakeBids) latestLocked(itemID uint64) *model.Bid {
	for i := len(f.bids) - 1; i >= 0; i-- {
		if f.bids[i].ItemID == itemID {
			b := f.bids[i]
			return &b
		}
	}
	return nil
}

func (f *fakeBids) Latest(ctx context.Context, itemID uint64) (*model.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latestLocked(itemID), nil
}

func (f *fakeBids) LatestForItems(ctx context.Context, ids []uint64) (map[uint64]model.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uint64]model.Bid{}
	for _, id := range ids {
		if b := f.latestLocked(id); b != nil {
			out[id] = *b
		}
	}
	return out, nil
}

func (f *fakeBids) ListByItem(ctx context.Context, itemID uint64) ([]model.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Bid
	for i := len(f.bids) - 1; i >= 0; i-- {
		if f.bids[i].ItemID == itemID {
			out = append(out, f.bids[i])
		}
	}
	return out, nil
}

func (f *fakeBids) ListByBidder(ctx context.Context, bidderID uint64) ([]repository.UserBid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := map[uint64]*repository.UserBid{}
	var order []uint64
	for _, b := range f.bids {
		if b.BidderID != bidderID {
			continue
		}
		r, ok := rows[b.ItemID]
		if !ok {
			r = &repository.UserBid{ItemID: b.ItemID, MaxBid: b.Price}
			rows[b.ItemID] = r
			order = append(order, b.ItemID)
		}
		if b.Price.GreaterThan(r.MaxBid) {
			r.MaxBid = b.Price
		}
		r.LastBid = b.ID
	}
	out := make([]repository.UserBid, 0, len(order))
	for _, id := range order {
		out = append(out, *rows[id])
	}
	return out, nil
}

func (f *fakeBids) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.bids)), nil
}

func (f *fakeBids) SetDB(*gorm.DB) {}

// fakeOrders is an in-memory OrderRepository backed by fakeItems.
type fakeOrders struct {
	mu     sync.Mutex
	items  *fakeItems
	orders []model.Order
}

func (f *fakeOrders) Checkout(ctx context.Context, lines []repository.CartLine, build repository.OrderBuilder) ([]model.Order, error) {
	f.items.mu.Lock()
	snapshot := map[uint64]int{}
	for id, it := range f.items.items {
		snapshot[id] = it.Stock
	}
	f.items.mu.Unlock()
	restore := func() {
		f.items.mu.Lock()
		for id, st := range snapshot {
			f.items.items[id].Stock = st
		}
		f.items.mu.Unlock()
	}

	var created []model.Order
	for _, line := range lines {
		item, err := f.items.FindByID(ctx, line.ItemID)
		if err != nil {
			restore()
			return nil, err
		}
		order, err := build(item, line.Quantity)
		if err != nil {
			restore()
			return nil, err
		}
		f.items.mu.Lock()
		stored := f.items.items[line.ItemID]
		if stored.Stock < line.Quantity {
			f.items.mu.Unlock()
			restore()
			return nil, repository.ErrStockConflict
		}
		stored.Stock -= line.Quantity
		f.items.mu.Unlock()
		created = append(created, *order)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range created {
		created[i].ID = uint64(len(f.orders) + 1)
		created[i].Statuses = []model.OrderStatus{{OrderID: created[i].ID, Status: model.StatusOrdered}}
		f.orders = append(f.orders, created[i])
	}
	return created, nil
}

func (f *fakeOrders) SettleAuction(ctx context.Context, order *model.Order) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ItemID == order.ItemID {
			return false, nil
		}
	}
	order.ID = uint64(len(f.orders) + 1)
	f.orders = append(f.orders, *order)
	return true, nil
}

func (f *fakeOrders) FindByID(ctx context.Context, id uint64) (*model.Order, error) {
	f.mu.Lock()
	var found *model.Order
	for i := range f.orders {
		if f.orders[i].ID == id {
			cp := f.orders[i]
			found = &cp
		}
	}
	f.mu.Unlock()
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	f.items.mu.Lock()
	if it, ok := f.items.items[found.ItemID]; ok {
		cp := *it
		found.Item = &cp
	}
	f.items.mu.Unlock()
	return found, nil
}

func (f *fakeOrders) ListByBuyer(ctx context.Context, buyerID uint64, terms []string, limit, offset int) ([]model.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Order
	for _, o := range f.orders {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeOrders) ListBySeller(ctx context.Context, sellerID uint64, terms []string, limit, offset int) ([]model.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Order
	for _, o := range f.orders {
		if it, ok := f.items.items[o.ItemID]; ok && it.SellerID == sellerID {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeOrders) CountByItems(ctx context.Context, ids []uint64) (map[uint64]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uint64]int64{}
	for _, o := range f.orders {
		out[o.ItemID]++
	}
	return out, nil
}

func (f *fakeOrders) AddStatus(ctx context.Context, st *model.OrderStatus, tracking *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.orders {
		if f.orders[i].ID == st.OrderID {
			f.orders[i].Statuses = append(f.orders[i].Statuses, *st)
			if tracking != nil {
				t := *tracking
				f.orders[i].Tracking = &t
			}
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeOrders) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.orders)), nil
}

func (f *fakeOrders) SetDB(*gorm.DB) {}

type fakeFeedback struct {
	notes   []model.Note
	reviews []model.Review
	stats   repository.ReviewStats
}

func (f *fakeFeedback) CreateNote(ctx context.Context, n *model.Note) error {
	n.ID = uint64(len(f.notes) + 1)
	f.notes = append(f.notes, *n)
	return nil
}

func (f *fakeFeedback) ListNotes(ctx context.Context, orderID uint64) ([]model.Note, error) {
	var out []model.Note
	for _, n := range f.notes {
		if n.OrderID == orderID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeFeedback) CreateReview(ctx context.Context, rv *model.Review) error {
	rv.ID = uint64(len(f.reviews) + 1)
	f.reviews = append(f.reviews, *rv)
	return nil
}

func (f *fakeFeedback) ListReviews(ctx context.Context, orderID uint64) ([]model.Review, error) {
	var out []model.Review
	for _, r := range f.reviews {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeFeedback) ListItemReviews(ctx context.Context, itemID uint64) ([]model.Review, error) {
	return f.reviews, nil
}

func (f *fakeFeedback) ItemReviewStats(ctx context.Context, itemID uint64) (repository.ReviewStats, error) {
	return f.stats, nil
}

func (f *fakeFeedback) SetDB(*gorm.DB) {}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	saves    int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]*model.Session{}}
}

func (f *fakeSessions) Create(ctx context.Context, userID *uint64, ttl time.Duration) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &model.Session{ID: "sess-" + string(rune('a'+len(f.sessions))), UserID: userID, Cart: model.Cart{}, ExpiresAt: time.Now().Add(ttl)}
	cp := *s
	f.sessions[s.ID] = &cp
	return s, nil
}

func (f *fakeSessions) Find(ctx context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) FindByUser(ctx context.Context, userID uint64) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *model.Session
	for _, s := range f.sessions {
		if s.UserID == nil || *s.UserID != userID || !s.ExpiresAt.After(time.Now()) {
			continue
		}
		if best == nil || s.ExpiresAt.After(best.ExpiresAt) {
			best = s
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *fakeSessions) Save(ctx context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	cp := *s
	cp.Cart = model.Cart{}
	for k, v := range s.Cart {
		cp.Cart[k] = v
	}
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessions) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.sessions {
		if !s.ExpiresAt.After(now) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) SetDB(*gorm.DB) {}

type fakeUsers struct {
	mu    sync.Mutex
	users map[uint64]*model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[uint64]*model.User{}}
}

func (f *fakeUsers) Create(ctx context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return gorm.ErrDuplicatedKey
		}
	}
	u.ID = uint64(len(f.users) + 1)
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.User, error) {
	out := map[uint64]model.User{}
	for _, id := range ids {
		if u, err := f.FindByID(ctx, id); err == nil {
			out[id] = *u
		}
	}
	return out, nil
}

func (f *fakeUsers) Update(ctx context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) List(ctx context.Context, limit, offset int) ([]model.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	if end := offset + limit; end < len(out) {
		out = out[:end]
	}
	return out[offset:], total, nil
}

func (f *fakeUsers) SetDB(*gorm.DB) {}

type fakeAddresses struct {
	list []model.Address
}

func (f *fakeAddresses) ListByUser(ctx context.Context, userID uint64) ([]model.Address, error) {
	var out []model.Address
	for _, a := range f.list {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAddresses) FindByID(ctx context.Context, userID, id uint64) (*model.Address, error) {
	for _, a := range f.list {
		if a.ID == id && a.UserID == userID {
			cp := a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAddresses) Save(ctx context.Context, a *model.Address) error {
	if a.ID == 0 {
		a.ID = uint64(len(f.list) + 1)
		f.list = append(f.list, *a)
	} else {
		for i := range f.list {
			if f.list[i].ID == a.ID {
				f.list[i] = *a
			}
		}
	}
	if a.IsPrimary {
		for i := range f.list {
			if f.list[i].UserID == a.UserID && f.list[i].ID != a.ID {
				f.list[i].IsPrimary = false
			}
		}
	}
	return nil
}

func (f *fakeAddresses) Delete(ctx context.Context, userID, id uint64) (bool, error) {
	for i, a := range f.list {
		if a.ID == id && a.UserID == userID {
			f.list = append(f.list[:i], f.list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAddresses) SetDB(*gorm.DB) {}

type fakeCards struct {
	list []model.PaymentMethod
}

func (f *fakeCards) ListByUser(ctx context.Context, userID uint64) ([]model.PaymentMethod, error) {
	var out []model.PaymentMethod
	for _, p := range f.list {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCards) FindByID(ctx context.Context, userID, id uint64) (*model.PaymentMethod, error) {
	for _, p := range f.list {
		if p.ID == id && p.UserID == userID {
			cp := p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCards) Save(ctx context.Context, p *model.PaymentMethod) error {
	if p.ID == 0 {
		p.ID = uint64(len(f.list) + 1)
		f.list = append(f.list, *p)
	} else {
		for i := range f.list {
			if f.list[i].ID == p.ID {
				f.list[i] = *p
			}
		}
	}
	if p.IsPrimary {
		for i := range f.list {
			if f.list[i].UserID == p.UserID && f.list[i].ID != p.ID {
				f.list[i].IsPrimary = false
			}
		}
	}
	return nil
}

func (f *fakeCards) Delete(ctx context.Context, userID, id uint64) (bool, error) {
	for i, p := range f.list {
		if p.ID == id && p.UserID == userID {
			f.list = append(f.list[:i], f.list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCards) SetDB(*gorm.DB) {}

// recordingNotifier captures notices.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notice
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

type memStore struct {
	objects map[string]string
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]string{}}
}

func (m *memStore) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	if m.failPut {
		return "", io.ErrUnexpectedEOF
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.objects[key] = string(b)
	return "https://cdn.example.com/" + key, nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type memMailer struct {
	sent []sentMail
}

func (m *memMailer) Send(ctx context.Context, to, subject, body string) error {
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}
