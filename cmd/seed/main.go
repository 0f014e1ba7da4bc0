package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/joho/godotenv"
	"github.com/shinyyama/oneauction/internal/config"
	"github.com/shinyyama/oneauction/internal/db"
	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type options struct {
	users         int
	itemsPerUser  int
	bidsPerItem   int
	ordersPerItem int
	password      string
	adminEmail    string
	images        bool
	seed          int64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace marketplace data with generated users, listings, bids and orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
		SilenceUsage: true,
	}
	f := cmd.Flags()
	f.IntVar(&opts.users, "users", 10, "number of users to create")
	f.IntVar(&opts.itemsPerUser, "items", 80, "listings per user")
	f.IntVar(&opts.bidsPerItem, "bids", 30, "bids per auction listing")
	f.IntVar(&opts.ordersPerItem, "orders", 50, "order attempts per buy-it-now listing")
	f.StringVar(&opts.password, "password", "admin", "password for every seeded account")
	f.StringVar(&opts.adminEmail, "admin-email", "admin@example.com", "staff account created when missing")
	f.BoolVar(&opts.images, "images", true, "attach a placeholder image to every listing")
	f.Int64Var(&opts.seed, "seed", 0, "random seed, 0 picks one")
	return cmd
}

func run(opts options) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	hash, err := service.HashPassword(opts.password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	s := &seeder{opts: opts, hash: hash, faker: gofakeit.New(opts.seed), now: time.Now().UTC()}

	if err := s.ensureAdmin(gdb); err != nil {
		return err
	}
	log.Printf("attempting to seed data")
	if err := gdb.Transaction(s.seed); err != nil {
		log.Printf("failed to seed data, rolled back all changes")
		return err
	}
	log.Printf("seeding complete")
	return nil
}

type seeder struct {
	opts    options
	hash    string
	faker   *gofakeit.Faker
	now     time.Time
	counter int
}

func (s *seeder) ensureAdmin(tx *gorm.DB) error {
	var admin model.User
	err := tx.Where("email = ?", s.opts.adminEmail).First(&admin).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("find admin: %w", err)
	}
	admin = model.User{
		Email:        s.opts.adminEmail,
		FirstName:    "Site",
		LastName:     "Admin",
		PasswordHash: s.hash,
		IsActive:     true,
		IsStaff:      true,
	}
	if err := tx.Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.Printf("created staff user %s", admin.Email)
	return nil
}

func (s *seeder) seed(tx *gorm.DB) error {
	if err := s.clear(tx); err != nil {
		return err
	}

	log.Printf("attempting to create %d users", s.opts.users)
	users, err := s.createUsers(tx)
	if err != nil {
		return err
	}

	log.Printf("attempting to create %d item listings for each user", s.opts.itemsPerUser)
	items, err := s.createItems(tx, users)
	if err != nil {
		return err
	}

	log.Printf("attempting to create bids for auction items")
	if err := s.createBids(tx, users, items); err != nil {
		return err
	}

	log.Printf("attempting to create orders for buy-it-now items")
	return s.createOrders(tx, users, items)
}

// clear removes marketplace rows and every non-staff account.
func (s *seeder) clear(tx *gorm.DB) error {
	all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []interface{}{
		&model.Notification{}, &model.OrderStatus{}, &model.Review{}, &model.Note{},
		&model.Order{}, &model.Bid{}, &model.Image{}, &model.Item{},
	} {
		if err := all.Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	staff := tx.Model(&model.User{}).Select("id").Where("is_staff = ?", true)
	for _, m := range []interface{}{&model.Address{}, &model.PaymentMethod{}, &model.Session{}} {
		if err := tx.Where("user_id NOT IN (?)", staff).Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	if err := tx.Where("is_staff = ?", false).Delete(&model.User{}).Error; err != nil {
		return fmt.Errorf("clear users: %w", err)
	}
	return nil
}

func (s *seeder) createUsers(tx *gorm.DB) ([]model.User, error) {
	domains := []string{"gmail.com", "hotmail.co.uk", "yahoo.co.uk", "outlook.com"}
	seen := map[string]bool{}
	users := make([]model.User, 0, s.opts.users)
	for len(users) < s.opts.users {
		first, last := s.faker.FirstName(), s.faker.LastName()
		email := fmt.Sprintf("%s.%s@%s", strings.ToLower(first), strings.ToLower(last), s.faker.RandomString(domains))
		if seen[email] {
			continue
		}
		seen[email] = true
		users = append(users, model.User{
			Email:        email,
			FirstName:    first,
			LastName:     last,
			PasswordHash: s.hash,
			IsActive:     true,
		})
	}
	if len(users) == 0 {
		return users, nil
	}
	if err := tx.CreateInBatches(&users, 100).Error; err != nil {
		return nil, fmt.Errorf("create users: %w", err)
	}
	return users, nil
}

func (s *seeder) createItems(tx *gorm.DB, users []model.User) ([]model.Item, error) {
	items := make([]model.Item, 0, len(users)*s.opts.itemsPerUser)
	for _, u := range users {
		for i := 0; i < s.opts.itemsPerUser; i++ {
			items = append(items, s.newItem(u.ID))
		}
	}
	if len(items) == 0 {
		return items, nil
	}
	if err := tx.CreateInBatches(&items, 200).Error; err != nil {
		return nil, fmt.Errorf("create items: %w", err)
	}
	return items, nil
}

func (s *seeder) newItem(sellerID uint64) model.Item {
	s.counter++
	item := model.Item{
		SellerID:       sellerID,
		Title:          fmt.Sprintf("Item %d", s.counter),
		Description:    s.faker.Paragraph(1, 6, 12, " "),
		Price:          s.cents(0, 999),
		DeliveryCharge: decimal.NewNullDecimal(s.cents(0, 999)),
		Condition:      model.Conditions[s.faker.Number(0, len(model.Conditions)-1)],
		Stock:          1,
	}
	if s.faker.Bool() {
		expire := s.now.Add(time.Duration(s.faker.Number(0, 10))*24*time.Hour +
			time.Duration(s.faker.Number(0, 59))*time.Hour +
			time.Duration(s.faker.Number(0, 59))*time.Minute +
			time.Duration(s.faker.Number(0, 59))*time.Second)
		item.Type = model.ItemTypeAuction
		item.ExpireDate = &expire
	} else {
		item.Type = model.ItemTypeBuyItNow
		item.Stock = s.faker.Number(0, 9999)
	}
	if s.opts.images {
		item.Images = []model.Image{{
			ObjectKey: fmt.Sprintf("seed/item-%d", s.counter),
			URL:       picsumURL(s.counter),
		}}
	}
	return item
}

func (s *seeder) createBids(tx *gorm.DB, users []model.User, items []model.Item) error {
	var bids []model.Bid
	for _, item := range items {
		if item.Type != model.ItemTypeAuction {
			continue
		}
		price := item.Price
		for i := 0; i < s.opts.bidsPerItem; i++ {
			// strictly above the previous bid, as live bidding requires
			price = price.Add(s.cents(1, 999))
			bids = append(bids, model.Bid{
				ItemID:   item.ID,
				BidderID: users[s.faker.Number(0, len(users)-1)].ID,
				Price:    price,
			})
		}
	}
	if len(bids) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(&bids, 500).Error; err != nil {
		return fmt.Errorf("create bids: %w", err)
	}
	return nil
}

func (s *seeder) createOrders(tx *gorm.DB, users []model.User, items []model.Item) error {
	var orders []model.Order
	for i := range items {
		item := &items[i]
		if item.Type != model.ItemTypeBuyItNow {
			continue
		}
		start := item.Stock
		for n := 0; n < s.opts.ordersPerItem; n++ {
			qty := s.faker.Number(1, 15)
			total, err := service.OrderTotal(item.Price, item.Delivery(), qty, item.Stock, true)
			if err != nil {
				// not enough stock left for this one
				continue
			}
			item.Stock -= qty
			orders = append(orders, model.Order{
				ItemID:   item.ID,
				BuyerID:  users[s.faker.Number(0, len(users)-1)].ID,
				Total:    total,
				Quantity: qty,
				Number:   service.NewOrderNumber(),
				Statuses: []model.OrderStatus{{Status: model.StatusOrdered}},
			})
		}
		if item.Stock != start {
			if err := tx.Model(&model.Item{}).Where("id = ?", item.ID).Update("stock", item.Stock).Error; err != nil {
				return fmt.Errorf("update stock for item %d: %w", item.ID, err)
			}
		}
	}
	if len(orders) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(&orders, 500).Error; err != nil {
		return fmt.Errorf("create orders: %w", err)
	}
	log.Printf("created %d orders", len(orders))
	return nil
}

func (s *seeder) cents(min, max int) decimal.Decimal {
	return decimal.New(int64(s.faker.Number(min, max)), -2)
}

func picsumURL(itemIndex int) string {
	return fmt.Sprintf("https://picsum.photos/seed/oneauction-%d/600/600", itemIndex)
}
