package service

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/reqctx"
	"github.com/shinyyama/oneauction/internal/repository"
)

const maxSubject = 255

// Notice is a message to one user about an item or an order.
type Notice struct {
	RecipientID uint64
	Kind        model.NotificationType
	Subject     string
	Message     string
	ItemID      *uint64
	OrderID     *uint64
}

// Notifier delivers notices. Delivery is best-effort: failures are logged and
// never fail the bid, sale or status change that caused them.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

type Inbox struct {
	Notifications []model.Notification
	Unread        int64
	Page          Page
}

type NotificationService interface {
	Notifier
	// Inbox lists a page of the user's notifications, newest first.
	Inbox(ctx context.Context, userID uint64, unreadOnly bool, page int) (*Inbox, error)
	// MarkRead marks ids read, or every unread notification when ids is empty,
	// and returns how many changed.
	MarkRead(ctx context.Context, userID uint64, ids []uint64) (int64, error)
}

type notificationService struct {
	repo repository.NotificationRepository
	now  func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo, now: time.Now}
}

func (s *notificationService) Notify(ctx context.Context, n Notice) {
	if n.RecipientID == 0 || n.Kind == "" {
		return
	}
	subject := strings.TrimSpace(n.Subject)
	if subject == "" {
		subject = n.Kind.Display()
	}
	if utf8.RuneCountInString(subject) > maxSubject {
		subject = string([]rune(subject)[:maxSubject])
	}
	row := &model.Notification{
		RecipientID: n.RecipientID,
		Kind:        n.Kind,
		Subject:     subject,
		Message:     n.Message,
		ItemID:      n.ItemID,
		OrderID:     n.OrderID,
	}
	ctx, cancel := withShortDeadline(ctx)
	defer cancel()
	if err := s.repo.Create(ctx, row); err != nil {
		log.Printf("%snotify %s user=%d: %v", reqctx.Prefix(ctx), n.Kind, n.RecipientID, err)
	}
}

func (s *notificationService) Inbox(ctx context.Context, userID uint64, unreadOnly bool, number int) (*Inbox, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	unread, err := s.repo.Count(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	total := unread
	if !unreadOnly {
		if total, err = s.repo.Count(ctx, userID, false); err != nil {
			return nil, err
		}
	}
	page := NewPage(number, DefaultPageSize, total)
	list, err := s.repo.List(ctx, userID, unreadOnly, page.Size, page.Offset())
	if err != nil {
		return nil, err
	}
	return &Inbox{Notifications: list, Unread: unread, Page: page}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID uint64, ids []uint64) (int64, error) {
	if userID == 0 {
		return 0, ErrUnauthenticated
	}
	return s.repo.MarkRead(ctx, userID, ids, s.now())
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}

// withShortDeadline keeps side effects from blocking the main flow.
func withShortDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 2*time.Second)
}
