package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	appmw "github.com/shinyyama/oneauction/internal/middleware"
	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/service"
)

type NotificationHandler struct {
	svc service.NotificationService
}

func NewNotificationHandler(svc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

type NotificationResponse struct {
	ID       uint64  `json:"id"`
	Kind     string  `json:"kind"`
	KindName string  `json:"kindName"`
	Subject  string  `json:"subject"`
	Message  string  `json:"message"`
	ItemID   *uint64 `json:"itemId,omitempty"`
	OrderID  *uint64 `json:"orderId,omitempty"`
	Read     bool    `json:"read"`
	ReadAt   *string `json:"readAt,omitempty"`
	Created  string  `json:"created"`
}

type InboxResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	UnreadCount   int64                  `json:"unreadCount"`
	Page          PageResponse           `json:"page"`
}

type MarkReadRequest struct {
	IDs []uint64 `json:"ids"`
}

func toNotificationResponse(n *model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:       n.ID,
		Kind:     string(n.Kind),
		KindName: n.Kind.Display(),
		Subject:  n.Subject,
		Message:  n.Message,
		ItemID:   n.ItemID,
		OrderID:  n.OrderID,
		Read:     n.IsRead,
		ReadAt:   optionalTimestamp(n.ReadDttm),
		Created:  timestamp(n.CreatedDttm),
	}
}

// List serves the inbox. Only unread notifications are listed unless
// filter=all is given.
func (h *NotificationHandler) List(c echo.Context) error {
	var unreadOnly bool
	switch c.QueryParam("filter") {
	case "", "unread":
		unreadOnly = true
	case "all":
	default:
		return badRequest(c, "filter must be unread or all")
	}
	box, err := h.svc.Inbox(c.Request().Context(), appmw.CurrentUser(c).ID, unreadOnly, pageParam(c))
	if err != nil {
		return respondError(c, err)
	}
	resp := InboxResponse{
		Notifications: make([]NotificationResponse, 0, len(box.Notifications)),
		UnreadCount:   box.Unread,
		Page:          toPageResponse(box.Page),
	}
	for i := range box.Notifications {
		resp.Notifications = append(resp.Notifications, toNotificationResponse(&box.Notifications[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

// MarkRead marks the listed ids read, or the whole inbox when the body has none.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	var req MarkReadRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	n, err := h.svc.MarkRead(c.Request().Context(), appmw.CurrentUser(c).ID, req.IDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"marked": n})
}
