package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	appmw "github.com/shinyyama/oneauction/internal/middleware"
	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/service"
	"github.com/shopspring/decimal"
)

const maxImagesPerUpload = 10

type ItemHandler struct {
	svc service.ItemService
}

func NewItemHandler(svc service.ItemService) *ItemHandler {
	return &ItemHandler{svc: svc}
}

type ImageResponse struct {
	ID  uint64 `json:"id"`
	URL string `json:"url"`
}

type ItemResponse struct {
	ID               uint64          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Price            string          `json:"price"`
	CurrentPrice     string          `json:"currentPrice"`
	DeliveryCharge   *string         `json:"deliveryCharge"`
	Type             string          `json:"type"`
	TypeDisplay      string          `json:"typeDisplay"`
	Condition        string          `json:"condition"`
	ConditionDisplay string          `json:"conditionDisplay"`
	Stock            int             `json:"stock"`
	ExpireDate       *string         `json:"expireDate"`
	Status           string          `json:"status"`
	Orders           int64           `json:"orders"`
	Seller           *UserSummary    `json:"seller,omitempty"`
	Images           []ImageResponse `json:"images"`
	CreatedAt        string          `json:"createdAt"`
	UpdatedAt        string          `json:"updatedAt"`
}

type ItemListResponse struct {
	Items []ItemResponse `json:"items"`
	Page  PageResponse   `json:"page"`
}

type ReviewResponse struct {
	ID          uint64 `json:"id"`
	OrderID     uint64 `json:"orderId"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Rating      int    `json:"rating"`
	CreatedAt   string `json:"createdAt"`
}

type RatingResponse struct {
	Average float64 `json:"average"`
	Full    int     `json:"full"`
	Half    int     `json:"half"`
	Empty   int     `json:"empty"`
	Count   int64   `json:"count"`
}

type ItemDetailResponse struct {
	ItemResponse
	Rating  RatingResponse   `json:"rating"`
	Reviews []ReviewResponse `json:"reviews"`
	Similar []ItemResponse   `json:"similar"`
}

func toItemResponse(item *model.Item) ItemResponse {
	resp := ItemResponse{
		ID:               item.ID,
		Title:            item.Title,
		Description:      item.Description,
		Price:            money(item.Price),
		CurrentPrice:     money(item.Price),
		Type:             string(item.Type),
		TypeDisplay:      item.Type.Display(),
		Condition:        string(item.Condition),
		ConditionDisplay: item.Condition.Display(),
		Stock:            item.Stock,
		ExpireDate:       optionalTimestamp(item.ExpireDate),
		Seller:           toUserSummary(item.Seller),
		Images:           make([]ImageResponse, 0, len(item.Images)),
		CreatedAt:        timestamp(item.CreatedDttm),
		UpdatedAt:        timestamp(item.ModifiedDttm),
	}
	if item.DeliveryCharge.Valid {
		d := money(item.DeliveryCharge.Decimal)
		resp.DeliveryCharge = &d
	}
	for _, img := range item.Images {
		resp.Images = append(resp.Images, ImageResponse{ID: img.ID, URL: img.URL})
	}
	return resp
}

func toItemViewResponse(v service.ItemView) ItemResponse {
	resp := toItemResponse(&v.Item)
	resp.CurrentPrice = money(v.CurrentPrice)
	resp.Status = v.Status
	resp.Orders = v.Orders
	return resp
}

func toItemListResponse(p *service.ItemPage) ItemListResponse {
	resp := ItemListResponse{
		Items: make([]ItemResponse, 0, len(p.Items)),
		Page:  toPageResponse(p.Page),
	}
	for _, v := range p.Items {
		resp.Items = append(resp.Items, toItemViewResponse(v))
	}
	return resp
}

func toReviewResponse(r model.Review) ReviewResponse {
	return ReviewResponse{
		ID:          r.ID,
		OrderID:     r.OrderID,
		Summary:     r.Summary,
		Description: r.Description,
		Rating:      r.Rating,
		CreatedAt:   timestamp(r.CreatedDttm),
	}
}

// Index searches every listing.
func (h *ItemHandler) Index(c echo.Context) error {
	page, err := h.svc.Search(c.Request().Context(), c.QueryParam("query"), pageParam(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toItemListResponse(page))
}

func (h *ItemHandler) ListMine(c echo.Context) error {
	u := appmw.CurrentUser(c)
	page, err := h.svc.ListBySeller(c.Request().Context(), u.ID, c.QueryParam("query"), pageParam(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toItemListResponse(page))
}

func (h *ItemHandler) ListBySeller(c echo.Context) error {
	sellerID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	page, err := h.svc.ListBySeller(c.Request().Context(), sellerID, c.QueryParam("query"), pageParam(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toItemListResponse(page))
}

func (h *ItemHandler) ClosedAuctions(c echo.Context) error {
	page, err := h.svc.ClosedAuctions(c.Request().Context(), pageParam(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toItemListResponse(page))
}

func (h *ItemHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	full, half, empty := service.Stars(d.Rating)
	resp := ItemDetailResponse{
		ItemResponse: toItemViewResponse(d.ItemView),
		Rating: RatingResponse{
			Average: d.Rating,
			Full:    full,
			Half:    half,
			Empty:   empty,
			Count:   d.ReviewCount,
		},
		Reviews: make([]ReviewResponse, 0, len(d.Reviews)),
		Similar: make([]ItemResponse, 0, len(d.Similar)),
	}
	for _, r := range d.Reviews {
		resp.Reviews = append(resp.Reviews, toReviewResponse(r))
	}
	for _, v := range d.Similar {
		resp.Similar = append(resp.Similar, toItemViewResponse(v))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ItemHandler) Create(c echo.Context) error {
	in, closeFiles, err := listingInput(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	defer closeFiles()
	item, err := h.svc.Create(c.Request().Context(), appmw.CurrentUser(c).ID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toItemResponse(item))
}

func (h *ItemHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	in, closeFiles, err := listingInput(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	defer closeFiles()
	item, err := h.svc.Update(c.Request().Context(), appmw.CurrentUser(c).ID, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *ItemHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), appmw.CurrentUser(c).ID, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ItemHandler) DeleteImage(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	imageID, ok := parseID(c, "imageId")
	if !ok {
		return badRequest(c, "invalid image id")
	}
	if err := h.svc.DeleteImage(c.Request().Context(), appmw.CurrentUser(c).ID, id, imageID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type formError string

func (e formError) Error() string { return string(e) }

// listingInput reads the listing form. The returned func closes any opened uploads.
func listingInput(c echo.Context) (service.ListingInput, func(), error) {
	noop := func() {}
	in := service.ListingInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Condition:   c.FormValue("condition"),
	}
	price, err := decimal.NewFromString(strings.TrimSpace(c.FormValue("price")))
	if err != nil {
		return in, noop, formError("invalid price")
	}
	in.Price = price
	if v := strings.TrimSpace(c.FormValue("delivery_charge")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return in, noop, formError("invalid delivery charge")
		}
		in.DeliveryCharge = &d
	}
	if v := strings.TrimSpace(c.FormValue("stock")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return in, noop, formError("invalid stock")
		}
		in.Stock = &n
	}
	if v := strings.TrimSpace(c.FormValue("expire_date")); v != "" {
		t, err := parseDateTime(v)
		if err != nil {
			return in, noop, formError("invalid expire date")
		}
		in.ExpireDate = &t
	}

	form, err := c.MultipartForm()
	if err != nil {
		// url-encoded bodies carry no files
		return in, noop, nil
	}
	headers := form.File["images"]
	if len(headers) > maxImagesPerUpload {
		return in, noop, formError("too many images")
	}
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return in, noop, formError("unreadable image upload")
		}
		opened = append(opened, f)
		in.Images = append(in.Images, service.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Body:        io.Reader(f),
		})
	}
	return in, closeAll, nil
}

// parseDateTime accepts RFC 3339 or the HTML datetime-local layout (read as UTC).
func parseDateTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04", v, time.UTC)
}
