package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/bookstore/internal/domain"
)

type cartLineResponse struct {
	BookID    int64           `json:"bookId"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	Genre     string          `json:"genre"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type cartResponse struct {
	Lines     []cartLineResponse `json:"lines"`
	ItemCount int                `json:"itemCount"`
	Total     decimal.Decimal    `json:"total"`
}

func newCartResponse(c *domain.CartView) cartResponse {
	resp := cartResponse{
		Lines:     make([]cartLineResponse, 0, len(c.Lines)),
		ItemCount: c.ItemCount,
		Total:     c.Total,
	}
	for _, l := range c.Lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			BookID:    l.BookID,
			Title:     l.Title,
			Author:    l.Author,
			Genre:     l.Genre,
			Image:     l.Image,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		})
	}
	return resp
}

type orderLineResponse struct {
	BookID    int64           `json:"bookId"`
	Title     string          `json:"title"`
	Genre     string          `json:"genre"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderStatusResponse is the JSON form of an order status.
type OrderStatusResponse struct {
	ID   int32  `json:"id"`
	Name string `json:"name"`
}

// OrderResponse is the JSON form of an order, shared with the admin API.
type OrderResponse struct {
	ID            int64               `json:"id"`
	UserID        string              `json:"userId"`
	Status        OrderStatusResponse `json:"status"`
	IsPaid        bool                `json:"isPaid"`
	PaymentMethod string              `json:"paymentMethod"`
	Name          string              `json:"name"`
	Email         string              `json:"email"`
	MobileNumber  string              `json:"mobileNumber"`
	Address       string              `json:"address"`
	CreatedAt     time.Time           `json:"createdAt"`
	Lines         []orderLineResponse `json:"lines"`
	Total         decimal.Decimal     `json:"total"`
}

func NewOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		Status:        OrderStatusResponse{ID: o.Status.ID, Name: o.Status.Name},
		IsPaid:        o.IsPaid,
		PaymentMethod: string(o.PaymentMethod),
		Name:          o.Shipping.Name,
		Email:         o.Shipping.Email,
		MobileNumber:  o.Shipping.MobileNumber,
		Address:       o.Shipping.Address,
		CreatedAt:     o.CreatedAt,
		Lines:         make([]orderLineResponse, 0, len(o.Lines)),
		Total:         o.Total,
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			BookID:    l.BookID,
			Title:     l.Title,
			Genre:     l.Genre,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		})
	}
	return resp
}

func NewOrderListResponse(orders []domain.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i]))
	}
	return out
}

// StatusResponse converts an order status for JSON output.
func StatusResponse(s domain.OrderStatus) OrderStatusResponse {
	return OrderStatusResponse{ID: s.ID, Name: s.Name}
}
