package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"tokenqueue/pkg/domain/model"
)

var (
	ErrCustomerRequired = errors.New("customer_id is required")
	ErrItemsRequired    = errors.New("items are required")
	ErrNoOrderableItems = errors.New("order has no items with positive quantity")
	ErrItemNameRequired = errors.New("item name must not be empty")
	ErrNegativePrice    = errors.New("item price must not be negative")
)

// IsInvalidInput reports whether err was caused by a bad order request, as
// opposed to a store failure.
func IsInvalidInput(err error) bool {
	for _, target := range []error{
		ErrCustomerRequired,
		ErrItemsRequired,
		ErrNoOrderableItems,
		ErrItemNameRequired,
		ErrNegativePrice,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

const receiptTimeLayout = "02 Jan 2006, 03:04 PM"

type PlaceOrderRequest struct {
	CustomerID string
	Items      []model.LineItem
}

type OrderReceipt struct {
	TokenNumber   int64
	CustomerID    string
	CreatedAt     time.Time
	FormattedTime string
	Total         float64
	Items         []model.OrderLine
}

type OrderService interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*OrderReceipt, error)
	GetQueue(ctx context.Context) ([]model.QueueEntry, error)
	ClearQueue(ctx context.Context) error
}

func NewOrderService(repo model.OrderRepository) OrderService {
	return &orderService{repo: repo}
}

type orderService struct {
	repo model.OrderRepository
}

func (s *orderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*OrderReceipt, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, ErrCustomerRequired
	}
	if req.Items == nil {
		return nil, ErrItemsRequired
	}

	lines := make([]model.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			continue
		}
		if strings.TrimSpace(item.Name) == "" {
			return nil, ErrItemNameRequired
		}
		if item.Price < 0 {
			return nil, ErrNegativePrice
		}
		lines = append(lines, item)
	}
	if len(lines) == 0 {
		return nil, ErrNoOrderableItems
	}

	// Both timestamp renderings on the receipt must come from one instant.
	now := time.Now().UTC()

	order, err := s.repo.CreateOrder(ctx, req.CustomerID, lines, now)
	if err != nil {
		return nil, err
	}

	return &OrderReceipt{
		TokenNumber:   order.Token.Number,
		CustomerID:    order.Token.CustomerID,
		CreatedAt:     order.Token.CreatedAt,
		FormattedTime: order.Token.CreatedAt.Format(receiptTimeLayout),
		Total:         order.Token.TotalAmount,
		Items:         order.Lines,
	}, nil
}

func (s *orderService) GetQueue(ctx context.Context) ([]model.QueueEntry, error) {
	return s.repo.ListQueue(ctx)
}

func (s *orderService) ClearQueue(ctx context.Context) error {
	return s.repo.ClearAll(ctx)
}
