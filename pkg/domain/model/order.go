package model

import (
	"context"
	"errors"
	"time"
)

var ErrNoOrderLines = errors.New("order must contain at least one line item")

type LineItem struct {
	Name     string
	Quantity int
	Price    float64
}

type OrderLine struct {
	TokenNumber int64
	ItemName    string
	Quantity    int
	Price       float64
	Amount      float64
	CreatedAt   time.Time
}

type Token struct {
	Number      int64
	CustomerID  string
	CreatedAt   time.Time
	TotalAmount float64
}

type Order struct {
	Token Token
	Lines []OrderLine
}

type QueueItem struct {
	ItemName string
	Quantity int
	Price    float64
}

type QueueEntry struct {
	TokenNumber int64
	CustomerID  string
	CreatedAt   time.Time
	Total       float64
	Items       []QueueItem
}

type OrderRepository interface {
	NextTokenNumber(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, customerID string, lines []LineItem, at time.Time) (*Order, error)
	ListQueue(ctx context.Context) ([]QueueEntry, error)
	ClearAll(ctx context.Context) error
}
