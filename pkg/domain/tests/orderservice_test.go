package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenqueue/pkg/domain/model"
	"tokenqueue/pkg/domain/service"
)

func setup(t *testing.T) (service.OrderService, *mockOrderRepository) {
	repo := &mockOrderRepository{lastNumber: 999}
	orderService := service.NewOrderService(repo)
	return orderService, repo
}

func TestPlaceOrder(t *testing.T) {
	orderService, repo := setup(t)

	receipt, err := orderService.PlaceOrder(context.Background(), service.PlaceOrderRequest{
		CustomerID: "c1",
		Items: []model.LineItem{
			{Name: "tea", Quantity: 2, Price: 10},
			{Name: "coffee", Quantity: 0, Price: 20},
		},
	})

	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, int64(1000), receipt.TokenNumber)
	assert.Equal(t, "c1", receipt.CustomerID)
	assert.Equal(t, 20.0, receipt.Total)

	require.Len(t, receipt.Items, 1, "zero quantity items must be dropped")
	assert.Equal(t, "tea", receipt.Items[0].ItemName)
	assert.Equal(t, 2, receipt.Items[0].Quantity)
	assert.Equal(t, 10.0, receipt.Items[0].Price)
	assert.Equal(t, 20.0, receipt.Items[0].Amount)

	require.Len(t, repo.orders, 1)
	assert.Len(t, repo.orders[0].Lines, 1)
}

func TestPlaceOrderAssignsSequentialTokens(t *testing.T) {
	orderService, _ := setup(t)

	first, err := orderService.PlaceOrder(context.Background(), newRequest("c1"))
	require.NoError(t, err)
	second, err := orderService.PlaceOrder(context.Background(), newRequest("c2"))
	require.NoError(t, err)

	assert.Equal(t, int64(1000), first.TokenNumber)
	assert.Equal(t, int64(1001), second.TokenNumber)
}

func TestPlaceOrderFormattedTime(t *testing.T) {
	orderService, _ := setup(t)

	receipt, err := orderService.PlaceOrder(context.Background(), newRequest("c1"))
	require.NoError(t, err)

	assert.Equal(t, receipt.CreatedAt.Format("02 Jan 2006, 03:04 PM"), receipt.FormattedTime,
		"both renderings must describe the same instant")
}

func TestPlaceOrderValidation(t *testing.T) {
	orderService, repo := setup(t)

	t.Run("Fail on missing customer id", func(t *testing.T) {
		_, err := orderService.PlaceOrder(context.Background(), service.PlaceOrderRequest{
			CustomerID: "   ",
			Items:      []model.LineItem{{Name: "tea", Quantity: 1, Price: 10}},
		})
		assert.ErrorIs(t, err, service.ErrCustomerRequired)
	})

	t.Run("Fail on nil items", func(t *testing.T) {
		_, err := orderService.PlaceOrder(context.Background(), service.PlaceOrderRequest{CustomerID: "c1"})
		assert.ErrorIs(t, err, service.ErrItemsRequired)
	})

	t.Run("Fail when no item has positive quantity", func(t *testing.T) {
		_, err := orderService.PlaceOrder(context.Background(), service.PlaceOrderRequest{
			CustomerID: "c1",
			Items: []model.LineItem{
				{Name: "tea", Quantity: 0, Price: 10},
				{Name: "coffee", Quantity: -1, Price: 20},
			},
		})
		assert.ErrorIs(t, err, service.ErrNoOrderableItems)
	})

	t.Run("Fail on blank item name", func(t *testing.T) {
		_, err := orderService.PlaceOrder(context.Background(), service.PlaceOrderRequest{
			CustomerID: "c1",
			Items:      []model.LineItem{{Name: " ", Quantity: 1, Price: 10}},
		})
		assert.ErrorIs(t, err, service.ErrItemNameRequired)
	})

	t.Run("Fail on negative price", func(t *testing.T) {
		_, err := orderService.PlaceOrder(context.Background(), service.PlaceOrderRequest{
			CustomerID: "c1",
			Items:      []model.LineItem{{Name: "tea", Quantity: 1, Price: -0.5}},
		})
		assert.ErrorIs(t, err, service.ErrNegativePrice)
	})

	assert.Empty(t, repo.orders, "rejected requests must not reach the store")

	for _, target := range []error{
		service.ErrCustomerRequired,
		service.ErrItemsRequired,
		service.ErrNoOrderableItems,
		service.ErrItemNameRequired,
		service.ErrNegativePrice,
	} {
		assert.True(t, service.IsInvalidInput(target))
	}
}

func TestPlaceOrderStoreFailure(t *testing.T) {
	orderService, repo := setup(t)
	repo.failWith = errors.New("disk is full")

	_, err := orderService.PlaceOrder(context.Background(), newRequest("c1"))

	require.Error(t, err)
	assert.ErrorIs(t, err, repo.failWith)
	assert.False(t, service.IsInvalidInput(err))
}

func TestGetQueue(t *testing.T) {
	orderService, repo := setup(t)
	repo.queue = []model.QueueEntry{
		{
			TokenNumber: 1001,
			CustomerID:  "c2",
			CreatedAt:   time.Date(2025, 8, 7, 12, 30, 0, 0, time.UTC),
			Total:       15,
			Items:       []model.QueueItem{{ItemName: "bun", Quantity: 3, Price: 5}},
		},
		{
			TokenNumber: 1000,
			CustomerID:  "c1",
			CreatedAt:   time.Date(2025, 8, 7, 12, 0, 0, 0, time.UTC),
			Total:       20,
			Items:       []model.QueueItem{{ItemName: "tea", Quantity: 2, Price: 10}},
		},
	}

	entries, err := orderService.GetQueue(context.Background())

	require.NoError(t, err)
	assert.Equal(t, repo.queue, entries)
}

func TestGetQueueStoreFailure(t *testing.T) {
	orderService, repo := setup(t)
	repo.failWith = errors.New("connection reset")

	_, err := orderService.GetQueue(context.Background())

	assert.ErrorIs(t, err, repo.failWith)
}

func TestClearQueue(t *testing.T) {
	orderService, repo := setup(t)

	_, err := orderService.PlaceOrder(context.Background(), newRequest("c1"))
	require.NoError(t, err)

	require.NoError(t, orderService.ClearQueue(context.Background()))
	assert.Equal(t, 1, repo.clearCalls)
	assert.Empty(t, repo.orders)

	receipt, err := orderService.PlaceOrder(context.Background(), newRequest("c2"))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), receipt.TokenNumber, "numbering restarts after a clear")
}

func TestClearQueueStoreFailure(t *testing.T) {
	orderService, repo := setup(t)
	repo.failWith = errors.New("table is locked")

	err := orderService.ClearQueue(context.Background())

	assert.ErrorIs(t, err, repo.failWith)
}

func newRequest(customerID string) service.PlaceOrderRequest {
	return service.PlaceOrderRequest{
		CustomerID: customerID,
		Items:      []model.LineItem{{Name: "tea", Quantity: 2, Price: 10}},
	}
}

var _ model.OrderRepository = &mockOrderRepository{}

type mockOrderRepository struct {
	lastNumber int64
	orders     []*model.Order
	queue      []model.QueueEntry
	clearCalls int
	failWith   error
}

func (m *mockOrderRepository) NextTokenNumber(_ context.Context) (int64, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	return m.lastNumber + 1, nil
}

func (m *mockOrderRepository) CreateOrder(_ context.Context, customerID string, lines []model.LineItem, at time.Time) (*model.Order, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	if len(lines) == 0 {
		return nil, model.ErrNoOrderLines
	}

	m.lastNumber++
	token := model.Token{Number: m.lastNumber, CustomerID: customerID, CreatedAt: at.UTC()}
	orderLines := make([]model.OrderLine, 0, len(lines))
	for _, line := range lines {
		amount := float64(line.Quantity) * line.Price
		orderLines = append(orderLines, model.OrderLine{
			TokenNumber: token.Number,
			ItemName:    line.Name,
			Quantity:    line.Quantity,
			Price:       line.Price,
			Amount:      amount,
			CreatedAt:   token.CreatedAt,
		})
		token.TotalAmount += amount
	}

	order := &model.Order{Token: token, Lines: orderLines}
	m.orders = append(m.orders, order)
	return order, nil
}

func (m *mockOrderRepository) ListQueue(_ context.Context) ([]model.QueueEntry, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.queue, nil
}

func (m *mockOrderRepository) ClearAll(_ context.Context) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.clearCalls++
	m.lastNumber = 999
	m.orders = nil
	m.queue = nil
	return nil
}
