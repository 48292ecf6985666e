package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"tokenqueue/pkg/domain/model"
)

var _ model.OrderRepository = (*Store)(nil)

// timeLayout is RFC 3339 with fixed-width nanoseconds. Stored values are
// always UTC, so lexicographic order of the column matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	insertTokenSQL = `INSERT INTO tokens (token_number, customer_id, created_at, total_amount) VALUES (?, ?, ?, ?)`

	insertOrderItemSQL = `INSERT INTO order_items (token_number, item_name, quantity, price, amount, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	listQueueSQL = `SELECT t.token_number, t.customer_id, t.created_at, t.total_amount, o.item_name, o.quantity, o.price
FROM tokens t
JOIN order_items o ON o.token_number = t.token_number
ORDER BY t.created_at DESC, t.token_number DESC, o.id`
)

// NextTokenNumber reports the number the next order will receive without
// consuming it.
func (s *Store) NextTokenNumber(ctx context.Context) (int64, error) {
	var last int64
	if err := s.db.GetContext(ctx, &last, readSequenceSQL, tokenSequenceName); err != nil {
		return 0, errors.Wrap(err, "failed to read token sequence")
	}
	return last + 1, nil
}

// CreateOrder allocates the next token number and persists the token row
// together with its line items in one transaction.
func (s *Store) CreateOrder(ctx context.Context, customerID string, lines []model.LineItem, at time.Time) (*model.Order, error) {
	if len(lines) == 0 {
		return nil, model.ErrNoOrderLines
	}

	var order *model.Order
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		number, err := nextNumberTx(ctx, tx)
		if err != nil {
			return err
		}

		createdAt := at.UTC()
		stamp := createdAt.Format(timeLayout)

		token := model.Token{Number: number, CustomerID: customerID, CreatedAt: createdAt}
		orderLines := make([]model.OrderLine, 0, len(lines))
		for _, line := range lines {
			amount := float64(line.Quantity) * line.Price
			if _, err = tx.ExecContext(ctx, insertOrderItemSQL, number, line.Name, line.Quantity, line.Price, amount, stamp); err != nil {
				return errors.Wrapf(err, "failed to insert order item %q", line.Name)
			}
			orderLines = append(orderLines, model.OrderLine{
				TokenNumber: number,
				ItemName:    line.Name,
				Quantity:    line.Quantity,
				Price:       line.Price,
				Amount:      amount,
				CreatedAt:   createdAt,
			})
			token.TotalAmount += amount
		}

		if _, err = tx.ExecContext(ctx, insertTokenSQL, number, customerID, stamp, token.TotalAmount); err != nil {
			return errors.Wrapf(err, "failed to insert token %d", number)
		}

		order = &model.Order{Token: token, Lines: orderLines}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// nextNumberTx advances the sequence with an UPDATE before reading it back.
// The row lock taken by the UPDATE serializes concurrent creators, so two
// transactions can never observe the same value.
func nextNumberTx(ctx context.Context, tx *sqlx.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx, advanceSequenceSQL, tokenSequenceName)
	if err != nil {
		return 0, errors.Wrap(err, "failed to advance token sequence")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to check token sequence update")
	}
	if affected == 0 {
		return 0, errors.New("token sequence is not initialized")
	}

	var number int64
	if err = tx.GetContext(ctx, &number, readSequenceSQL, tokenSequenceName); err != nil {
		return 0, errors.Wrap(err, "failed to read advanced token sequence")
	}
	return number, nil
}

type queueRow struct {
	TokenNumber int64   `db:"token_number"`
	CustomerID  string  `db:"customer_id"`
	CreatedAt   string  `db:"created_at"`
	TotalAmount float64 `db:"total_amount"`
	ItemName    string  `db:"item_name"`
	Quantity    int     `db:"quantity"`
	Price       float64 `db:"price"`
}

// ListQueue returns all active tokens with their items, newest order first.
func (s *Store) ListQueue(ctx context.Context) ([]model.QueueEntry, error) {
	var rows []queueRow
	if err := s.db.SelectContext(ctx, &rows, listQueueSQL); err != nil {
		return nil, errors.Wrap(err, "failed to list queue")
	}

	entries := make([]model.QueueEntry, 0)
	index := make(map[int64]int, len(rows))
	for _, row := range rows {
		i, ok := index[row.TokenNumber]
		if !ok {
			createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse timestamp of token %d", row.TokenNumber)
			}
			entries = append(entries, model.QueueEntry{
				TokenNumber: row.TokenNumber,
				CustomerID:  row.CustomerID,
				CreatedAt:   createdAt,
				Total:       row.TotalAmount,
			})
			i = len(entries) - 1
			index[row.TokenNumber] = i
		}
		entries[i].Items = append(entries[i].Items, model.QueueItem{
			ItemName: row.ItemName,
			Quantity: row.Quantity,
			Price:    row.Price,
		})
	}
	return entries, nil
}

// ClearAll removes every order and re-arms the token sequence, so numbering
// restarts from the first token after the seed.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items`); err != nil {
			return errors.Wrap(err, "failed to clear order items")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tokens`); err != nil {
			return errors.Wrap(err, "failed to clear tokens")
		}

		var last int64
		err := tx.GetContext(ctx, &last, readSequenceSQL, tokenSequenceName)
		switch {
		case err == nil:
			if _, err = tx.ExecContext(ctx, resetSequenceSQL, tokenSequenceSeed, tokenSequenceName); err != nil {
				return errors.Wrap(err, "failed to reset token sequence")
			}
		case errors.Is(err, sql.ErrNoRows):
			if _, err = tx.ExecContext(ctx, insertSequenceSQL, tokenSequenceName, tokenSequenceSeed); err != nil {
				return errors.Wrap(err, "failed to reseed token sequence")
			}
		default:
			return errors.Wrap(err, "failed to read token sequence")
		}
		return nil
	})
}
