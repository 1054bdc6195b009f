package relay

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepo struct{ DB *pgxpool.Pool }

const orderCols = `id, order_number, amount_cents, amount_display, currency, status, items, customer, restaurant_uid, website_restaurant_id, callback_url, idempotency_key, created_at, updated_at`

// Create is idempotent on idempotency_key: a duplicate submission returns the
// original row (existed=true) and never inserts a second one. The unique
// constraint is the backstop for concurrent duplicates the pre-check misses.
func (r *OrderRepo) Create(ctx context.Context, o Order) (Order, bool, error) {
	if existing, err := r.byIdempotencyKey(ctx, o.IdempotencyKey); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, false, err
	}

	o.ID = uuid.NewString()
	o.Status = OrderPending
	items, err := json.Marshal(o.Items)
	if err != nil {
		return Order{}, false, err
	}
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return Order{}, false, err
	}

	ct, err := r.DB.Exec(ctx, `
		INSERT INTO orders(id, order_number, amount_cents, amount_display, currency, status, items, customer, restaurant_uid, website_restaurant_id, callback_url, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7, $8, $9, $10, $11)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		o.ID, o.OrderNumber, o.AmountCents, o.AmountDisplay, o.Currency,
		items, customer, o.RestaurantUID, o.WebsiteRestaurantID, o.CallbackURL, o.IdempotencyKey)
	if err != nil {
		return Order{}, false, err
	}
	if ct.RowsAffected() == 0 {
		existing, err := r.byIdempotencyKey(ctx, o.IdempotencyKey)
		if err != nil {
			return Order{}, false, err
		}
		return existing, true, nil
	}

	created, err := r.Get(ctx, o.ID)
	return created, false, err
}

func (r *OrderRepo) Get(ctx context.Context, id string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

func (r *OrderRepo) byIdempotencyKey(ctx context.Context, key string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE idempotency_key = $1`, key)
	return scanOrder(row)
}

// ListByRestaurant is the scoped query the kitchen app polls.
func (r *OrderRepo) ListByRestaurant(ctx context.Context, restaurantUID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderCols+` FROM orders
		WHERE restaurant_uid = $1
		ORDER BY created_at DESC`, restaurantUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrderRepo) ListByWebsite(ctx context.Context, websiteID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderCols+` FROM orders
		WHERE website_restaurant_id = $1
		ORDER BY created_at DESC`, websiteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus enforces the kitchen state machine under a row lock.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, to OrderStatus) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from OrderStatus
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(from, to) {
		return Order{}, ErrBadTransition
	}

	row := tx.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderCols, id, string(to))
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var items, customer []byte
	err := row.Scan(&o.ID, &o.OrderNumber, &o.AmountCents, &o.AmountDisplay, &o.Currency, &o.Status,
		&items, &customer, &o.RestaurantUID, &o.WebsiteRestaurantID, &o.CallbackURL, &o.IdempotencyKey,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return Order{}, err
		}
	}
	if len(customer) > 0 {
		if err := json.Unmarshal(customer, &o.Customer); err != nil {
			return Order{}, err
		}
	}
	return o, nil
}
