package relay

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RegistryRepo struct{ DB *pgxpool.Pool }

const restaurantCols = `uid, website_restaurant_id, name, phone, email, address, callback_url, is_active, created_at, updated_at`

// Register issues a fresh uid (never derived from input) and activates the
// mapping for the website id in the same transaction, superseding any prior
// active mapping so order resolution stays unambiguous.
func (r *RegistryRepo) Register(ctx context.Context, in RegistrationInput) (RegisteredRestaurant, error) {
	uid := uuid.NewString()

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return RegisteredRestaurant{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO restaurants(uid, website_restaurant_id, name, phone, email, address, callback_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		RETURNING `+restaurantCols,
		uid, in.WebsiteRestaurantID, in.Name, in.Phone, in.Email, in.Address, in.CallbackURL)
	rest, err := scanRestaurant(row)
	if err != nil {
		return RegisteredRestaurant{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE restaurant_mappings SET is_active = false
		WHERE website_restaurant_id = $1 AND is_active`, in.WebsiteRestaurantID); err != nil {
		return RegisteredRestaurant{}, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO restaurant_mappings(website_restaurant_id, restaurant_uid, is_active, callback_url, last_handshake)
		VALUES ($1, $2, true, $3, now())`, in.WebsiteRestaurantID, uid, in.CallbackURL); err != nil {
		return RegisteredRestaurant{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return RegisteredRestaurant{}, err
	}
	return rest, nil
}

func (r *RegistryRepo) Restaurant(ctx context.Context, uid string) (RegisteredRestaurant, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+restaurantCols+` FROM restaurants WHERE uid = $1`, uid)
	rest, err := scanRestaurant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return RegisteredRestaurant{}, ErrRestaurantNotFound
	}
	return rest, err
}

func (r *RegistryRepo) Deactivate(ctx context.Context, uid string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE restaurants SET is_active = false, updated_at = now() WHERE uid = $1`, uid)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrRestaurantNotFound
	}
	_, err = r.DB.Exec(ctx, `UPDATE restaurant_mappings SET is_active = false WHERE restaurant_uid = $1 AND is_active`, uid)
	return err
}

// ActiveMapping resolves the single active mapping for a website id, most
// recently handshaken first in case legacy data violates the invariant.
func (r *RegistryRepo) ActiveMapping(ctx context.Context, websiteID string) (RestaurantMapping, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT id, website_restaurant_id, restaurant_uid, is_active, callback_url, handshake_request_id, last_handshake, created_at
		FROM restaurant_mappings
		WHERE website_restaurant_id = $1 AND is_active
		ORDER BY last_handshake DESC
		LIMIT 1`, websiteID)
	m, err := scanMapping(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return RestaurantMapping{}, ErrMappingNotFound
	}
	return m, err
}

func (r *RegistryRepo) ListRestaurants(ctx context.Context) ([]RegisteredRestaurant, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+restaurantCols+` FROM restaurants ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RegisteredRestaurant
	for rows.Next() {
		rest, err := scanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rest)
	}
	return out, rows.Err()
}

func (r *RegistryRepo) ListMappings(ctx context.Context, websiteID string) ([]RestaurantMapping, error) {
	q := `SELECT id, website_restaurant_id, restaurant_uid, is_active, callback_url, handshake_request_id, last_handshake, created_at
	      FROM restaurant_mappings`
	args := []any{}
	if websiteID != "" {
		q += ` WHERE website_restaurant_id = $1`
		args = append(args, websiteID)
	}
	q += ` ORDER BY last_handshake DESC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RestaurantMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanRestaurant(row pgx.Row) (RegisteredRestaurant, error) {
	var rest RegisteredRestaurant
	err := row.Scan(&rest.UID, &rest.WebsiteRestaurantID, &rest.Name, &rest.Phone, &rest.Email,
		&rest.Address, &rest.CallbackURL, &rest.IsActive, &rest.CreatedAt, &rest.UpdatedAt)
	return rest, err
}

func scanMapping(row pgx.Row) (RestaurantMapping, error) {
	var m RestaurantMapping
	err := row.Scan(&m.ID, &m.WebsiteRestaurantID, &m.RestaurantUID, &m.IsActive,
		&m.CallbackURL, &m.HandshakeRequestID, &m.LastHandshake, &m.CreatedAt)
	return m, err
}
