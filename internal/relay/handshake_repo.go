package relay

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type HandshakeRepo struct{ DB *pgxpool.Pool }

const handshakeCols = `id, website_restaurant_id, callback_url, website_domain, status, target_restaurant_uid, requester_ip, requester_user_agent, created_at, expires_at`

// CountRecentByIP backs the abuse rate limit. Derived from rows, not a
// counter, so it is eventually consistent under bursts.
func (r *HandshakeRepo) CountRecentByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM handshake_requests
		WHERE requester_ip = $1 AND created_at > $2`, ip, since).Scan(&n)
	return n, err
}

// Create inserts a pending request. Stale pending rows for the same website id
// are expired first so the partial unique index only ever blocks on a live
// request; a live conflict comes back as ConflictError with the existing id.
func (r *HandshakeRepo) Create(ctx context.Context, req HandshakeRequest) (HandshakeRequest, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return HandshakeRequest{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE handshake_requests SET status = 'expired'
		WHERE website_restaurant_id = $1 AND status = 'pending' AND expires_at <= now()`,
		req.WebsiteRestaurantID); err != nil {
		return HandshakeRequest{}, err
	}

	req.ID = uuid.NewString()
	req.Status = HandshakePending
	var target *string
	if req.TargetRestaurantUID != "" {
		target = &req.TargetRestaurantUID
	}
	ct, err := tx.Exec(ctx, `
		INSERT INTO handshake_requests(id, website_restaurant_id, callback_url, website_domain, status, target_restaurant_uid, requester_ip, requester_user_agent, expires_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7, $8)
		ON CONFLICT (website_restaurant_id) WHERE status = 'pending' DO NOTHING`,
		req.ID, req.WebsiteRestaurantID, req.CallbackURL, req.WebsiteDomain, target,
		req.RequesterIP, req.RequesterUserAgent, req.ExpiresAt)
	if err != nil {
		return HandshakeRequest{}, err
	}
	if ct.RowsAffected() == 0 {
		var existingID string
		err := tx.QueryRow(ctx, `
			SELECT id FROM handshake_requests
			WHERE website_restaurant_id = $1 AND status = 'pending'`,
			req.WebsiteRestaurantID).Scan(&existingID)
		if err != nil {
			return HandshakeRequest{}, err
		}
		return HandshakeRequest{}, &ConflictError{RequestID: existingID}
	}

	if err := tx.Commit(ctx); err != nil {
		return HandshakeRequest{}, err
	}
	return req, nil
}

func (r *HandshakeRepo) Get(ctx context.Context, id string) (HandshakeRequest, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+handshakeCols+` FROM handshake_requests WHERE id = $1`, id)
	req, err := scanHandshake(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return HandshakeRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return HandshakeRequest{}, err
	}
	req.Status = EffectiveStatus(req.Status, req.ExpiresAt, time.Now())
	return req, nil
}

// ListPendingFor returns live pending requests a kitchen should answer:
// those targeted at its uid plus broadcasts.
func (r *HandshakeRepo) ListPendingFor(ctx context.Context, restaurantUID string) ([]HandshakeRequest, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+handshakeCols+` FROM handshake_requests
		WHERE status = 'pending' AND expires_at > now()
		  AND (target_restaurant_uid = $1 OR target_restaurant_uid IS NULL)
		ORDER BY created_at`, restaurantUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HandshakeRequest
	for rows.Next() {
		req, err := scanHandshake(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *HandshakeRepo) List(ctx context.Context, websiteID string, status HandshakeStatus) ([]HandshakeRequest, error) {
	q := `SELECT ` + handshakeCols + ` FROM handshake_requests WHERE 1=1`
	args := []any{}
	if websiteID != "" {
		args = append(args, websiteID)
		q += ` AND website_restaurant_id = $1`
	}
	if status != "" {
		args = append(args, string(status))
		if len(args) == 1 {
			q += ` AND status = $1`
		} else {
			q += ` AND status = $2`
		}
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HandshakeRequest
	for rows.Next() {
		req, err := scanHandshake(rows)
		if err != nil {
			return nil, err
		}
		req.Status = EffectiveStatus(req.Status, req.ExpiresAt, time.Now())
		out = append(out, req)
	}
	return out, rows.Err()
}

// Complete is the terminal transition driven by the kitchen app. In one
// transaction: lock the row, refuse terminal/expired requests, mark it
// completed and swap the active mapping for the website id.
func (r *HandshakeRepo) Complete(ctx context.Context, id, restaurantUID string) (HandshakeRequest, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return HandshakeRequest{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+handshakeCols+` FROM handshake_requests WHERE id = $1 FOR UPDATE`, id)
	req, err := scanHandshake(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return HandshakeRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return HandshakeRequest{}, err
	}

	now := time.Now()
	if EffectiveStatus(req.Status, req.ExpiresAt, now) != HandshakePending {
		if req.Status == HandshakePending {
			// persist the lazy expiry while we hold the lock
			_, _ = tx.Exec(ctx, `UPDATE handshake_requests SET status = 'expired' WHERE id = $1`, id)
			_ = tx.Commit(ctx)
		}
		return HandshakeRequest{}, ErrTerminalState
	}

	if _, err := tx.Exec(ctx, `
		UPDATE handshake_requests SET status = 'completed', target_restaurant_uid = $2
		WHERE id = $1`, id, restaurantUID); err != nil {
		return HandshakeRequest{}, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE restaurant_mappings SET is_active = false
		WHERE website_restaurant_id = $1 AND is_active`, req.WebsiteRestaurantID); err != nil {
		return HandshakeRequest{}, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO restaurant_mappings(website_restaurant_id, restaurant_uid, is_active, callback_url, handshake_request_id, last_handshake)
		VALUES ($1, $2, true, $3, $4, now())`,
		req.WebsiteRestaurantID, restaurantUID, req.CallbackURL, id); err != nil {
		return HandshakeRequest{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return HandshakeRequest{}, err
	}
	req.Status = HandshakeCompleted
	req.TargetRestaurantUID = restaurantUID
	return req, nil
}

func scanHandshake(row pgx.Row) (HandshakeRequest, error) {
	var req HandshakeRequest
	var target *string
	err := row.Scan(&req.ID, &req.WebsiteRestaurantID, &req.CallbackURL, &req.WebsiteDomain,
		&req.Status, &target, &req.RequesterIP, &req.RequesterUserAgent, &req.CreatedAt, &req.ExpiresAt)
	if target != nil {
		req.TargetRestaurantUID = *target
	}
	return req, err
}
