package db

import (
	"context"

	"github.com/google/uuid"
)

const userColumns = `id, email, display_name, subscription_tier,
	total_messages, total_tokens, total_sessions, created_at, updated_at`

type CreateUserParams struct {
	ID               uuid.UUID
	Email            string
	DisplayName      string
	SubscriptionTier string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (id, email, display_name, subscription_tier)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		arg.ID, arg.Email, arg.DisplayName, arg.SubscriptionTier)
	return scanUser(row)
}

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserTier returns the subscription tier string for the user.
func (q *Queries) GetUserTier(ctx context.Context, id uuid.UUID) (string, error) {
	var tier string
	err := q.db.QueryRow(ctx, `SELECT subscription_tier FROM users WHERE id = $1`, id).Scan(&tier)
	return tier, err
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.SubscriptionTier,
		&u.TotalMessages, &u.TotalTokens, &u.TotalSessions, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}
