package issuance

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"

	"github.com/nimblebank/cardissuer/issuance/models"
)

var (
	ErrNotFound = fmt.Errorf("not found")
	ErrConflict = fmt.Errorf("conflict")
)

//go:embed migrations/0001_init.sql
var migrationSQL string

// Repository persists users and cards. It runs either fully in memory (tests
// and local development) or against Postgres when constructed with a DB
// handle; all methods switch on db == nil.
type Repository struct {
	mu    sync.RWMutex
	users []*models.User
	cards []*models.Card

	db *sql.DB
}

// NewRepository constructs the in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		users: make([]*models.User, 0),
		cards: make([]*models.Card, 0),
	}
}

// NewPGRepository constructs a db-backed repository.
func NewPGRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate applies the embedded schema. No-op for the memory backend.
func (r *Repository) Migrate(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, migrationSQL); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now().UTC()

	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, u := range r.users {
			if u.Username == user.Username {
				return fmt.Errorf("username exists: %w", ErrConflict)
			}
		}
		r.users = append(r.users, user)
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO users(user_id, username, external_id, api_key, created_at)
        VALUES ($1,$2,$3,$4,$5)
    `, user.ID, user.Username, user.ExternalID, user.APIKey, user.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("username exists: %w", ErrConflict)
	}
	return err
}

func (r *Repository) GetUserByAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, u := range r.users {
			if u.APIKey == apiKey {
				return u, nil
			}
		}
		return nil, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
        SELECT user_id, username, external_id, api_key, created_at
        FROM users WHERE api_key=$1
    `, apiKey)

	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Username, &user.ExternalID, &user.APIKey, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// CreateCard commits one fully-validated card. The write is a single
// statement and therefore atomic; the provider call that produced the card
// data is deliberately outside any transaction boundary.
func (r *Repository) CreateCard(ctx context.Context, card *models.Card) error {
	now := time.Now().UTC()
	card.CreatedAt = now
	card.UpdatedAt = now

	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.cards = append(r.cards, card)
		return nil
	}

	var expiration sql.NullTime
	if card.ExpirationDate != nil {
		expiration = sql.NullTime{Time: *card.ExpirationDate, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO cards(card_id, user_id, color, provider_card_id, status, expiration_date, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, card.ID, card.UserID, string(card.Color), card.ProviderCardID, card.Status, expiration, card.CreatedAt, card.UpdatedAt)
	return err
}

// ListCards returns all cards owned by userID, newest-created first.
func (r *Repository) ListCards(ctx context.Context, userID string) ([]*models.Card, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		cards := make([]*models.Card, 0)
		// insertion order is creation order; walk backwards for newest-first
		for i := len(r.cards) - 1; i >= 0; i-- {
			if r.cards[i].UserID == userID {
				cards = append(cards, r.cards[i])
			}
		}
		return cards, nil
	}

	rows, err := r.db.QueryContext(ctx, `
        SELECT card_id, user_id, color, provider_card_id, status, expiration_date, created_at, updated_at
        FROM cards WHERE user_id=$1 ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := make([]*models.Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// GetCard returns the card with cardID iff it is owned by userID. A missing
// id and an id owned by someone else are both ErrNotFound; ownership must
// not be distinguishable from non-existence.
func (r *Repository) GetCard(ctx context.Context, userID, cardID string) (*models.Card, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, c := range r.cards {
			if c.ID == cardID && c.UserID == userID {
				return c, nil
			}
		}
		return nil, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
        SELECT card_id, user_id, color, provider_card_id, status, expiration_date, created_at, updated_at
        FROM cards WHERE card_id=$1 AND user_id=$2
    `, cardID, userID)

	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return card, nil
}

// Ping reports storage readiness.
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	card := &models.Card{}
	var color string
	var expiration sql.NullTime
	if err := row.Scan(&card.ID, &card.UserID, &color, &card.ProviderCardID, &card.Status, &expiration, &card.CreatedAt, &card.UpdatedAt); err != nil {
		return nil, err
	}
	card.Color = models.Color(color)
	if expiration.Valid {
		t := expiration.Time
		card.ExpirationDate = &t
	}
	return card, nil
}

func isUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	return false
}
