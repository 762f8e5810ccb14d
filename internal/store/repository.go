/**
 * @description
 * This file implements the data access layer for the cashier. It reads and
 * writes the billing columns of the host application's billables table.
 *
 * Expected schema (host-owned, created by the host's migrations):
 *
 *   billables (
 *     id                   TEXT PRIMARY KEY,
 *     email                TEXT NOT NULL,
 *     conekta_id           TEXT,
 *     conekta_subscription TEXT,
 *     conekta_plan         TEXT,
 *     last_four            TEXT,
 *     card_type            TEXT,
 *     conekta_active       BOOLEAN NOT NULL DEFAULT FALSE,
 *     trial_ends_at        TIMESTAMPTZ,
 *     subscription_ends_at TIMESTAMPTZ,
 *     card_up_front        BOOLEAN NOT NULL DEFAULT TRUE,
 *     updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
 *   )
 */
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dinkbit/conekta-cashier/internal/domain"
)

const billableColumns = `
        id, email, conekta_id, conekta_subscription, conekta_plan,
        last_four, card_type, conekta_active, trial_ends_at,
        subscription_ends_at, card_up_front
`

// Repository handles database operations for billable records.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// FindByID retrieves a billable record by its primary key.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.BillableRecord, error) {
	query := `SELECT ` + billableColumns + ` FROM billables WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// FindByConektaID retrieves a billable record by its Conekta customer id.
// Returns domain.ErrBillableNotFound when no record matches; webhook-driven
// lookups treat that as "no side effect" rather than a failure.
func (r *Repository) FindByConektaID(ctx context.Context, conektaID string) (*domain.BillableRecord, error) {
	query := `SELECT ` + billableColumns + ` FROM billables WHERE conekta_id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, conektaID))
}

// FindByConektaIDOrFail is the "or fail" lookup variant: callers turn the
// not-found error into a 404-equivalent.
func (r *Repository) FindByConektaIDOrFail(ctx context.Context, conektaID string) (*domain.BillableRecord, error) {
	record, err := r.FindByConektaID(ctx, conektaID)
	if err != nil {
		if errors.Is(err, domain.ErrBillableNotFound) {
			return nil, fmt.Errorf("%w: conekta id %s", domain.ErrBillableNotFound, conektaID)
		}
		return nil, err
	}
	return record, nil
}

// Save writes the billing columns of the record back to storage.
func (r *Repository) Save(ctx context.Context, record *domain.BillableRecord) error {
	query := `
        UPDATE billables SET
            conekta_id = $2,
            conekta_subscription = $3,
            conekta_plan = $4,
            last_four = $5,
            card_type = $6,
            conekta_active = $7,
            trial_ends_at = $8,
            subscription_ends_at = $9,
            card_up_front = $10,
            updated_at = NOW()
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query,
		record.ID,
		record.ConektaID,
		record.ConektaSubscription,
		record.ConektaPlan,
		record.LastFour,
		record.CardType,
		record.ConektaActive,
		record.TrialEndsAt,
		record.SubscriptionEndsAt,
		record.CardUpFront,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBillableNotFound
	}
	return nil
}

func (r *Repository) scanOne(row pgx.Row) (*domain.BillableRecord, error) {
	var record domain.BillableRecord
	err := row.Scan(
		&record.ID,
		&record.Email,
		&record.ConektaID,
		&record.ConektaSubscription,
		&record.ConektaPlan,
		&record.LastFour,
		&record.CardType,
		&record.ConektaActive,
		&record.TrialEndsAt,
		&record.SubscriptionEndsAt,
		&record.CardUpFront,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBillableNotFound
		}
		return nil, err
	}
	return &record, nil
}
