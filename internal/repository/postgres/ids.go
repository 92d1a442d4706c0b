package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/jackc/pgx/v5/pgconn"
)

// Entity ids are random rather than sequential so they carry no ordering or
// volume information. Collisions are resolved by retrying the insert; the
// id space is large enough that more than one retry is already unlikely.
const (
	idSpace       = int64(1) << 53
	maxIDAttempts = 5
)

func newID() int64 {
	return rand.Int64N(idSpace-1) + 1
}

const uniqueViolationCode = "23505"

// uniqueViolation reports whether err is a violation of the named unique
// constraint. An empty name matches any unique violation.
func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != uniqueViolationCode {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// retryOnIDCollision runs insert with fresh ids until it succeeds or fails
// for a reason other than a primary-key collision. Only usable with
// pool-level inserts; inside a transaction use retryOnIDCollisionTx.
func retryOnIDCollision(pkeyConstraint string, insert func(id int64) error) (int64, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := newID()
		err := insert(id)
		if err == nil {
			return id, nil
		}
		if uniqueViolation(err, pkeyConstraint) {
			continue
		}
		return 0, err
	}
	return 0, fmt.Errorf("exhausted %d id attempts for %s", maxIDAttempts, pkeyConstraint)
}

// execer is the slice of pgx.Tx the savepoint retry needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// retryOnIDCollisionTx is the in-transaction variant. A unique violation
// aborts the enclosing Postgres transaction, so each attempt runs under a
// savepoint that is rolled back before the next id is tried.
func retryOnIDCollisionTx(ctx context.Context, tx execer, pkeyConstraint string, insert func(id int64) error) (int64, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		if _, err := tx.Exec(ctx, "SAVEPOINT id_retry"); err != nil {
			return 0, err
		}
		id := newID()
		err := insert(id)
		if err == nil {
			if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT id_retry"); err != nil {
				return 0, err
			}
			return id, nil
		}
		if uniqueViolation(err, pkeyConstraint) {
			if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT id_retry"); rbErr != nil {
				return 0, rbErr
			}
			continue
		}
		return 0, err
	}
	return 0, fmt.Errorf("exhausted %d id attempts for %s", maxIDAttempts, pkeyConstraint)
}
