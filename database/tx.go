package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"structura/apperr"
	"structura/logger"
	"structura/metrics"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
)

// TxManager runs units of work in a database transaction and retries them
// on lock contention.
type TxManager struct {
	db         *gorm.DB
	maxRetries uint64
	baseDelay  time.Duration
}

func NewTxManager(db *gorm.DB, maxRetries uint64, baseDelay time.Duration) *TxManager {
	if baseDelay <= 0 {
		baseDelay = 50 * time.Millisecond
	}
	return &TxManager{db: db, maxRetries: maxRetries, baseDelay: baseDelay}
}

// DB returns a session bound to ctx for reads outside a transaction.
func (m *TxManager) DB(ctx context.Context) *gorm.DB {
	return m.db.WithContext(ctx)
}

// WithTransaction commits fn's writes atomically. fn may run more than once
// and must only touch the database through tx.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	log := logger.FromContext(ctx)
	backoff := retry.WithMaxRetries(m.maxRetries, retry.NewExponential(m.baseDelay))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := m.db.WithContext(ctx).Transaction(fn)
		if err != nil && IsRetryable(err) {
			metrics.TxRetries.Inc()
			log.Debug("Retrying transaction", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && IsRetryable(err) {
		metrics.TxFailures.Inc()
		log.Warn("Transaction retries exhausted", "attempts", attempt, "error", err)
		return fmt.Errorf("%w: %v", apperr.ErrTransient, err)
	}
	return err
}

// ForUpdate locks the selected rows until the transaction ends.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// IsRetryable reports lock contention and serialization failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// IsUniqueViolation reports a unique constraint failure on either backend.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsNotFound reports gorm's missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
