package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// savepoint is the savepoint name CockroachDB recognizes for client-side
// transaction retries
const savepoint = "cockroach_restart"

type execution func(tx *gorm.DB) ([]Event, error)

// inTransaction runs exec in a transaction, re-running it whenever it fails
// with a serialization conflict. Any other error rolls the transaction back
// and is returned as is
func (es *EventStore) inTransaction(ctx context.Context, exec execution) ([]Event, error) {
	if es.cfg.RestartTransactions {
		return es.inRestartingTransaction(ctx, exec)
	}

	tx := es.db.WithContext(ctx).Begin(es.txOptions()...)
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	events, err := es.executeWithSavepoint(ctx, tx, exec)
	if err != nil {
		es.rollback(ctx, tx)

		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return events, nil
}

func (es *EventStore) executeWithSavepoint(ctx context.Context, tx *gorm.DB, exec execution) ([]Event, error) {
	if err := tx.SavePoint(savepoint).Error; err != nil {
		return nil, fmt.Errorf("failed to create savepoint: %w", err)
	}

	for attempt := 1; ; attempt++ {
		events, err := exec(tx)
		if err == nil {
			err = tx.Exec("RELEASE SAVEPOINT " + savepoint).Error
			if err == nil {
				return events, nil
			}
		}

		if err := es.checkRetry(ctx, attempt, err); err != nil {
			return nil, err
		}

		if err := tx.RollbackTo(savepoint).Error; err != nil {
			return nil, fmt.Errorf("failed to roll back to savepoint: %w", err)
		}
	}
}

func (es *EventStore) inRestartingTransaction(ctx context.Context, exec execution) ([]Event, error) {
	for attempt := 1; ; attempt++ {
		events, err := es.transactionOnce(ctx, exec)
		if err == nil {
			return events, nil
		}

		if err := es.checkRetry(ctx, attempt, err); err != nil {
			return nil, err
		}
	}
}

func (es *EventStore) transactionOnce(ctx context.Context, exec execution) ([]Event, error) {
	tx := es.db.WithContext(ctx).Begin(es.txOptions()...)
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	events, err := exec(tx)
	if err != nil {
		es.rollback(ctx, tx)

		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return events, nil
}

// checkRetry returns nil if the failed attempt should be retried, otherwise
// the error the append fails with
func (es *EventStore) checkRetry(ctx context.Context, attempt int, err error) error {
	if !es.isConflict(err) {
		return err
	}

	if attempt > es.cfg.MaxRetries {
		es.cfg.Logger.Error(ctx, "giving up on append after serialization conflicts",
			"attempts", attempt,
			"error", err)

		return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, err)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("append interrupted while retrying: %w", ctxErr)
	}

	es.cfg.Logger.Debug(ctx, "serialization conflict, retrying append",
		"attempt", attempt,
		"error", err)

	return nil
}

func (es *EventStore) rollback(ctx context.Context, tx *gorm.DB) {
	err := tx.Rollback().Error
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		es.cfg.Logger.Error(ctx, "failed to roll back transaction", "error", err)
	}
}

func (es *EventStore) txOptions() []*sql.TxOptions {
	if es.cfg.dialect == dialectPostgres {
		return []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
	}

	return nil
}
