package student

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"student-records/internal/metrics"

	"github.com/uptrace/bun"
)

// Repository reports a missing row through ErrStudentNotFound (GetByID) or a
// zero row count (Update, Delete). Store failures come back as *StoreError;
// timeouts and unreachable stores additionally match ErrStoreUnavailable.
type Repository interface {
	GetAll(ctx context.Context) ([]Student, error)
	GetByID(ctx context.Context, rollNumber int64) (*Student, error)
	Create(ctx context.Context, student *Student) (int64, error)
	Update(ctx context.Context, rollNumber int64, student *Student) (int64, error)
	Delete(ctx context.Context, rollNumber int64) (int64, error)
}

type repository struct {
	db           *bun.DB
	metrics      *metrics.Metrics
	logger       *slog.Logger
	queryTimeout time.Duration
}

func NewRepository(db *bun.DB, m *metrics.Metrics, logger *slog.Logger, queryTimeout time.Duration) Repository {
	return &repository{
		db:           db,
		metrics:      m,
		logger:       logger,
		queryTimeout: queryTimeout,
	}
}

// withConn runs fn on a dedicated connection that is released on every
// return path. The timeout covers both acquisition and the statement.
func (r *repository) withConn(ctx context.Context, op string, fn func(ctx context.Context, conn bun.Conn) error) error {
	if r.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
	}

	r.logger.DebugContext(ctx, "query start", "op", op, "table", tableName)
	start := time.Now()

	err := r.run(ctx, fn)

	r.metrics.RecordQuery(ctx, op, tableName, time.Since(start), err)
	if err != nil {
		r.logger.DebugContext(ctx, "query failed", "op", op, "table", tableName, "error", err)
		return wrapStoreError(op, err)
	}
	r.logger.DebugContext(ctx, "query end", "op", op, "table", tableName, "duration", time.Since(start))
	return nil
}

func (r *repository) run(ctx context.Context, fn func(ctx context.Context, conn bun.Conn) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	return fn(ctx, conn)
}

func wrapStoreError(op string, err error) error {
	if isUnavailable(err) {
		err = fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return &StoreError{Op: op, Err: err}
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (r *repository) GetAll(ctx context.Context) ([]Student, error) {
	students := make([]Student, 0)
	err := r.withConn(ctx, "select", func(ctx context.Context, conn bun.Conn) error {
		return conn.NewSelect().Model(&students).Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return students, nil
}

func (r *repository) GetByID(ctx context.Context, rollNumber int64) (*Student, error) {
	student := new(Student)
	var found bool
	err := r.withConn(ctx, "select", func(ctx context.Context, conn bun.Conn) error {
		err := conn.NewSelect().Model(student).Where("roll_number = ?", rollNumber).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrStudentNotFound
	}
	return student, nil
}

func (r *repository) Create(ctx context.Context, student *Student) (int64, error) {
	err := r.withConn(ctx, "insert", func(ctx context.Context, conn bun.Conn) error {
		_, err := conn.NewInsert().Model(student).Returning("roll_number").Exec(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return student.RollNumber, nil
}

func (r *repository) Update(ctx context.Context, rollNumber int64, student *Student) (int64, error) {
	var affected int64
	err := r.withConn(ctx, "update", func(ctx context.Context, conn bun.Conn) error {
		result, err := conn.NewUpdate().
			Model(student).
			Column("first_name", "last_name", "age", "email_address").
			Where("roll_number = ?", rollNumber).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (r *repository) Delete(ctx context.Context, rollNumber int64) (int64, error) {
	var affected int64
	err := r.withConn(ctx, "delete", func(ctx context.Context, conn bun.Conn) error {
		result, err := conn.NewDelete().
			Model((*Student)(nil)).
			Where("roll_number = ?", rollNumber).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}
