package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/eorimag/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresLedger дублирует заявки в PostgreSQL и хранит факты оплаты.
// Обе таблицы только дополняются.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger создаёт реестр и применяет миграции схемы.
func NewPostgresLedger(dsn string) (*PostgresLedger, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	l := &PostgresLedger{pool: pool}

	if err := l.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return l, nil
}

func (l *PostgresLedger) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(l.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}

// Append сохраняет копию записи журнала заявок.
func (l *PostgresLedger) Append(ctx context.Context, rec model.OrderRecord) error {
	files := rec.Files
	if files == nil {
		files = []string{}
	}

	_, err := l.pool.Exec(ctx,
		`INSERT INTO orders (submitted_at, service_key, full_name, company, email, phone, national_id, notes, files)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.Timestamp.UTC(), rec.ServiceKey, rec.FullName, rec.Company, rec.Email,
		rec.Phone, rec.NationalID, rec.Notes, files,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// RecordPayment сохраняет факт оплаты. Возвращает false, если оплата по этой сессии
// уже была записана ранее (повторная доставка вебхука).
func (l *PostgresLedger) RecordPayment(ctx context.Context, rec model.PaymentRecord) (bool, error) {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return false, fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = l.pool.Exec(ctx,
		`INSERT INTO payments (session_id, service_key, email, amount_minor, currency, metadata, paid_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.SessionID, rec.ServiceKey, rec.Email, rec.AmountMinor, rec.Currency, metadata, rec.PaidAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("insert payment: %w", err)
	}

	return true, nil
}
