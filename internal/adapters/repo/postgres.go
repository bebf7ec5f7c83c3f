package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"autoria-leads/internal/domain"
	"autoria-leads/internal/infra/metrics"
)

// Postgres реализует DedupRepo и PendingSMSRepo на основе pgxpool.
type Postgres struct {
	pool     *pgxpool.Pool
	log      zerolog.Logger
	capacity int
}

var (
	_ domain.DedupRepo      = (*Postgres)(nil)
	_ domain.PendingSMSRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД. capacity — предел хранилища дедупликации.
func NewPostgres(pool *pgxpool.Pool, logger zerolog.Logger, capacity int) *Postgres {
	if capacity <= 0 {
		capacity = 50
	}
	return &Postgres{pool: pool, log: logger, capacity: capacity}
}

func (p *Postgres) connCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if _, ok := parent.Deadline(); ok {
		return parent, func() {}
	}
	return context.WithTimeout(parent, 5*time.Second)
}

// Exists проверяет, отправлялось ли объявление.
func (p *Postgres) Exists(ctx context.Context, listingURL string) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sent_listings WHERE listing_url = $1)`, listingURL).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "dedup_exists", "sent_listings", start, err)
	if err != nil {
		return false, fmt.Errorf("проверка дедупликации: %w", err)
	}
	return exists, nil
}

// MarkSent фиксирует отправку и синхронно вытесняет самые старые записи
// сверх вместимости. Повторная вставка — не ошибка, возвращается false.
func (p *Postgres) MarkSent(ctx context.Context, listingURL string) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO sent_listings (listing_url, sent_at)
VALUES ($1, now())
ON CONFLICT (listing_url) DO NOTHING
`, listingURL)
	metrics.ObserveNetworkRequest("postgres", "dedup_insert", "sent_listings", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Гонка конкурентных вставок под уникальным ограничением.
			return false, nil
		}
		return false, fmt.Errorf("вставка записи дедупликации: %w", err)
	}
	inserted := tag.RowsAffected() > 0

	if err := p.evictOldest(ctx); err != nil {
		// Лишние записи только занимают место, чтение от них не страдает.
		p.log.Error().Err(err).Msg("repo: вытеснение старых записей не удалось")
	}
	return inserted, nil
}

func (p *Postgres) evictOldest(ctx context.Context) error {
	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT listing_url FROM sent_listings ORDER BY sent_at DESC, listing_url`)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", "dedup_evict", "sent_listings", start, err)
		return err
	}

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			rows.Close()
			return err
		}
		urls = append(urls, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	victims := evictionVictims(urls, p.capacity)
	if len(victims) == 0 {
		metrics.ObserveNetworkRequest("postgres", "dedup_evict", "sent_listings", start, nil)
		return nil
	}

	_, err = p.pool.Exec(ctx, `DELETE FROM sent_listings WHERE listing_url = ANY($1)`, victims)
	metrics.ObserveNetworkRequest("postgres", "dedup_evict", "sent_listings", start, err)
	return err
}

// evictionVictims выбирает записи на удаление. urls отсортированы от новых
// к старым, вытесняется хвост сверх вместимости — самые старые.
func evictionVictims(urls []string, capacity int) []string {
	if capacity <= 0 || len(urls) <= capacity {
		return nil
	}
	return urls[capacity:]
}

// ScheduleIfAbsent вставляет отложенную SMS, если на номер ещё нет записи.
func (p *Postgres) ScheduleIfAbsent(ctx context.Context, sms domain.PendingSMS) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if sms.ID == "" {
		sms.ID = uuid.NewString()
	}
	if sms.CreatedAt.IsZero() {
		sms.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO pending_sms (id, phone, listing_url, listing_title, message, scheduled_for, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (phone) DO NOTHING
`, sms.ID, sms.Phone, sms.ListingURL, sms.ListingTitle, sms.Message, sms.ScheduledFor, sms.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "pending_sms_insert", "pending_sms", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, fmt.Errorf("вставка отложенной SMS: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FindDue возвращает отложенные SMS, срок которых наступил.
func (p *Postgres) FindDue(ctx context.Context, now time.Time) ([]domain.PendingSMS, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, phone, listing_url, listing_title, message, scheduled_for, created_at
FROM pending_sms
WHERE scheduled_for <= $1
ORDER BY scheduled_for
`, now)
	metrics.ObserveNetworkRequest("postgres", "pending_sms_due", "pending_sms", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка отложенных SMS: %w", err)
	}
	defer rows.Close()

	var due []domain.PendingSMS
	for rows.Next() {
		var sms domain.PendingSMS
		if err := rows.Scan(&sms.ID, &sms.Phone, &sms.ListingURL, &sms.ListingTitle, &sms.Message, &sms.ScheduledFor, &sms.CreatedAt); err != nil {
			return nil, fmt.Errorf("чтение отложенной SMS: %w", err)
		}
		due = append(due, sms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("итерация отложенных SMS: %w", err)
	}
	return due, nil
}

// Delete удаляет отложенную SMS после успешной отправки.
func (p *Postgres) Delete(ctx context.Context, id string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM pending_sms WHERE id = $1`, id)
	metrics.ObserveNetworkRequest("postgres", "pending_sms_delete", "pending_sms", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("удаление отложенной SMS: %w", err)
	}
	return nil
}
