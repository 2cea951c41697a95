package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskhub/internal/model"
)

type SubscriptionRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSubscriptionRepository(db *pgxpool.Pool, logger *zap.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, logger: logger}
}

func (r *SubscriptionRepository) Insert(ctx context.Context, s *model.Subscription) error {
	query := `
        INSERT INTO webhook_subscriptions (url, events, active)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query, s.URL, s.Events, s.Active).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert webhook subscription",
			zap.Error(err),
			zap.String("url", s.URL),
		)
		return err
	}

	r.logger.Info("Webhook subscription created",
		zap.Int64("subscription_id", s.ID),
		zap.String("url", s.URL),
		zap.Strings("events", s.Events),
	)
	return nil
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id int64) (*model.Subscription, error) {
	var s model.Subscription
	err := r.db.QueryRow(ctx, `
        SELECT id, url, events, active, created_at
        FROM webhook_subscriptions
        WHERE id = $1
    `, id).Scan(&s.ID, &s.URL, &s.Events, &s.Active, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubscriptionRepository) List(ctx context.Context) ([]model.Subscription, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, url, events, active, created_at
        FROM webhook_subscriptions
        ORDER BY created_at ASC
    `)
	if err != nil {
		r.logger.Error("Failed to query webhook subscriptions", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	subs := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		if err := rows.Scan(&s.ID, &s.URL, &s.Events, &s.Active, &s.CreatedAt); err != nil {
			r.logger.Error("Failed to scan subscription row", zap.Error(err))
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// ListByEvent 返回订阅了指定事件类型的活跃端点
func (r *SubscriptionRepository) ListByEvent(ctx context.Context, event string) ([]model.Subscription, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, url, events, active, created_at
        FROM webhook_subscriptions
        WHERE active AND $1 = ANY(events)
        ORDER BY created_at ASC
    `, event)
	if err != nil {
		r.logger.Error("Failed to query subscriptions by event",
			zap.Error(err),
			zap.String("event", event),
		)
		return nil, err
	}
	defer rows.Close()

	subs := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		if err := rows.Scan(&s.ID, &s.URL, &s.Events, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *SubscriptionRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete webhook subscription",
			zap.Error(err),
			zap.Int64("subscription_id", id),
		)
		return false, err
	}

	deleted := result.RowsAffected() > 0
	if deleted {
		r.logger.Info("Webhook subscription deleted", zap.Int64("subscription_id", id))
	}
	return deleted, nil
}
