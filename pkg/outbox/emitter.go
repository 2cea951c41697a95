package outbox

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InsertEventInTx 在事务中插入事件到 outbox（辅助函数）
func InsertEventInTx(
	ctx context.Context,
	tx pgx.Tx,
	repo *Repository,
	aggregateType string,
	aggregateID *int64,
	routingKey string,
	payload interface{},
) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        "pending",
	}

	return repo.InsertEvent(ctx, tx, event)
}

// Emitter 为业务服务提供事件写入入口
type Emitter struct {
	repo *Repository
}

func NewEmitter(db *pgxpool.Pool) *Emitter {
	return &Emitter{repo: NewRepository(db)}
}

// EmitInTx 在调用方事务中写入 outbox 行，与业务写入一起提交或回滚；
// 实际发布由 Dispatcher 异步完成
func (e *Emitter) EmitInTx(ctx context.Context, tx pgx.Tx, aggregateType string, aggregateID *int64, routingKey string, payload interface{}) error {
	return InsertEventInTx(ctx, tx, e.repo, aggregateType, aggregateID, routingKey, payload)
}
