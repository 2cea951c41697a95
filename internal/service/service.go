package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"taskhub/internal/model"
	"taskhub/internal/repository"
)

// 服务层通过接口依赖存储，pgx 实现在 internal/repository。
// 变更操作带 tx：实体写入与 outbox 行必须在同一事务中提交。

// TxBeginner 开启数据库事务；*pgxpool.Pool 满足该接口
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type TaskStore interface {
	Insert(ctx context.Context, tx pgx.Tx, t *model.Task) error
	GetByID(ctx context.Context, id int64) (*model.Task, error)
	List(ctx context.Context, f repository.TaskFilter) ([]model.Task, int, error)
	Update(ctx context.Context, tx pgx.Tx, t *model.Task) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status string) (time.Time, error)
}

type ProjectStore interface {
	Insert(ctx context.Context, tx pgx.Tx, p *model.Project) error
	GetByID(ctx context.Context, id int64) (*model.Project, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, f repository.ProjectFilter) ([]model.Project, int, error)
	Update(ctx context.Context, tx pgx.Tx, p *model.Project) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status string) (time.Time, error)
}

type UserStore interface {
	Insert(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, page, limit int) ([]model.User, int, error)
}

type SubscriptionStore interface {
	Insert(ctx context.Context, s *model.Subscription) error
	GetByID(ctx context.Context, id int64) (*model.Subscription, error)
	List(ctx context.Context) ([]model.Subscription, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// EventEmitter 在调用方事务中写入 outbox 行；发布由 dispatcher 异步完成
type EventEmitter interface {
	EmitInTx(ctx context.Context, tx pgx.Tx, aggregateType string, aggregateID *int64, routingKey string, payload interface{}) error
}

// Pagination 列表响应中的分页元数据
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func newPagination(page, limit, total int) Pagination {
	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}
