package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskhub/internal/model"
)

// TaskFilter 列表过滤与分页参数；nil/空值表示不过滤
type TaskFilter struct {
	ProjectID  *int64
	AssigneeID *int64
	Status     string
	Priority   string
	Page       int
	Limit      int
}

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

const taskColumns = `
	t.id, t.title, t.description, t.project_id, t.status, t.priority,
	t.due_date, t.tags, t.created_at, t.updated_at,
	u.id, u.name, u.email
`

// Insert 在调用方事务中写入；与 outbox 行一起提交
func (r *TaskRepository) Insert(ctx context.Context, tx pgx.Tx, t *model.Task) error {
	r.logger.Debug("Inserting task",
		zap.String("title", t.Title),
		zap.Int64("project_id", t.ProjectID),
		zap.String("status", t.Status),
	)

	var assigneeID *int64
	if t.Assignee != nil {
		assigneeID = &t.Assignee.ID
	}

	query := `
        INSERT INTO tasks (title, description, project_id, assignee_id, status, priority, due_date, tags)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
        RETURNING id, created_at, updated_at
    `
	err := tx.QueryRow(ctx, query,
		t.Title,
		t.Description,
		t.ProjectID,
		assigneeID,
		t.Status,
		t.Priority,
		t.DueDate,
		t.Tags,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert task",
			zap.Error(err),
			zap.Int64("project_id", t.ProjectID),
		)
		return err
	}

	r.logger.Info("Task inserted successfully",
		zap.Int64("task_id", t.ID),
		zap.Int64("project_id", t.ProjectID),
	)
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	query := `
        SELECT ` + taskColumns + `
        FROM tasks t
        LEFT JOIN users u ON u.id = t.assignee_id
        WHERE t.id = $1
    `
	row := r.db.QueryRow(ctx, query, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List 返回过滤后的分页结果与过滤集合的总数。
// 结果按创建时间升序；超出范围的页返回空集而非错误。
func (r *TaskRepository) List(ctx context.Context, f TaskFilter) ([]model.Task, int, error) {
	where, args := buildTaskWhere(f)

	var total int
	countQuery := `SELECT COUNT(*) FROM tasks t` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count tasks", zap.Error(err))
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	query := `
        SELECT ` + taskColumns + `
        FROM tasks t
        LEFT JOIN users u ON u.id = t.assignee_id` + where + `
        ORDER BY t.created_at ASC
        LIMIT $` + fmt.Sprint(len(args)+1) + ` OFFSET $` + fmt.Sprint(len(args)+2)
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query tasks", zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			r.logger.Error("Failed to scan task row", zap.Error(err))
			return nil, 0, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	r.logger.Debug("Tasks listed",
		zap.Int("count", len(tasks)),
		zap.Int("total", total),
	)
	return tasks, total, nil
}

// Update 整行更新（状态除外走 UpdateStatus）；在调用方事务中执行
func (r *TaskRepository) Update(ctx context.Context, tx pgx.Tx, t *model.Task) error {
	var assigneeID *int64
	if t.Assignee != nil {
		assigneeID = &t.Assignee.ID
	}

	query := `
        UPDATE tasks
        SET title = $1, description = $2, assignee_id = $3, priority = NULLIF($4, ''),
            due_date = $5, tags = $6, updated_at = NOW()
        WHERE id = $7
        RETURNING updated_at
    `
	err := tx.QueryRow(ctx, query,
		t.Title,
		t.Description,
		assigneeID,
		t.Priority,
		t.DueDate,
		t.Tags,
		t.ID,
	).Scan(&t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update task",
			zap.Error(err),
			zap.Int64("task_id", t.ID),
		)
		return err
	}

	r.logger.Info("Task updated", zap.Int64("task_id", t.ID))
	return nil
}

// UpdateStatus 单字段状态变更，在调用方事务中执行；
// 行不存在时返回 pgx.ErrNoRows
func (r *TaskRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status string) (time.Time, error) {
	query := `
        UPDATE tasks
        SET status = $1, updated_at = NOW()
        WHERE id = $2
        RETURNING updated_at
    `
	var updatedAt time.Time
	if err := tx.QueryRow(ctx, query, status, id).Scan(&updatedAt); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("Failed to update task status",
				zap.Error(err),
				zap.Int64("task_id", id),
				zap.String("status", status),
			)
		}
		return time.Time{}, err
	}

	r.logger.Info("Task status updated",
		zap.Int64("task_id", id),
		zap.String("status", status),
	)
	return updatedAt, nil
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	var priority *string
	var assigneeID *int64
	var assigneeName, assigneeEmail *string

	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.ProjectID,
		&t.Status,
		&priority,
		&t.DueDate,
		&t.Tags,
		&t.CreatedAt,
		&t.UpdatedAt,
		&assigneeID,
		&assigneeName,
		&assigneeEmail,
	)
	if err != nil {
		return nil, err
	}

	if priority != nil {
		t.Priority = *priority
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if assigneeID != nil {
		t.Assignee = &model.UserSummary{
			ID:    *assigneeID,
			Name:  derefString(assigneeName),
			Email: derefString(assigneeEmail),
		}
	}
	return &t, nil
}

func buildTaskWhere(f TaskFilter) (string, []any) {
	var conds []string
	var args []any

	if f.ProjectID != nil {
		args = append(args, *f.ProjectID)
		conds = append(conds, fmt.Sprintf("t.project_id = $%d", len(args)))
	}
	if f.AssigneeID != nil {
		args = append(args, *f.AssigneeID)
		conds = append(conds, fmt.Sprintf("t.assignee_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		conds = append(conds, fmt.Sprintf("t.priority = $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
