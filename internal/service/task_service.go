package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	mqcontracts "taskhub/contracts/mq"
	"taskhub/internal/apperr"
	"taskhub/internal/model"
	"taskhub/internal/repository"
)

type TaskService struct {
	db       TxBeginner
	tasks    TaskStore
	projects ProjectStore
	users    UserStore
	events   EventEmitter
	logger   *zap.Logger
}

func NewTaskService(
	db TxBeginner,
	tasks TaskStore,
	projects ProjectStore,
	users UserStore,
	events EventEmitter,
	logger *zap.Logger,
) *TaskService {
	return &TaskService{
		db:       db,
		tasks:    tasks,
		projects: projects,
		users:    users,
		events:   events,
		logger:   logger,
	}
}

// CreateTaskInput 创建任务的请求体。DueDate 保持原始文本，
// 格式校验在这里完成以便错误能带上原始值。
type CreateTaskInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ProjectID   int64    `json:"project_id"`
	AssigneeID  *int64   `json:"assignee_id"`
	Priority    string   `json:"priority"`
	DueDate     string   `json:"due_date"`
	Tags        []string `json:"tags"`
}

// OptionalID 区分三种取值：字段缺省（Set=false，保持不变）、
// 显式 null（Set=true Valid=false，清除引用）、给定 ID。
type OptionalID struct {
	Set   bool
	Valid bool
	Value int64
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

type UpdateTaskInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	AssigneeID  OptionalID `json:"assignee_id"`
	Priority    *string    `json:"priority"`
	DueDate     *string    `json:"due_date"`
	Tags        *[]string  `json:"tags"`
}

type ListTasksInput struct {
	ProjectID  *int64
	AssigneeID *int64
	Status     string
	Priority   string
	Page       int
	Limit      int
}

// taskSnapshot 事件 data：任务快照，完成事件额外携带操作者
type taskSnapshot struct {
	*model.Task
	CompletedBy string `json:"completed_by,omitempty"`
}

// Create 校验全部通过后才落库（无部分写入）；任务行与 task.created
// 的 outbox 行在同一事务提交。未指定状态为 todo，优先级缺省为空。
func (s *TaskService) Create(ctx context.Context, in CreateTaskInput) (*model.Task, error) {
	if err := validateTitle("title", in.Title); err != nil {
		return nil, err
	}
	if in.Priority != "" && !model.ValidTaskPriority(in.Priority) {
		return nil, apperr.InvalidParameter("priority", in.Priority, "one of: low, medium, high, urgent")
	}

	task := &model.Task{
		Title:       in.Title,
		Description: in.Description,
		ProjectID:   in.ProjectID,
		Status:      model.TaskStatusTodo,
		Priority:    in.Priority,
		Tags:        normalizeTags(in.Tags),
	}

	if in.DueDate != "" {
		due, err := parseTimestamp("due_date", in.DueDate)
		if err != nil {
			return nil, err
		}
		task.DueDate = due
	}

	exists, err := s.projects.Exists(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.InvalidReference("project_id", in.ProjectID)
	}

	// assignee 解析为完整摘要，随响应返回
	if in.AssigneeID != nil {
		assignee, err := s.users.GetByID(ctx, *in.AssigneeID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.InvalidReference("assignee_id", *in.AssigneeID)
			}
			return nil, err
		}
		task.Assignee = assignee.Summary()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.tasks.Insert(ctx, tx, task); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, tx, mqcontracts.EventTaskCreated, task, ""); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, id int64) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("task", id)
		}
		return nil, err
	}
	return task, nil
}

func (s *TaskService) List(ctx context.Context, in ListTasksInput) ([]model.Task, Pagination, error) {
	page, limit, err := normalizePage(in.Page, in.Limit)
	if err != nil {
		return nil, Pagination{}, err
	}
	if in.Status != "" && !model.ValidTaskStatus(in.Status) {
		return nil, Pagination{}, apperr.InvalidParameter("status", in.Status, "one of: todo, in_progress, in_review, completed, cancelled")
	}
	if in.Priority != "" && !model.ValidTaskPriority(in.Priority) {
		return nil, Pagination{}, apperr.InvalidParameter("priority", in.Priority, "one of: low, medium, high, urgent")
	}

	tasks, total, err := s.tasks.List(ctx, repository.TaskFilter{
		ProjectID:  in.ProjectID,
		AssigneeID: in.AssigneeID,
		Status:     in.Status,
		Priority:   in.Priority,
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		return nil, Pagination{}, err
	}

	return tasks, newPagination(page, limit, total), nil
}

// Update 部分字段更新；返回完整的更新后资源并发出 task.updated
func (s *TaskService) Update(ctx context.Context, id int64, in UpdateTaskInput) (*model.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if err := validateTitle("title", *in.Title); err != nil {
			return nil, err
		}
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Priority != nil {
		if *in.Priority != "" && !model.ValidTaskPriority(*in.Priority) {
			return nil, apperr.InvalidParameter("priority", *in.Priority, "one of: low, medium, high, urgent")
		}
		task.Priority = *in.Priority
	}
	if in.DueDate != nil {
		if *in.DueDate == "" {
			task.DueDate = nil
		} else {
			due, err := parseTimestamp("due_date", *in.DueDate)
			if err != nil {
				return nil, err
			}
			task.DueDate = due
		}
	}
	if in.Tags != nil {
		task.Tags = normalizeTags(*in.Tags)
	}
	// assignee_id 显式传 null 表示取消指派
	if in.AssigneeID.Set {
		if !in.AssigneeID.Valid {
			task.Assignee = nil
		} else {
			assignee, err := s.users.GetByID(ctx, in.AssigneeID.Value)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, apperr.InvalidReference("assignee_id", in.AssigneeID.Value)
				}
				return nil, err
			}
			task.Assignee = assignee.Summary()
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.tasks.Update(ctx, tx, task); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, tx, mqcontracts.EventTaskUpdated, task, ""); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateStatus 单字段状态变更。文档化契约不限定状态迁移图，
// 任何枚举值都可设置。新状态为 completed 时发出 task.completed
// 并携带操作者，否则发出 task.updated。
func (s *TaskService) UpdateStatus(ctx context.Context, id int64, status, actor string) (*model.Task, error) {
	if !model.ValidTaskStatus(status) {
		return nil, apperr.InvalidParameter("status", status, "one of: todo, in_progress, in_review, completed, cancelled")
	}

	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	updatedAt, err := s.tasks.UpdateStatus(ctx, tx, id, status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("task", id)
		}
		return nil, err
	}
	task.Status = status
	task.UpdatedAt = updatedAt

	if status == model.TaskStatusCompleted {
		err = s.emit(ctx, tx, mqcontracts.EventTaskCompleted, task, actor)
	} else {
		err = s.emit(ctx, tx, mqcontracts.EventTaskUpdated, task, "")
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

// emit 在业务事务中写 outbox 行；写入失败时整个变更回滚，
// 保证提交成功的变更必有对应事件
func (s *TaskService) emit(ctx context.Context, tx pgx.Tx, event string, task *model.Task, completedBy string) error {
	payload := taskSnapshot{Task: task, CompletedBy: completedBy}
	if err := s.events.EmitInTx(ctx, tx, "task", &task.ID, event, payload); err != nil {
		s.logger.Error("Failed to record task event",
			zap.String("event", event),
			zap.Int64("task_id", task.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
