package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	mqcontracts "taskhub/contracts/mq"
	"taskhub/internal/apperr"
	"taskhub/internal/model"
	"taskhub/internal/repository"
)

type ProjectService struct {
	db       TxBeginner
	projects ProjectStore
	users    UserStore
	events   EventEmitter
	logger   *zap.Logger
}

func NewProjectService(
	db TxBeginner,
	projects ProjectStore,
	users UserStore,
	events EventEmitter,
	logger *zap.Logger,
) *ProjectService {
	return &ProjectService{
		db:       db,
		projects: projects,
		users:    users,
		events:   events,
		logger:   logger,
	}
}

type CreateProjectInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	OwnerID     int64   `json:"owner_id"`
	TeamMembers []int64 `json:"team_members"`
	Deadline    string  `json:"deadline"`
}

type UpdateProjectInput struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	TeamMembers *[]int64 `json:"team_members"`
	Deadline    *string  `json:"deadline"`
}

type ListProjectsInput struct {
	OwnerID *int64
	Status  string
	Page    int
	Limit   int
}

func (s *ProjectService) Create(ctx context.Context, in CreateProjectInput) (*model.Project, error) {
	if err := validateTitle("name", in.Name); err != nil {
		return nil, err
	}

	project := &model.Project{
		Name:        in.Name,
		Description: in.Description,
		OwnerID:     in.OwnerID,
		TeamMembers: in.TeamMembers,
		Status:      model.ProjectStatusActive,
	}
	if project.TeamMembers == nil {
		project.TeamMembers = []int64{}
	}

	if in.Deadline != "" {
		deadline, err := parseTimestamp("deadline", in.Deadline)
		if err != nil {
			return nil, err
		}
		project.Deadline = deadline
	}

	if err := s.checkUserRef(ctx, "owner_id", in.OwnerID); err != nil {
		return nil, err
	}
	for _, memberID := range project.TeamMembers {
		if err := s.checkUserRef(ctx, "team_members", memberID); err != nil {
			return nil, err
		}
	}

	// 项目行与 project.created 的 outbox 行在同一事务提交
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.projects.Insert(ctx, tx, project); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, tx, mqcontracts.EventProjectCreated, project); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) Get(ctx context.Context, id int64) (*model.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("project", id)
		}
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) List(ctx context.Context, in ListProjectsInput) ([]model.Project, Pagination, error) {
	page, limit, err := normalizePage(in.Page, in.Limit)
	if err != nil {
		return nil, Pagination{}, err
	}
	if in.Status != "" && !model.ValidProjectStatus(in.Status) {
		return nil, Pagination{}, apperr.InvalidParameter("status", in.Status, "one of: active, completed, cancelled")
	}

	projects, total, err := s.projects.List(ctx, repository.ProjectFilter{
		OwnerID: in.OwnerID,
		Status:  in.Status,
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		return nil, Pagination{}, err
	}

	return projects, newPagination(page, limit, total), nil
}

func (s *ProjectService) Update(ctx context.Context, id int64, in UpdateProjectInput) (*model.Project, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if err := validateTitle("name", *in.Name); err != nil {
			return nil, err
		}
		project.Name = *in.Name
	}
	if in.Description != nil {
		project.Description = *in.Description
	}
	if in.Deadline != nil {
		if *in.Deadline == "" {
			project.Deadline = nil
		} else {
			deadline, err := parseTimestamp("deadline", *in.Deadline)
			if err != nil {
				return nil, err
			}
			project.Deadline = deadline
		}
	}
	if in.TeamMembers != nil {
		for _, memberID := range *in.TeamMembers {
			if err := s.checkUserRef(ctx, "team_members", memberID); err != nil {
				return nil, err
			}
		}
		project.TeamMembers = *in.TeamMembers
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.projects.Update(ctx, tx, project); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return project, nil
}

// UpdateStatus 项目状态变更；completed 时在同一事务里写入
// project.completed 的 outbox 行
func (s *ProjectService) UpdateStatus(ctx context.Context, id int64, status string) (*model.Project, error) {
	if !model.ValidProjectStatus(status) {
		return nil, apperr.InvalidParameter("status", status, "one of: active, completed, cancelled")
	}

	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	updatedAt, err := s.projects.UpdateStatus(ctx, tx, id, status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("project", id)
		}
		return nil, err
	}
	project.Status = status
	project.UpdatedAt = updatedAt

	if status == model.ProjectStatusCompleted {
		if err := s.emit(ctx, tx, mqcontracts.EventProjectCompleted, project); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) checkUserRef(ctx context.Context, parameter string, userID int64) error {
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.InvalidReference(parameter, userID)
	}
	return nil
}

// emit 在业务事务中写 outbox 行；写入失败时整个变更回滚
func (s *ProjectService) emit(ctx context.Context, tx pgx.Tx, event string, project *model.Project) error {
	if err := s.events.EmitInTx(ctx, tx, "project", &project.ID, event, project); err != nil {
		s.logger.Error("Failed to record project event",
			zap.String("event", event),
			zap.Int64("project_id", project.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
