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

// ProjectFilter 项目列表过滤与分页参数
type ProjectFilter struct {
	OwnerID *int64
	Status  string
	Page    int
	Limit   int
}

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

const projectColumns = `
	id, name, description, owner_id, team_members, deadline, status, created_at, updated_at
`

// Insert 在调用方事务中写入；与 outbox 行一起提交
func (r *ProjectRepository) Insert(ctx context.Context, tx pgx.Tx, p *model.Project) error {
	r.logger.Debug("Inserting project",
		zap.String("name", p.Name),
		zap.Int64("owner_id", p.OwnerID),
	)

	query := `
        INSERT INTO projects (name, description, owner_id, team_members, deadline, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at
    `
	err := tx.QueryRow(ctx, query,
		p.Name,
		p.Description,
		p.OwnerID,
		p.TeamMembers,
		p.Deadline,
		p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert project",
			zap.Error(err),
			zap.Int64("owner_id", p.OwnerID),
		)
		return err
	}

	r.logger.Info("Project inserted successfully",
		zap.Int64("project_id", p.ID),
		zap.Int64("owner_id", p.OwnerID),
	)
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return scanProject(r.db.QueryRow(ctx, query, id))
}

// Exists 写入前的引用校验
func (r *ProjectRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check project existence",
			zap.Error(err),
			zap.Int64("project_id", id),
		)
		return false, err
	}
	return exists, nil
}

func (r *ProjectRepository) List(ctx context.Context, f ProjectFilter) ([]model.Project, int, error) {
	var conds []string
	var args []any

	if f.OwnerID != nil {
		args = append(args, *f.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM projects`+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count projects", zap.Error(err))
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	query := `SELECT ` + projectColumns + ` FROM projects` + where + `
        ORDER BY created_at ASC
        LIMIT $` + fmt.Sprint(len(args)+1) + ` OFFSET $` + fmt.Sprint(len(args)+2)
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query projects", zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			r.logger.Error("Failed to scan project row", zap.Error(err))
			return nil, 0, err
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return projects, total, nil
}

// Update 整行更新（状态除外走 UpdateStatus）；在调用方事务中执行
func (r *ProjectRepository) Update(ctx context.Context, tx pgx.Tx, p *model.Project) error {
	query := `
        UPDATE projects
        SET name = $1, description = $2, team_members = $3, deadline = $4, updated_at = NOW()
        WHERE id = $5
        RETURNING updated_at
    `
	err := tx.QueryRow(ctx, query,
		p.Name,
		p.Description,
		p.TeamMembers,
		p.Deadline,
		p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update project",
			zap.Error(err),
			zap.Int64("project_id", p.ID),
		)
		return err
	}

	r.logger.Info("Project updated", zap.Int64("project_id", p.ID))
	return nil
}

// UpdateStatus 单字段状态变更，在调用方事务中执行；
// 行不存在时返回 pgx.ErrNoRows
func (r *ProjectRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status string) (time.Time, error) {
	var updatedAt time.Time
	err := tx.QueryRow(ctx, `
        UPDATE projects
        SET status = $1, updated_at = NOW()
        WHERE id = $2
        RETURNING updated_at
    `, status, id).Scan(&updatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("Failed to update project status",
				zap.Error(err),
				zap.Int64("project_id", id),
				zap.String("status", status),
			)
		}
		return time.Time{}, err
	}

	r.logger.Info("Project status updated",
		zap.Int64("project_id", id),
		zap.String("status", status),
	)
	return updatedAt, nil
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.OwnerID,
		&p.TeamMembers,
		&p.Deadline,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.TeamMembers == nil {
		p.TeamMembers = []int64{}
	}
	return &p, nil
}
