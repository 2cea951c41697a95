package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"taskhub/internal/apperr"
	"taskhub/internal/model"
)

// UserService 用户由外部系统供给；这里只是同步入口和只读查询
type UserService struct {
	users  UserStore
	logger *zap.Logger
}

func NewUserService(users UserStore, logger *zap.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

type CreateUserInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	if err := validateTitle("name", in.Name); err != nil {
		return nil, err
	}
	if !strings.Contains(in.Email, "@") {
		return nil, apperr.InvalidParameter("email", in.Email, "email address")
	}

	user := &model.User{Name: in.Name, Email: in.Email}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user", id)
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, page, limit int) ([]model.User, Pagination, error) {
	page, limit, err := normalizePage(page, limit)
	if err != nil {
		return nil, Pagination{}, err
	}

	users, total, err := s.users.List(ctx, page, limit)
	if err != nil {
		return nil, Pagination{}, err
	}
	return users, newPagination(page, limit, total), nil
}
