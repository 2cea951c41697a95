package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	mqcontracts "taskhub/contracts/mq"
	"taskhub/internal/apperr"
	"taskhub/internal/model"
)

type SubscriptionService struct {
	subs   SubscriptionStore
	logger *zap.Logger
}

func NewSubscriptionService(subs SubscriptionStore, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{subs: subs, logger: logger}
}

type CreateSubscriptionInput struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

func (s *SubscriptionService) Create(ctx context.Context, in CreateSubscriptionInput) (*model.Subscription, error) {
	u, err := url.Parse(in.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperr.InvalidParameter("url", in.URL, "absolute http(s) URL")
	}

	if len(in.Events) == 0 {
		return nil, apperr.InvalidParameter("events", "", "non-empty list of event types")
	}
	for _, event := range in.Events {
		if !mqcontracts.KnownEvent(event) {
			return nil, apperr.InvalidParameter("events", event,
				"one of: "+strings.Join([]string{
					mqcontracts.EventTaskCreated,
					mqcontracts.EventTaskUpdated,
					mqcontracts.EventTaskCompleted,
					mqcontracts.EventProjectCreated,
					mqcontracts.EventProjectCompleted,
				}, ", "))
		}
	}

	sub := &model.Subscription{
		URL:    in.URL,
		Events: in.Events,
		Active: true,
	}
	if err := s.subs.Insert(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubscriptionService) Get(ctx context.Context, id int64) (*model.Subscription, error) {
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("webhook", id)
		}
		return nil, err
	}
	return sub, nil
}

func (s *SubscriptionService) List(ctx context.Context) ([]model.Subscription, error) {
	return s.subs.List(ctx)
}

func (s *SubscriptionService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.subs.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFound("webhook", id)
	}
	return nil
}
