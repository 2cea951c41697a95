package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	mqcontracts "taskhub/contracts/mq"
	"taskhub/internal/model"
	"taskhub/internal/webhook"
	"taskhub/pkg/util"
)

const maxLoadRetries = 3

// SubscriptionSource 按事件类型查找活跃订阅
type SubscriptionSource interface {
	ListByEvent(ctx context.Context, event string) ([]model.Subscription, error)
}

// Deliverer 向单个订阅端点投递
type Deliverer interface {
	Deliver(ctx context.Context, sub model.Subscription, p webhook.Payload) error
}

// DLQPublisher 投递彻底失败后的去处
type DLQPublisher interface {
	PublishToDLQ(routingKey string, payload []byte, originalError string) error
}

// WebhookEventHandler 消费领域事件并扇出到 webhook 订阅者。
// 投递失败在 Deliverer 内部有界重试，永远不会传回触发方。
type WebhookEventHandler struct {
	subs      SubscriptionSource
	deliverer Deliverer
	deduper   *util.Deduper
	retries   *util.RetryCounter
	dlq       DLQPublisher
	logger    *zap.Logger
}

func NewWebhookEventHandler(
	subs SubscriptionSource,
	deliverer Deliverer,
	deduper *util.Deduper,
	retries *util.RetryCounter,
	dlq DLQPublisher,
	logger *zap.Logger,
) *WebhookEventHandler {
	return &WebhookEventHandler{
		subs:      subs,
		deliverer: deliverer,
		deduper:   deduper,
		retries:   retries,
		dlq:       dlq,
		logger:    logger,
	}
}

// Handle 处理一条事件消息
func (h *WebhookEventHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic in webhook event handler", zap.Any("panic", r))
		}
	}()

	var msg mqcontracts.EventMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		// JSON decode 错误 - 不可重试
		h.logger.Error("Failed to unmarshal event message (non-retryable)", zap.Error(err))
		return nil // 返回 nil，让 consumer ack 掉
	}

	if !mqcontracts.KnownEvent(msg.Event) {
		h.logger.Warn("Unknown event type, skipping",
			zap.String("event", msg.Event),
			zap.Int64("event_id", msg.EventID),
		)
		return nil
	}

	subs, err := h.subs.ListByEvent(ctx, msg.Event)
	if err != nil {
		isRetryable, errType := util.IsRetryableError(err)
		h.logger.Error("Failed to load subscriptions",
			zap.Int64("event_id", msg.EventID),
			zap.String("event", msg.Event),
			zap.String("error_type", errType),
			zap.Bool("retryable", isRetryable),
			zap.Error(err),
		)
		if !isRetryable {
			return nil
		}

		// 可重试错误也有上限，超过后进 DLQ
		count, cntErr := h.retries.IncrementAndGet(ctx, util.FormatRetryKey("webhook", msg.EventID))
		if cntErr == nil && !util.ShouldRetry(count, maxLoadRetries, true) {
			h.toDLQ(msg, raw, err.Error())
			return nil
		}
		return err // nack 重新入队
	}

	if len(subs) == 0 {
		return nil
	}

	// Redis 去重：MQ 重投时避免重复投递
	if !h.deduper.AcquireOnce(ctx, "webhook", msg.EventID) {
		return nil
	}

	payload := webhook.Payload{
		Event:     msg.Event,
		Timestamp: msg.Timestamp,
		Data:      msg.Data,
	}

	for _, sub := range subs {
		if err := h.deliverer.Deliver(ctx, sub, payload); err != nil {
			// 重试额度已在 Deliverer 内耗尽：记录并进 DLQ，不再向上传播
			h.logger.Error("Webhook delivery exhausted",
				zap.Int64("event_id", msg.EventID),
				zap.Int64("subscription_id", sub.ID),
				zap.String("url", sub.URL),
				zap.String("event", msg.Event),
				zap.Error(err),
			)
			h.toDLQ(msg, raw, err.Error())
		}
	}

	return nil
}

func (h *WebhookEventHandler) toDLQ(msg mqcontracts.EventMessage, raw json.RawMessage, reason string) {
	if err := h.dlq.PublishToDLQ(msg.Event, raw, reason); err != nil {
		h.logger.Error("Failed to publish to DLQ",
			zap.Int64("event_id", msg.EventID),
			zap.String("event", msg.Event),
			zap.Error(err),
		)
	}
}
