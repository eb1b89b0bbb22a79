package store

import (
	"context"
	"errors"
	"time"

	"qfleet/internal/model"
)

// Store persists comparison runs, webhook subscriptions, and the webhook
// delivery queue.
type Store interface {
	// Comparison run history
	SaveComparison(ctx context.Context, report model.ComparisonReport) (model.ComparisonReport, error)
	GetComparison(ctx context.Context, id string) (model.ComparisonReport, error)
	ListComparisons(ctx context.Context, cursor string, limit int) (items []model.ComparisonReport, nextCursor string, err error)

	// Subscriptions
	CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook delivery queue
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
}

// WebhookDelivery is one queued delivery attempt.
type WebhookDelivery struct {
	ID             string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}

var ErrNotFound = errors.New("not found")
