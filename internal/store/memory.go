package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"qfleet/internal/model"
)

// Memory is the in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu         sync.Mutex
	runs       map[string]model.ComparisonReport
	runOrder   []string // insertion order, oldest first
	subs       []model.Subscription
	deliveries map[string]*memDelivery
	queue      []string // delivery ids in enqueue order
}

func NewMemory() *Memory {
	return &Memory{
		runs:       map[string]model.ComparisonReport{},
		deliveries: map[string]*memDelivery{},
	}
}

type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) SaveComparison(ctx context.Context, report model.ComparisonReport) (model.ComparisonReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.CreatedAt == "" {
		report.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if _, exists := m.runs[report.ID]; !exists {
		m.runOrder = append(m.runOrder, report.ID)
	}
	m.runs[report.ID] = report
	return report, nil
}

func (m *Memory) GetComparison(ctx context.Context, id string) (model.ComparisonReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return model.ComparisonReport{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListComparisons(ctx context.Context, cursor string, limit int) ([]model.ComparisonReport, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	// Newest first.
	start := len(m.runOrder) - 1
	if cursor != "" {
		for i := len(m.runOrder) - 1; i >= 0; i-- {
			if m.runOrder[i] == cursor {
				start = i - 1
				break
			}
		}
	}
	out := []model.ComparisonReport{}
	var next string
	for i := start; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[m.runOrder[i]])
		next = m.runOrder[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	m.subs = append(m.subs, sub)
	return sub, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Subscription{}
	for _, s := range m.subs {
		for _, e := range s.Events {
			if e == eventType || e == "*" {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	start := 0
	if cursor != "" {
		for i, s := range m.subs {
			if s.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []model.Subscription{}
	var next string
	for i := start; i < len(m.subs) && len(out) < limit; i++ {
		out = append(out, m.subs[i])
		next = m.subs[i].ID
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s.ID == id {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{
			ID:             id,
			SubscriptionID: subscriptionID,
			EventType:      eventType,
			URL:            url,
			Secret:         secret,
			Payload:        payload,
			Status:         "pending",
		},
		NextAttemptAt: time.Now(),
	}
	m.queue = append(m.queue, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.queue {
		d := m.deliveries[id]
		if d == nil || d.Status != "pending" || d.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, d.WebhookDelivery)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
	} else if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = "failed"
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}
