package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"qfleet/internal/model"
)

// Postgres persists runs and webhook state via database/sql over the pgx
// stdlib driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Ping reports database connectivity for readiness checks.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate creates the schema if missing. Dev helper; production runs
// migrations out of band.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS comparisons (
			id TEXT PRIMARY KEY,
			report JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			events TEXT[] NOT NULL,
			secret TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_deliveries (
			id TEXT PRIMARY KEY,
			subscription_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			url TEXT NOT NULL,
			secret TEXT NOT NULL DEFAULT '',
			payload BYTEA NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INT NOT NULL DEFAULT 0,
			next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_error TEXT NOT NULL DEFAULT '',
			response_code INT NOT NULL DEFAULT 0,
			latency_ms INT NOT NULL DEFAULT 0,
			delivered_at TIMESTAMPTZ
		)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) SaveComparison(ctx context.Context, report model.ComparisonReport) (model.ComparisonReport, error) {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.CreatedAt == "" {
		report.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(report)
	if err != nil {
		return model.ComparisonReport{}, err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO comparisons (id, report) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET report = EXCLUDED.report`,
		report.ID, body)
	if err != nil {
		return model.ComparisonReport{}, err
	}
	return report, nil
}

func (p *Postgres) GetComparison(ctx context.Context, id string) (model.ComparisonReport, error) {
	var body []byte
	err := p.db.QueryRowContext(ctx, `SELECT report FROM comparisons WHERE id=$1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ComparisonReport{}, ErrNotFound
	}
	if err != nil {
		return model.ComparisonReport{}, err
	}
	var report model.ComparisonReport
	if err := json.Unmarshal(body, &report); err != nil {
		return model.ComparisonReport{}, err
	}
	return report, nil
}

func (p *Postgres) ListComparisons(ctx context.Context, cursor string, limit int) ([]model.ComparisonReport, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var (
		rows *sql.Rows
		err  error
	)
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx,
			`SELECT report FROM comparisons
			 WHERE created_at < (SELECT created_at FROM comparisons WHERE id=$1)
			 ORDER BY created_at DESC LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx,
			`SELECT report FROM comparisons ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	out := []model.ComparisonReport{}
	var last string
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, "", err
		}
		var report model.ComparisonReport
		if err := json.Unmarshal(body, &report); err != nil {
			return nil, "", err
		}
		out = append(out, report)
		last = report.ID
	}
	var next string
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	events, err := json.Marshal(sub.Events)
	if err != nil {
		return model.Subscription{}, err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, url, events, secret)
		 VALUES ($1, $2, (SELECT array_agg(e) FROM jsonb_array_elements_text($3::jsonb) e), $4)`,
		sub.ID, sub.URL, events, sub.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, url, events, secret FROM subscriptions WHERE $1 = ANY(events) OR '*' = ANY(events)`, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (p *Postgres) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var (
		rows *sql.Rows
		err  error
	)
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx,
			`SELECT id, url, events, secret FROM subscriptions WHERE id > $1 ORDER BY id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx,
			`SELECT id, url, events, secret FROM subscriptions ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	subs, err := scanSubscriptions(rows)
	if err != nil {
		return nil, "", err
	}
	var next string
	if len(subs) == limit {
		next = subs[len(subs)-1].ID
	}
	return subs, next, nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
	out := []model.Subscription{}
	for rows.Next() {
		var (
			s      model.Subscription
			events []byte
		)
		if err := rows.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil {
			return nil, err
		}
		s.Events = parseTextArray(events)
		out = append(out, s)
	}
	return out, rows.Err()
}

// parseTextArray decodes the wire form of a Postgres text[] column,
// e.g. {run.completed,"run.failed"}.
func parseTextArray(raw []byte) []string {
	s := string(raw)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil
	}
	s = s[1 : len(s)-1]
	if s == "" {
		return []string{}
	}
	parts := []string{}
	cur := make([]rune, 0, len(s))
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ',' && !inQuote:
			parts = append(parts, string(cur))
			cur = cur[:0]
		default:
			cur = append(cur, r)
		}
	}
	parts = append(parts, string(cur))
	return parts
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		id, subscriptionID, eventType, url, secret, payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, subscription_id, event_type, url, secret, payload, status, attempts
		 FROM webhook_deliveries
		 WHERE status='pending' AND next_attempt_at <= now()
		 ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx,
			`UPDATE webhook_deliveries
			 SET status='delivered', attempts=attempts+1, last_error=$2, response_code=$3, latency_ms=$4, delivered_at=now()
			 WHERE id=$1`, id, lastError, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries
		 SET attempts=attempts+1, next_attempt_at=$2, last_error=$3, response_code=$4, latency_ms=$5
		 WHERE id=$1`, id, nextAttemptAt, lastError, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries
		 SET status='failed', attempts=attempts+1, last_error=$2, response_code=$3, latency_ms=$4
		 WHERE id=$1`, id, lastError, responseCode, latencyMs)
	return err
}
