// Package store implements the Persistence write-side and the Analytics
// read-side described in the external-interfaces contract: one row per
// request, per member response, per deliberation exchange, per cost
// record, and a point-in-time snapshot of provider health. It is a thin
// layer over Postgres via sqlx/lib-pq — no business logic lives here,
// only mapping between council types and SQL rows.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/modelcouncil/council/council"
)

// Postgres wraps a sqlx.DB configured for the lib/pq driver.
type Postgres struct {
	db *sqlx.DB
}

// Open connects to Postgres at dsn and verifies the connection.
func Open(dsn string) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Schema is the DDL for every table this store writes to and reads from.
// Callers apply it once during provisioning; the store itself never runs
// migrations implicitly.
const Schema = `
CREATE TABLE IF NOT EXISTS requests (
	request_id          TEXT PRIMARY KEY,
	session_id          TEXT NOT NULL,
	query               TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT '',
	consensus_decision  TEXT NOT NULL DEFAULT '',
	total_cost          DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_latency_ms    DOUBLE PRECISION NOT NULL DEFAULT 0,
	agreement_level     DOUBLE PRECISION NOT NULL DEFAULT 0,
	config_snapshot     JSONB NOT NULL DEFAULT '{}',
	created_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS council_responses (
	id            BIGSERIAL PRIMARY KEY,
	request_id    TEXT NOT NULL REFERENCES requests(request_id),
	member_id     TEXT NOT NULL,
	round_number  INT NOT NULL,
	content       TEXT NOT NULL,
	latency_ms    DOUBLE PRECISION NOT NULL,
	prompt_tokens INT NOT NULL,
	completion_tokens INT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS deliberation_exchanges (
	id                 BIGSERIAL PRIMARY KEY,
	request_id         TEXT NOT NULL REFERENCES requests(request_id),
	round_number       INT NOT NULL,
	member_id          TEXT NOT NULL,
	content            TEXT NOT NULL DEFAULT '',
	references_to      TEXT[] NOT NULL DEFAULT '{}',
	prompt_tokens      INT NOT NULL DEFAULT 0,
	completion_tokens  INT NOT NULL DEFAULT 0,
	total_tokens       INT NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS cost_records (
	id           BIGSERIAL PRIMARY KEY,
	request_id   TEXT NOT NULL REFERENCES requests(request_id),
	provider_id  TEXT NOT NULL,
	model        TEXT NOT NULL,
	cost         DOUBLE PRECISION NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS provider_health (
	provider_id     TEXT PRIMARY KEY,
	status          TEXT NOT NULL,
	success_rate    DOUBLE PRECISION NOT NULL,
	avg_latency_ms  DOUBLE PRECISION NOT NULL,
	disabled_reason TEXT NOT NULL DEFAULT '',
	recorded_at     TIMESTAMPTZ NOT NULL
);
`

// Migrate applies Schema. Safe to call repeatedly — every statement is
// CREATE TABLE IF NOT EXISTS.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	return err
}

// ConfigSnapshot is the persisted shape of the configuration in effect for
// one request: the subset of CouncilConfig/DeliberationConfig/
// PerformanceConfig spec.md's persistence contract names, not the full
// config objects.
type ConfigSnapshot struct {
	Members              []string `json:"members"`
	DeliberationRounds   int      `json:"deliberation_rounds"`
	GlobalTimeoutSeconds float64  `json:"global_timeout_seconds"`
}

// NewConfigSnapshot builds a ConfigSnapshot from the live config objects the
// Orchestration Core resolved for a request.
func NewConfigSnapshot(councilCfg council.CouncilConfig, delibCfg council.DeliberationConfig, perfCfg council.PerformanceConfig) ConfigSnapshot {
	members := make([]string, 0, len(councilCfg.Members))
	for _, m := range councilCfg.Members {
		members = append(members, m.MemberID)
	}
	return ConfigSnapshot{
		Members:              members,
		DeliberationRounds:   delibCfg.Rounds,
		GlobalTimeoutSeconds: perfCfg.GlobalTimeoutSeconds,
	}
}

// RequestResult is the outcome of a completed (or failed) deliberation, as
// recorded in the requests row alongside the original UserRequest: spec.md
// §6's write-side contract names status, consensusDecision, totalCost,
// totalLatencyMs, agreementLevel, and configSnapshot explicitly.
type RequestResult struct {
	Status            string
	ConsensusDecision string
	TotalCost         float64
	TotalLatencyMs    float64
	AgreementLevel    float64
	Config            ConfigSnapshot
}

// SaveRequest inserts one row per inbound UserRequest together with its
// outcome. Safe to call once per request id; a retried insert is a no-op.
func (p *Postgres) SaveRequest(ctx context.Context, req council.UserRequest, result RequestResult) error {
	snapshot, err := json.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("store: marshal config snapshot: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO requests
		 (request_id, session_id, query, status, consensus_decision, total_cost, total_latency_ms, agreement_level, config_snapshot, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (request_id) DO NOTHING`,
		req.RequestID, req.SessionID, req.Query, result.Status, result.ConsensusDecision,
		result.TotalCost, result.TotalLatencyMs, result.AgreementLevel, snapshot, req.Timestamp,
	)
	return err
}

// SaveThread persists every round's exchanges as both a council_responses
// row (content/latency/usage) and a deliberation_exchanges row
// (round/member/referencesTo), for a given requestID.
func (p *Postgres) SaveThread(ctx context.Context, requestID string, thread council.DeliberationThread) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, round := range thread.Rounds {
		for _, ex := range round.Exchanges {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO council_responses
				 (request_id, member_id, round_number, content, latency_ms, prompt_tokens, completion_tokens, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				requestID, ex.CouncilMemberID, round.RoundNumber, ex.Content, 0.0,
				ex.Usage.PromptTokens, ex.Usage.CompletionTokens, now,
			); err != nil {
				return fmt.Errorf("store: insert council_response: %w", err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO deliberation_exchanges
				 (request_id, round_number, member_id, content, references_to, prompt_tokens, completion_tokens, total_tokens, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				requestID, round.RoundNumber, ex.CouncilMemberID, ex.Content, pqStringArray(ex.ReferencesTo),
				ex.Usage.PromptTokens, ex.Usage.CompletionTokens, ex.Usage.TotalTokens, now,
			); err != nil {
				return fmt.Errorf("store: insert deliberation_exchange: %w", err)
			}
		}
	}
	return tx.Commit()
}

// SaveCostRecord inserts one cost_records row.
func (p *Postgres) SaveCostRecord(ctx context.Context, requestID string, rec council.CostRecord) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO cost_records (request_id, provider_id, model, cost, created_at) VALUES ($1, $2, $3, $4, $5)`,
		requestID, rec.ProviderID, rec.Model, rec.Cost, rec.Timestamp,
	)
	return err
}

// SaveProviderHealth upserts a point-in-time snapshot of a provider's
// tracked health, for dashboards that prefer reading from Postgres over
// querying the live Health Tracker.
func (p *Postgres) SaveProviderHealth(ctx context.Context, health council.ProviderHealth) error {
	reason := health.DisabledReason
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO provider_health (provider_id, status, success_rate, avg_latency_ms, disabled_reason, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (provider_id) DO UPDATE SET
		   status = EXCLUDED.status,
		   success_rate = EXCLUDED.success_rate,
		   avg_latency_ms = EXCLUDED.avg_latency_ms,
		   disabled_reason = EXCLUDED.disabled_reason,
		   recorded_at = EXCLUDED.recorded_at`,
		health.ProviderID, string(health.Status), health.SuccessRate, health.AvgLatencyMs, reason, time.Now(),
	)
	return err
}

// CostRecordsInRange returns every cost_records row with created_at
// between from and to, for the Analytics Core's read-side cost queries.
func (p *Postgres) CostRecordsInRange(ctx context.Context, from, to time.Time) ([]council.CostRecord, error) {
	rows, err := p.db.QueryxContext(ctx,
		`SELECT request_id, provider_id, model, cost, created_at FROM cost_records WHERE created_at BETWEEN $1 AND $2`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query cost_records: %w", err)
	}
	defer rows.Close()

	var out []council.CostRecord
	for rows.Next() {
		var r council.CostRecord
		if err := rows.Scan(&r.RequestID, &r.ProviderID, &r.Model, &r.Cost, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan cost_record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// pqStringArray renders a Go string slice as a Postgres TEXT[] literal.
func pqStringArray(ss []string) string {
	if len(ss) == 0 {
		return "{}"
	}
	out := "{"
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += `"` + s + `"`
	}
	return out + "}"
}
