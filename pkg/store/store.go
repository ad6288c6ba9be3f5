// Package store persists performance statistics and tenant CRM data in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zen-systems/taskgate/pkg/complexity"
	"github.com/zen-systems/taskgate/pkg/config"
	"github.com/zen-systems/taskgate/pkg/perf"
	"github.com/zen-systems/taskgate/pkg/task"

	_ "modernc.org/sqlite"
)

// Interaction is one prior exchange with a contact.
type Interaction struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Contact   string    `json:"contact"`
	Subject   string    `json:"subject"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Entity is a CRM record tied to a tenant: a customer, order, or account.
type Entity struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenant_id"`
	Name       string            `json:"name"`
	Kind       string            `json:"kind"`
	Attributes map[string]string `json:"attributes"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Pattern is a learned handling pattern for a tenant and task type.
type Pattern struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	TaskType    task.Type `json:"task_type"`
	Description string    `json:"description"`
	Weight      float64   `json:"weight"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is a SQLite-backed persistence layer.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS performance (
		model TEXT NOT NULL,
		task_type TEXT NOT NULL,
		class TEXT NOT NULL,
		success_rate REAL NOT NULL,
		avg_latency_ms REAL NOT NULL,
		satisfaction REAL NOT NULL,
		observations INTEGER NOT NULL,
		rated INTEGER NOT NULL,
		last_updated TIMESTAMP NOT NULL,
		PRIMARY KEY (model, task_type, class)
	);

	CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		contact TEXT NOT NULL,
		subject TEXT,
		summary TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_tenant_contact
		ON interactions(tenant_id, contact, created_at);

	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		attributes TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entities_tenant_name ON entities(tenant_id, name);

	CREATE TABLE IF NOT EXISTS patterns (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		task_type TEXT NOT NULL,
		description TEXT NOT NULL,
		weight REAL DEFAULT 1.0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_patterns_tenant_type ON patterns(tenant_id, task_type);

	CREATE TABLE IF NOT EXISTS tenant_rules (
		tenant_id TEXT PRIMARY KEY,
		config TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SavePerformance writes every record, replacing prior rows for the same key.
func (s *Store) SavePerformance(ctx context.Context, records map[perf.Key]perf.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO performance (model, task_type, class, success_rate, avg_latency_ms, satisfaction, observations, rated, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(model, task_type, class) DO UPDATE SET
			success_rate = excluded.success_rate,
			avg_latency_ms = excluded.avg_latency_ms,
			satisfaction = excluded.satisfaction,
			observations = excluded.observations,
			rated = excluded.rated,
			last_updated = excluded.last_updated
	`
	for key, rec := range records {
		_, err := tx.ExecContext(ctx, query,
			key.Model, string(key.TaskType), string(key.Class),
			rec.SuccessRate, rec.AvgLatencyMs, rec.Satisfaction,
			rec.Observations, rec.Rated, rec.LastUpdated,
		)
		if err != nil {
			return fmt.Errorf("failed to save performance record: %w", err)
		}
	}
	return tx.Commit()
}

// LoadPerformance reads every persisted performance record.
func (s *Store) LoadPerformance(ctx context.Context) (map[perf.Key]perf.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model, task_type, class, success_rate, avg_latency_ms, satisfaction, observations, rated, last_updated
		FROM performance
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load performance records: %w", err)
	}
	defer rows.Close()

	out := make(map[perf.Key]perf.Record)
	for rows.Next() {
		var key perf.Key
		var rec perf.Record
		var taskType, class string
		if err := rows.Scan(
			&key.Model, &taskType, &class,
			&rec.SuccessRate, &rec.AvgLatencyMs, &rec.Satisfaction,
			&rec.Observations, &rec.Rated, &rec.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan performance record: %w", err)
		}
		key.TaskType = task.Type(taskType)
		key.Class = complexity.Class(class)
		out[key] = rec
	}
	return out, rows.Err()
}

// RecordInteraction appends one exchange to a contact's history.
func (s *Store) RecordInteraction(ctx context.Context, in Interaction) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, tenant_id, contact, subject, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, in.ID, in.TenantID, in.Contact, in.Subject, in.Summary, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}
	return nil
}

// RecentInteractions returns the newest interactions for a tenant's contact.
func (s *Store) RecentInteractions(ctx context.Context, tenantID, contact string, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, contact, subject, summary, created_at
		FROM interactions
		WHERE tenant_id = ? AND contact = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, tenantID, contact, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		if err := rows.Scan(&in.ID, &in.TenantID, &in.Contact, &in.Subject, &in.Summary, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// SaveEntity inserts or updates a CRM entity.
func (s *Store) SaveEntity(ctx context.Context, e Entity) error {
	attrs, err := json.Marshal(e.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (id, tenant_id, name, kind, attributes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			attributes = excluded.attributes,
			updated_at = excluded.updated_at
	`, e.ID, e.TenantID, e.Name, e.Kind, string(attrs), e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}
	return nil
}

// EntitiesFor returns entities whose name contains the given term.
func (s *Store) EntitiesFor(ctx context.Context, tenantID, term string, limit int) ([]Entity, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, kind, attributes, updated_at
		FROM entities
		WHERE tenant_id = ? AND name LIKE ?
		ORDER BY updated_at DESC
		LIMIT ?
	`, tenantID, "%"+term+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var e Entity
		var attrs sql.NullString
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Name, &e.Kind, &attrs, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		if attrs.Valid && attrs.String != "" {
			if err := json.Unmarshal([]byte(attrs.String), &e.Attributes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveTenantConfig persists one tenant's preference configuration.
func (s *Store) SaveTenantConfig(ctx context.Context, tenantID string, tc config.TenantConfig) error {
	blob, err := json.Marshal(tc)
	if err != nil {
		return fmt.Errorf("failed to marshal tenant config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenant_rules (tenant_id, config, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			config = excluded.config,
			updated_at = excluded.updated_at
	`, tenantID, string(blob), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save tenant config: %w", err)
	}
	return nil
}

// LoadTenantConfigs reads every persisted tenant configuration.
func (s *Store) LoadTenantConfigs(ctx context.Context) (map[string]config.TenantConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id, config FROM tenant_rules`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant configs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]config.TenantConfig)
	for rows.Next() {
		var tenantID, blob string
		if err := rows.Scan(&tenantID, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan tenant config: %w", err)
		}
		var tc config.TenantConfig
		if err := json.Unmarshal([]byte(blob), &tc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tenant config for %q: %w", tenantID, err)
		}
		out[tenantID] = tc
	}
	return out, rows.Err()
}

// SavePattern stores a learned pattern.
func (s *Store) SavePattern(ctx context.Context, p Pattern) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patterns (id, tenant_id, task_type, description, weight, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			weight = excluded.weight
	`, p.ID, p.TenantID, string(p.TaskType), p.Description, p.Weight, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save pattern: %w", err)
	}
	return nil
}

// PatternsFor returns the heaviest patterns for a tenant and task type.
func (s *Store) PatternsFor(ctx context.Context, tenantID string, taskType task.Type, limit int) ([]Pattern, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, task_type, description, weight, created_at
		FROM patterns
		WHERE tenant_id = ? AND task_type = ?
		ORDER BY weight DESC
		LIMIT ?
	`, tenantID, string(taskType), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var out []Pattern
	for rows.Next() {
		var p Pattern
		var taskType string
		if err := rows.Scan(&p.ID, &p.TenantID, &taskType, &p.Description, &p.Weight, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		p.TaskType = task.Type(taskType)
		out = append(out, p)
	}
	return out, rows.Err()
}
