// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/docbox/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/docbox/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// Store persists state vectors in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL with query tracing, applies the schema, and
// returns a ready Store.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const vectorColumns = `id, source_message_id, origin_id, intent_label, risk_score,
	context_blob, summary, owner_role, deadline_at, lifecycle_state, created_at, updated_at`

// Create inserts a new state vector. A unique violation on the source
// message id maps to triage.ErrDuplicateSource.
func (s *Store) Create(ctx context.Context, v *triage.StateVector) error {
	ctx, span := s.start(ctx, "pgstore.Create", "INSERT")
	defer span.End()

	blob, err := json.Marshal(v.Context)
	if err != nil {
		return s.fail(span, fmt.Errorf("marshal context blob: %w", err))
	}

	query := `INSERT INTO state_vectors (` + vectorColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err = s.pool.Exec(ctx, query,
		v.ID, v.SourceMessageID, v.OriginID, string(v.Intent), v.RiskScore,
		blob, nullString(v.Summary), nullString(v.OwnerRole), v.DeadlineAt,
		string(v.Lifecycle), v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return triage.ErrDuplicateSource
		}
		return s.fail(span, fmt.Errorf("insert state vector: %w", err))
	}
	return nil
}

// Get retrieves a state vector by internal id.
func (s *Store) Get(ctx context.Context, id string) (*triage.StateVector, bool, error) {
	ctx, span := s.start(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	query := `SELECT ` + vectorColumns + ` FROM state_vectors WHERE id = $1`
	v, err := scanVectorRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, false, s.fail(span, err)
	}
	if v == nil {
		return nil, false, nil
	}
	return v, true, nil
}

// ListOpen returns all vectors in an open lifecycle state, optionally
// restricted to an owner role or origin id.
func (s *Store) ListOpen(ctx context.Context, ownerFilter string) ([]*triage.StateVector, error) {
	ctx, span := s.start(ctx, "pgstore.ListOpen", "SELECT")
	defer span.End()

	query := `SELECT ` + vectorColumns + ` FROM state_vectors
		WHERE lifecycle_state = ANY($1)`
	args := []any{[]string{
		string(triage.LifecycleNeedsReply),
		string(triage.LifecycleWaiting),
		string(triage.LifecycleOverdue),
	}}
	if ownerFilter != "" {
		query += ` AND (owner_role = $2 OR origin_id = $2)`
		args = append(args, ownerFilter)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("query open vectors: %w", err))
	}
	defer rows.Close()

	var out []*triage.StateVector
	for rows.Next() {
		v, err := scanVectorRow(rows)
		if err != nil {
			return nil, s.fail(span, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(span, fmt.Errorf("iterate open vectors: %w", err))
	}
	return out, nil
}

// UpdateLifecycle sets lifecycle state and owner, bumping updated_at.
// Returns ok=false when the id is unknown.
func (s *Store) UpdateLifecycle(ctx context.Context, id string, state triage.LifecycleState, ownerRole string) (*triage.StateVector, bool, error) {
	ctx, span := s.start(ctx, "pgstore.UpdateLifecycle", "UPDATE")
	defer span.End()

	query := `UPDATE state_vectors
		SET lifecycle_state = $2,
		    owner_role      = COALESCE(NULLIF($3, ''), owner_role),
		    updated_at      = $4
		WHERE id = $1
		RETURNING ` + vectorColumns
	v, err := scanVectorRow(s.pool.QueryRow(ctx, query, id, string(state), ownerRole, time.Now().UTC()))
	if err != nil {
		return nil, false, s.fail(span, err)
	}
	if v == nil {
		return nil, false, nil
	}
	return v, true, nil
}

// AppendEvent records an audit event.
func (s *Store) AppendEvent(ctx context.Context, ev *triage.MessageEvent) error {
	ctx, span := s.start(ctx, "pgstore.AppendEvent", "INSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO message_events (id, vector_id, event_type, description, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.VectorID, ev.EventType, nullString(ev.Description), ev.CreatedAt,
	)
	if err != nil {
		return s.fail(span, fmt.Errorf("insert event: %w", err))
	}
	return nil
}

// GetOverride looks up a learned sender override.
func (s *Store) GetOverride(ctx context.Context, senderKey string) (triage.Zone, bool, error) {
	ctx, span := s.start(ctx, "pgstore.GetOverride", "SELECT")
	defer span.End()

	var zone string
	err := s.pool.QueryRow(ctx,
		`SELECT zone FROM rule_overrides WHERE sender_key = $1`, senderKey,
	).Scan(&zone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, s.fail(span, fmt.Errorf("select override: %w", err))
	}
	return triage.Zone(zone), true, nil
}

// SetOverride upserts a sender override. Last writer wins.
func (s *Store) SetOverride(ctx context.Context, senderKey string, zone triage.Zone) error {
	ctx, span := s.start(ctx, "pgstore.SetOverride", "UPSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO rule_overrides (sender_key, zone, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (sender_key) DO UPDATE SET
			zone       = EXCLUDED.zone,
			created_at = EXCLUDED.created_at`,
		senderKey, string(zone), time.Now().UTC(),
	)
	if err != nil {
		return s.fail(span, fmt.Errorf("upsert override: %w", err))
	}
	return nil
}

func (s *Store) start(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func (s *Store) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// scanVectorRow scans a single row into a StateVector. Returns (nil, nil)
// when no row is found.
func scanVectorRow(row pgx.Row) (*triage.StateVector, error) {
	var (
		v         triage.StateVector
		intent    string
		lifecycle string
		blob      []byte
		summary   *string
		owner     *string
	)

	err := row.Scan(
		&v.ID, &v.SourceMessageID, &v.OriginID, &intent, &v.RiskScore,
		&blob, &summary, &owner, &v.DeadlineAt, &lifecycle, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	v.Intent = triage.IntentLabel(intent)
	v.Lifecycle = triage.LifecycleState(lifecycle)
	if summary != nil {
		v.Summary = *summary
	}
	if owner != nil {
		v.OwnerRole = *owner
	}
	if err := json.Unmarshal(blob, &v.Context); err != nil {
		return nil, fmt.Errorf("unmarshal context blob: %w", err)
	}
	return &v, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
