package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/guardrail/common/database"
	"github.com/telhawk-systems/guardrail/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultPoolConfig returns the pool settings used in production.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: time.Minute,
	}
}

// NewPostgresRepository creates a pooled repository and verifies connectivity.
func NewPostgresRepository(ctx context.Context, connString string, pc PoolConfig) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = pc.MaxConns
	config.MinConns = pc.MinConns
	config.MaxConnLifetime = pc.MaxConnLifetime
	config.MaxConnIdleTime = pc.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

const eventColumns = `id, event_type, severity, actor_id, session_id, ip_address,
	COALESCE(user_agent, ''), source, event_data, risk_score, created_at`

func scanEvent(row pgx.Row) (*models.SecurityEvent, error) {
	e := &models.SecurityEvent{}
	err := row.Scan(
		&e.ID, &e.EventType, &e.Severity, &e.ActorID, &e.SessionID, &e.IPAddress,
		&e.UserAgent, &e.Source, &e.EventData, &e.RiskScore, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// eventWhere builds a WHERE clause for q starting at placeholder argPos.
func eventWhere(q models.EventQuery, argPos int) (string, []interface{}, int) {
	clauses := []string{"1=1"}
	args := []interface{}{}

	add := func(clause string, arg interface{}) {
		clauses = append(clauses, fmt.Sprintf(clause, argPos))
		args = append(args, arg)
		argPos++
	}

	if q.EventType != "" {
		add("event_type = $%d", q.EventType)
	}
	if q.EventTypePattern != "" {
		add("event_type ~ $%d", q.EventTypePattern)
	}
	if q.IPAddress != "" {
		add("ip_address = $%d", q.IPAddress)
	}
	if q.ActorID != "" {
		add("actor_id = $%d", q.ActorID)
	}
	if q.Source != "" {
		add("source = $%d", q.Source)
	}
	if !q.Since.IsZero() {
		add("created_at >= $%d", q.Since)
	}
	if !q.Until.IsZero() {
		add("created_at < $%d", q.Until)
	}
	if len(q.Severities) > 0 {
		sev := make([]string, len(q.Severities))
		for i, s := range q.Severities {
			sev[i] = string(s)
		}
		add("severity = ANY($%d)", sev)
	}

	return "WHERE " + strings.Join(clauses, " AND "), args, argPos
}

func (r *PostgresRepository) InsertEvent(ctx context.Context, e *models.SecurityEvent) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		INSERT INTO security_events
			(id, event_type, severity, actor_id, session_id, ip_address, user_agent, source, event_data, risk_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		e.ID, e.EventType, string(e.Severity), e.ActorID, e.SessionID, e.IPAddress,
		e.UserAgent, e.Source, e.EventData, e.RiskScore, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountEvents(ctx context.Context, q models.EventQuery) (int, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	where, args, _ := eventWhere(q, 1)
	var n int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM security_events "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count security events: %w", err)
	}
	return n, nil
}

// CountEventsByHour needs an IANA zone name; loc must not be time.Local.
func (r *PostgresRepository) CountEventsByHour(ctx context.Context, q models.EventQuery, loc *time.Location) ([24]int, error) {
	var hours [24]int
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	where, args, next := eventWhere(q, 1)
	args = append(args, loc.String())
	query := fmt.Sprintf(`
		SELECT EXTRACT(HOUR FROM created_at AT TIME ZONE $%d)::int AS hour, COUNT(*)
		FROM security_events %s
		GROUP BY hour`, next, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return hours, fmt.Errorf("failed to count security events by hour: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hour, n int
		if err := rows.Scan(&hour, &n); err != nil {
			return hours, fmt.Errorf("failed to scan hour bucket: %w", err)
		}
		if hour >= 0 && hour < 24 {
			hours[hour] = n
		}
	}
	return hours, rows.Err()
}

func (r *PostgresRepository) LatestEvent(ctx context.Context, q models.EventQuery) (*models.SecurityEvent, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	where, args, _ := eventWhere(q, 1)
	query := fmt.Sprintf("SELECT %s FROM security_events %s ORDER BY created_at DESC LIMIT 1", eventColumns, where)

	e, err := scanEvent(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get latest security event: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) IncrementAggregate(ctx context.Context, id string, seen int, at time.Time) (int, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		UPDATE security_events
		SET event_data = jsonb_set(
			jsonb_set(
				event_data,
				'{aggregated_count}',
				to_jsonb(GREATEST(COALESCE((event_data->>'aggregated_count')::int, 1), $2::int) + 1)
			),
			'{last_aggregated_at}',
			to_jsonb($3::text)
		)
		WHERE id = $1
		RETURNING (event_data->>'aggregated_count')::int
	`
	var count int
	err := r.pool.QueryRow(ctx, query, id, seen, at.UTC().Format(time.RFC3339Nano)).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrEventNotFound
		}
		return 0, fmt.Errorf("failed to aggregate security event: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) ListEvents(ctx context.Context, q models.EventQuery) ([]*models.SecurityEvent, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	where, args, argPos := eventWhere(q, 1)
	args = append(args, limit)
	query := fmt.Sprintf("SELECT %s FROM security_events %s ORDER BY created_at DESC LIMIT $%d",
		eventColumns, where, argPos)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}
	defer rows.Close()

	events := []*models.SecurityEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *PostgresRepository) EventStats(ctx context.Context, since time.Time, topN int) (*models.EventStats, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	stats := &models.EventStats{Since: since, BySeverity: map[models.Severity]int{}}

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE risk_score >= 75),
		       COUNT(DISTINCT ip_address),
		       COUNT(DISTINCT actor_id)
		FROM security_events WHERE created_at >= $1
	`, since).Scan(&stats.Total, &stats.HighRisk, &stats.UniqueIPs, &stats.UniqueActors)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise security events: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT severity, COUNT(*) FROM security_events
		WHERE created_at >= $1 GROUP BY severity
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count events by severity: %w", err)
	}
	for rows.Next() {
		var sev models.Severity
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan severity count: %w", err)
		}
		stats.BySeverity[sev] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if topN <= 0 {
		topN = 10
	}
	rows, err = r.pool.Query(ctx, `
		SELECT event_type, COUNT(*) AS n FROM security_events
		WHERE created_at >= $1 GROUP BY event_type
		ORDER BY n DESC, event_type ASC LIMIT $2
	`, since, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to rank event types: %w", err)
	}
	defer rows.Close()
	stats.TopEventTypes = []models.EventTypeCount{}
	for rows.Next() {
		var tc models.EventTypeCount
		if err := rows.Scan(&tc.EventType, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan event type count: %w", err)
		}
		stats.TopEventTypes = append(stats.TopEventTypes, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return stats, nil
}

func (r *PostgresRepository) InsertAuditLog(ctx context.Context, e *models.AuditLogEntry) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		INSERT INTO audit_logs (id, actor_id, action, resource_type, resource_id, details, ip_address, signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		e.ID, e.ActorID, e.Action, e.ResourceType, e.ResourceID, e.Details, e.IPAddress, e.Signature, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

const alertColumns = `id, alert_type, priority, status, title, description, notes, assigned_to, metadata, created_at, updated_at`

func scanAlert(row pgx.Row) (*models.SecurityAlert, error) {
	a := &models.SecurityAlert{}
	err := row.Scan(
		&a.ID, &a.AlertType, &a.Priority, &a.Status, &a.Title, &a.Description,
		&a.Notes, &a.AssignedTo, &a.Metadata, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PostgresRepository) CreateAlert(ctx context.Context, a *models.SecurityAlert) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	query := `
		INSERT INTO security_alerts (id, alert_type, priority, status, title, description, notes, assigned_to, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		a.ID, a.AlertType, string(a.Priority), string(a.Status), a.Title, a.Description,
		a.Notes, a.AssignedTo, metadata, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create security alert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetAlert(ctx context.Context, id string) (*models.SecurityAlert, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	a, err := scanAlert(r.pool.QueryRow(ctx, "SELECT "+alertColumns+" FROM security_alerts WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get security alert: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) ListAlerts(ctx context.Context, q models.AlertQuery) ([]*models.SecurityAlert, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if q.Status != "" {
		whereClause += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, string(q.Status))
		argPos++
	}
	if q.Priority != "" {
		whereClause += fmt.Sprintf(" AND priority = $%d", argPos)
		args = append(args, string(q.Priority))
		argPos++
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf("SELECT %s FROM security_alerts %s ORDER BY created_at DESC LIMIT $%d",
		alertColumns, whereClause, argPos)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list security alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*models.SecurityAlert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return alerts, nil
}

func (r *PostgresRepository) UpdateAlertStatus(ctx context.Context, id string, upd models.AlertStatusUpdate) (*models.SecurityAlert, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	setClauses := []string{"updated_at = $1", "status = $2"}
	args := []interface{}{time.Now().UTC(), string(upd.Status)}
	argPos := 3

	if upd.Notes != nil {
		setClauses = append(setClauses, fmt.Sprintf("notes = $%d", argPos))
		args = append(args, *upd.Notes)
		argPos++
	}
	if upd.AssignedTo != nil {
		setClauses = append(setClauses, fmt.Sprintf("assigned_to = $%d", argPos))
		args = append(args, *upd.AssignedTo)
		argPos++
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE security_alerts SET %s WHERE id = $%d RETURNING %s",
		strings.Join(setClauses, ", "), argPos, alertColumns)

	a, err := scanAlert(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to update security alert: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) CountAlertsByStatus(ctx context.Context) (map[models.AlertStatus]int, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, "SELECT status, COUNT(*) FROM security_alerts GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count security alerts: %w", err)
	}
	defer rows.Close()

	counts := map[models.AlertStatus]int{}
	for rows.Next() {
		var status models.AlertStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan alert count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}

func (r *PostgresRepository) ListSessions(ctx context.Context, q models.SessionQuery) ([]*models.Session, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if q.UserID != "" {
		whereClause += fmt.Sprintf(" AND user_id = $%d", argPos)
		args = append(args, q.UserID)
		argPos++
	}
	if q.ActiveOnly {
		whereClause += " AND is_active"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, user_id, session_token, COALESCE(client_fingerprint, ''), ip_address,
		       is_active, security_level, expires_at, created_at, last_activity
		FROM user_sessions %s
		ORDER BY created_at DESC
		LIMIT $%d
	`, whereClause, argPos)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*models.Session{}
	for rows.Next() {
		s := &models.Session{}
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.SessionToken, &s.ClientFingerprint, &s.IPAddress,
			&s.IsActive, &s.SecurityLevel, &s.ExpiresAt, &s.CreatedAt, &s.LastActivity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

func (r *PostgresRepository) DeactivateSessions(ctx context.Context, d models.SessionDeactivation) (int, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		UPDATE user_sessions
		SET is_active = FALSE,
		    security_level = $2,
		    expires_at = CASE WHEN $3::boolean THEN LEAST(expires_at, $4) ELSE expires_at END
		WHERE user_id = $1 AND is_active
	`
	tag, err := r.pool.Exec(ctx, query, d.UserID, d.SecurityLevel, d.ExpireNow, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRepository) CountActiveSessions(ctx context.Context) (int, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	var n int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM user_sessions WHERE is_active AND expires_at > $1", time.Now().UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) GetActiveRole(ctx context.Context, userID string) (models.Role, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, "SELECT role FROM user_roles WHERE user_id = $1 AND is_active", userID)
	if err != nil {
		return "", fmt.Errorf("failed to get roles: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role); err != nil {
			return "", fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("row iteration error: %w", err)
	}

	role, ok := highestRole(roles)
	if !ok {
		return "", ErrRoleNotFound
	}
	return role, nil
}

func (r *PostgresRepository) DeactivateRoles(ctx context.Context, userID string) (int, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		"UPDATE user_roles SET is_active = FALSE, updated_at = $2 WHERE user_id = $1 AND is_active",
		userID, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate roles: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRepository) SetRole(ctx context.Context, userID string, role models.Role) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		"UPDATE user_roles SET is_active = FALSE, updated_at = $3 WHERE user_id = $1 AND role <> $2",
		userID, string(role), now,
	); err != nil {
		return fmt.Errorf("failed to deactivate roles: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO user_roles (user_id, role, is_active, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, $3)
		ON CONFLICT (user_id, role) DO UPDATE SET is_active = TRUE, updated_at = EXCLUDED.updated_at
	`, userID, string(role), now); err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit role change: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpsertConfig(ctx context.Context, c *models.SecurityConfig) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		INSERT INTO security_config (key, value, updated_by, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    updated_by = EXCLUDED.updated_by,
		    updated_at = EXCLUDED.updated_at,
		    expires_at = EXCLUDED.expires_at
	`
	if _, err := r.pool.Exec(ctx, query, c.Key, c.Value, c.UpdatedBy, c.UpdatedAt, c.ExpiresAt); err != nil {
		return fmt.Errorf("failed to upsert security config %s: %w", c.Key, err)
	}
	return nil
}

func (r *PostgresRepository) GetConfig(ctx context.Context, key string) (*models.SecurityConfig, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	c := &models.SecurityConfig{}
	err := r.pool.QueryRow(ctx,
		"SELECT key, value, updated_by, updated_at, expires_at FROM security_config WHERE key = $1", key,
	).Scan(&c.Key, &c.Value, &c.UpdatedBy, &c.UpdatedAt, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to get security config: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) CreateIncident(ctx context.Context, i *models.SecurityIncident) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	data := i.EventData
	if data == nil {
		data = map[string]interface{}{}
	}
	actions := i.Actions
	if actions == nil {
		actions = []models.AutomatedAction{}
	}

	query := `
		INSERT INTO security_incidents (id, type, severity, actor_id, ip_address, event_data, actions, alert_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		i.ID, string(i.Type), string(i.Severity), i.ActorID, i.IPAddress, data, actions, i.AlertID, i.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create security incident: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
