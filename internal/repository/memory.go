package repository

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/telhawk-systems/guardrail/internal/models"
)

// InMemoryRepository implements Repository in process memory. It backs the
// `memory` database driver and component tests.
type InMemoryRepository struct {
	mu        sync.RWMutex
	events    []*models.SecurityEvent
	audit     []*models.AuditLogEntry
	alerts    map[string]*models.SecurityAlert
	sessions  []*models.Session
	roles     map[string]map[models.Role]bool
	configs   map[string]*models.SecurityConfig
	incidents []*models.SecurityIncident
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		alerts:  make(map[string]*models.SecurityAlert),
		roles:   make(map[string]map[models.Role]bool),
		configs: make(map[string]*models.SecurityConfig),
	}
}

// ---- events ----

func (r *InMemoryRepository) InsertEvent(ctx context.Context, e *models.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, cloneEvent(e))
	return nil
}

func (r *InMemoryRepository) CountEvents(ctx context.Context, q models.EventQuery) (int, error) {
	f, err := newEventFilter(q)
	if err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.events {
		if f.match(e) {
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) CountEventsByHour(ctx context.Context, q models.EventQuery, loc *time.Location) ([24]int, error) {
	var hours [24]int
	f, err := newEventFilter(q)
	if err != nil {
		return hours, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.events {
		if f.match(e) {
			hours[e.CreatedAt.In(loc).Hour()]++
		}
	}
	return hours, nil
}

func (r *InMemoryRepository) LatestEvent(ctx context.Context, q models.EventQuery) (*models.SecurityEvent, error) {
	f, err := newEventFilter(q)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *models.SecurityEvent
	for _, e := range r.events {
		if !f.match(e) {
			continue
		}
		if latest == nil || !e.CreatedAt.Before(latest.CreatedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, ErrEventNotFound
	}
	return cloneEvent(latest), nil
}

func (r *InMemoryRepository) IncrementAggregate(ctx context.Context, id string, seen int, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.ID != id {
			continue
		}
		data := make(map[string]interface{}, len(e.EventData)+2)
		for k, v := range e.EventData {
			data[k] = v
		}
		next := max(e.AggregatedCount(), seen) + 1
		data[models.DataAggregatedCount] = next
		data[models.DataLastAggregatedAt] = at.UTC().Format(time.RFC3339Nano)
		e.EventData = data
		return next, nil
	}
	return 0, ErrEventNotFound
}

func (r *InMemoryRepository) ListEvents(ctx context.Context, q models.EventQuery) ([]*models.SecurityEvent, error) {
	f, err := newEventFilter(q)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*models.SecurityEvent{}
	for _, e := range r.events {
		if f.match(e) {
			out = append(out, cloneEvent(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) EventStats(ctx context.Context, since time.Time, topN int) (*models.EventStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &models.EventStats{
		Since:      since,
		BySeverity: make(map[models.Severity]int),
	}
	types := map[string]int{}
	ips := map[string]bool{}
	actors := map[string]bool{}

	for _, e := range r.events {
		if e.CreatedAt.Before(since) {
			continue
		}
		stats.Total++
		stats.BySeverity[e.Severity]++
		if e.RiskScore >= 75 {
			stats.HighRisk++
		}
		types[e.EventType]++
		if ip := e.IP(); ip != "" {
			ips[ip] = true
		}
		if a := e.Actor(); a != "" {
			actors[a] = true
		}
	}

	stats.UniqueIPs = len(ips)
	stats.UniqueActors = len(actors)
	stats.TopEventTypes = topEventTypes(types, topN)
	return stats, nil
}

// ---- audit ----

func (r *InMemoryRepository) InsertAuditLog(ctx context.Context, e *models.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.audit = append(r.audit, &cp)
	return nil
}

// AuditLogs returns a snapshot of every audit entry written.
func (r *InMemoryRepository) AuditLogs() []*models.AuditLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.AuditLogEntry, len(r.audit))
	copy(out, r.audit)
	return out
}

// ---- alerts ----

func (r *InMemoryRepository) CreateAlert(ctx context.Context, a *models.SecurityAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.alerts[a.ID] = &cp
	return nil
}

func (r *InMemoryRepository) GetAlert(ctx context.Context, id string) (*models.SecurityAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *InMemoryRepository) ListAlerts(ctx context.Context, q models.AlertQuery) ([]*models.SecurityAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*models.SecurityAlert{}
	for _, a := range r.alerts {
		if q.Status != "" && a.Status != q.Status {
			continue
		}
		if q.Priority != "" && a.Priority != q.Priority {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) UpdateAlertStatus(ctx context.Context, id string, upd models.AlertStatusUpdate) (*models.SecurityAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	a.Status = upd.Status
	if upd.Notes != nil {
		a.Notes = *upd.Notes
	}
	if upd.AssignedTo != nil {
		assignee := *upd.AssignedTo
		a.AssignedTo = &assignee
	}
	a.UpdatedAt = time.Now().UTC()

	cp := *a
	return &cp, nil
}

func (r *InMemoryRepository) CountAlertsByStatus(ctx context.Context) (map[models.AlertStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[models.AlertStatus]int{}
	for _, a := range r.alerts {
		counts[a.Status]++
	}
	return counts, nil
}

// ---- sessions ----

// AddSession seeds a session row.
func (r *InMemoryRepository) AddSession(s *models.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions = append(r.sessions, &cp)
}

func (r *InMemoryRepository) ListSessions(ctx context.Context, q models.SessionQuery) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*models.Session{}
	for _, s := range r.sessions {
		if q.UserID != "" && s.UserID != q.UserID {
			continue
		}
		if q.ActiveOnly && !s.IsActive {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) DeactivateSessions(ctx context.Context, d models.SessionDeactivation) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	n := 0
	for _, s := range r.sessions {
		if s.UserID != d.UserID || !s.IsActive {
			continue
		}
		s.IsActive = false
		s.SecurityLevel = d.SecurityLevel
		if d.ExpireNow && s.ExpiresAt.After(now) {
			s.ExpiresAt = now
		}
		n++
	}
	return n, nil
}

func (r *InMemoryRepository) CountActiveSessions(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, s := range r.sessions {
		if s.Live(now) {
			n++
		}
	}
	return n, nil
}

// ---- roles ----

// AssignRole seeds an active role for userID.
func (r *InMemoryRepository) AssignRole(userID string, role models.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.roles[userID] == nil {
		r.roles[userID] = map[models.Role]bool{}
	}
	r.roles[userID][role] = true
}

func (r *InMemoryRepository) GetActiveRole(ctx context.Context, userID string) (models.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []models.Role
	for role, on := range r.roles[userID] {
		if on {
			active = append(active, role)
		}
	}
	role, ok := highestRole(active)
	if !ok {
		return "", ErrRoleNotFound
	}
	return role, nil
}

func (r *InMemoryRepository) DeactivateRoles(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for role, on := range r.roles[userID] {
		if on {
			r.roles[userID][role] = false
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) SetRole(ctx context.Context, userID string, role models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.roles[userID] = map[models.Role]bool{role: true}
	return nil
}

// ---- config ----

func (r *InMemoryRepository) UpsertConfig(ctx context.Context, c *models.SecurityConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.configs[c.Key] = &cp
	return nil
}

func (r *InMemoryRepository) GetConfig(ctx context.Context, key string) (*models.SecurityConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.configs[key]
	if !ok {
		return nil, ErrConfigNotFound
	}
	cp := *c
	return &cp, nil
}

// ---- incidents ----

func (r *InMemoryRepository) CreateIncident(ctx context.Context, i *models.SecurityIncident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *i
	cp.Actions = append([]models.AutomatedAction(nil), i.Actions...)
	r.incidents = append(r.incidents, &cp)
	return nil
}

// Incidents returns a snapshot of persisted incidents.
func (r *InMemoryRepository) Incidents() []*models.SecurityIncident {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.SecurityIncident, len(r.incidents))
	copy(out, r.incidents)
	return out
}

func (r *InMemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *InMemoryRepository) Close() error {
	return nil
}

// eventFilter is an EventQuery with its type pattern compiled.
type eventFilter struct {
	q      models.EventQuery
	typeRE *regexp.Regexp
}

func newEventFilter(q models.EventQuery) (eventFilter, error) {
	f := eventFilter{q: q}
	if q.EventTypePattern != "" {
		re, err := regexp.Compile(q.EventTypePattern)
		if err != nil {
			return f, fmt.Errorf("invalid event type pattern: %w", err)
		}
		f.typeRE = re
	}
	return f, nil
}

func (f eventFilter) match(e *models.SecurityEvent) bool {
	if f.typeRE != nil && !f.typeRE.MatchString(e.EventType) {
		return false
	}
	return matchEvent(e, f.q)
}

func matchEvent(e *models.SecurityEvent, q models.EventQuery) bool {
	if q.EventType != "" && e.EventType != q.EventType {
		return false
	}
	if q.IPAddress != "" && e.IP() != q.IPAddress {
		return false
	}
	if q.ActorID != "" && e.Actor() != q.ActorID {
		return false
	}
	if q.Source != "" && e.Source != q.Source {
		return false
	}
	if !q.Since.IsZero() && e.CreatedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !e.CreatedAt.Before(q.Until) {
		return false
	}
	if len(q.Severities) > 0 {
		found := false
		for _, s := range q.Severities {
			if e.Severity == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func cloneEvent(e *models.SecurityEvent) *models.SecurityEvent {
	cp := *e
	if e.EventData != nil {
		cp.EventData = make(map[string]interface{}, len(e.EventData))
		for k, v := range e.EventData {
			cp.EventData[k] = v
		}
	}
	return &cp
}

func topEventTypes(counts map[string]int, n int) []models.EventTypeCount {
	out := make([]models.EventTypeCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, models.EventTypeCount{EventType: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].EventType < out[j].EventType
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
