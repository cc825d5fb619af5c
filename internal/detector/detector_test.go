package detector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/guardrail/internal/models"
	"github.com/telhawk-systems/guardrail/internal/repository"
)

type failingEvents struct {
	*repository.InMemoryRepository
}

func (failingEvents) CountEvents(ctx context.Context, q models.EventQuery) (int, error) {
	return 0, errors.New("query timeout")
}

func loginRule(t *testing.T) []*Rule {
	t.Helper()
	rules, err := ParseRules([]byte(`
version: 1
rules:
  - name: brute_force_login
    pattern: "login_failed"
    severity: high
    action: block
    threshold: 5
    time_window: 15
    incident: brute_force_attack
`))
	require.NoError(t, err)
	return rules
}

func insert(t *testing.T, repo *repository.InMemoryRepository, eventType, ip, actor string, at time.Time) {
	t.Helper()
	require.NoError(t, repo.InsertEvent(context.Background(), &models.SecurityEvent{
		ID:        models.NewID(),
		EventType: eventType,
		Severity:  models.SeverityHigh,
		IPAddress: models.StringPtr(ip),
		ActorID:   models.StringPtr(actor),
		Source:    "test",
		CreatedAt: at,
	}))
}

func TestEvaluate_Threshold(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	d := New(repo, loginRule(t))
	now := time.Now()
	d.now = func() time.Time { return now }
	ctx := context.Background()
	subject := Subject{EventType: "login_failed", IPAddress: "203.0.113.9"}

	for i := 0; i < 4; i++ {
		insert(t, repo, "login_failed", "203.0.113.9", "", now.Add(-time.Duration(i)*time.Minute))
	}
	triggered, err := d.Evaluate(ctx, subject)
	require.NoError(t, err)
	assert.Empty(t, triggered)

	insert(t, repo, "login_failed", "203.0.113.9", "", now)
	triggered, err = d.Evaluate(ctx, subject)
	require.NoError(t, err)
	require.Len(t, triggered, 1)
	assert.Equal(t, "brute_force_login", triggered[0].Rule.Name)
	assert.Equal(t, 5, triggered[0].Count)
}

func TestEvaluate_WindowExcludesOldEvents(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	d := New(repo, loginRule(t))
	now := time.Now()
	d.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		insert(t, repo, "login_failed", "203.0.113.9", "", now.Add(-time.Minute))
	}
	insert(t, repo, "login_failed", "203.0.113.9", "", now.Add(-20*time.Minute))

	triggered, err := d.Evaluate(context.Background(), Subject{EventType: "login_failed", IPAddress: "203.0.113.9"})
	require.NoError(t, err)
	assert.Empty(t, triggered)
}

func TestEvaluate_ActorTakesPrecedenceOverIP(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	d := New(repo, loginRule(t))
	now := time.Now()

	// Five failures from one IP spread over different actors.
	for i := 0; i < 5; i++ {
		insert(t, repo, "login_failed", "203.0.113.9", "user-"+string(rune('a'+i)), now)
	}

	triggered, err := d.Evaluate(context.Background(), Subject{EventType: "login_failed", IPAddress: "203.0.113.9", ActorID: "user-a"})
	require.NoError(t, err)
	assert.Empty(t, triggered)

	triggered, err = d.Evaluate(context.Background(), Subject{EventType: "login_failed", IPAddress: "203.0.113.9"})
	require.NoError(t, err)
	assert.Len(t, triggered, 1)
}

func TestEvaluate_UnrelatedEventsDoNotHideMatches(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	d := New(repo, loginRule(t))
	now := time.Now()
	d.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		insert(t, repo, "login_failed", "203.0.113.9", "", now.Add(-10*time.Minute))
	}
	for i := 0; i < repository.DefaultListLimit+200; i++ {
		insert(t, repo, "custom_noise", "203.0.113.9", "", now.Add(-time.Minute))
	}

	triggered, err := d.Evaluate(context.Background(), Subject{EventType: "login_failed", IPAddress: "203.0.113.9"})
	require.NoError(t, err)
	require.Len(t, triggered, 1)
	assert.Equal(t, 5, triggered[0].Count)
}

func TestEvaluate_PatternAlternatives(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	repo := repository.NewInMemoryRepository()
	d := New(repo, rules)
	now := time.Now()

	for i := 0; i < 3; i++ {
		insert(t, repo, "login_failed", "", "user-7", now)
		insert(t, repo, "failed_login", "", "user-7", now)
	}

	triggered, err := d.Evaluate(context.Background(), Subject{EventType: "failed_login", ActorID: "user-7"})
	require.NoError(t, err)
	require.Len(t, triggered, 1)
	assert.Equal(t, 6, triggered[0].Count)
}

func TestEvaluate_NonMatchingEventSkipsStore(t *testing.T) {
	d := New(failingEvents{repository.NewInMemoryRepository()}, loginRule(t))

	triggered, err := d.Evaluate(context.Background(), Subject{EventType: "page_view", IPAddress: "203.0.113.9"})
	require.NoError(t, err)
	assert.Empty(t, triggered)
}

func TestEvaluate_StoreError(t *testing.T) {
	d := New(failingEvents{repository.NewInMemoryRepository()}, loginRule(t))

	_, err := d.Evaluate(context.Background(), Subject{EventType: "login_failed", IPAddress: "203.0.113.9"})
	assert.Error(t, err)
}

func TestEvaluate_DefaultRulesInjection(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	repo := repository.NewInMemoryRepository()
	d := New(repo, rules)

	insert(t, repo, "sql_injection", "198.51.100.4", "", time.Now())
	triggered, err := d.Evaluate(context.Background(), Subject{EventType: "sql_injection", IPAddress: "198.51.100.4"})
	require.NoError(t, err)
	require.Len(t, triggered, 1)
	assert.Equal(t, "injection_attempt", triggered[0].Rule.Name)
	assert.Equal(t, ActionBlock, triggered[0].Rule.Action)
}
