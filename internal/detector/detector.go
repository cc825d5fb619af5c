// Package detector evaluates threat rules against recent event history.
package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/telhawk-systems/guardrail/common/database"
	"github.com/telhawk-systems/guardrail/internal/metrics"
	"github.com/telhawk-systems/guardrail/internal/models"
	"github.com/telhawk-systems/guardrail/internal/repository"
)

// Subject identifies whose history a rule counts.
type Subject struct {
	EventType string
	IPAddress string
	ActorID   string
}

// Triggered is a rule whose threshold was reached.
type Triggered struct {
	Rule  *Rule
	Count int
}

// Detector is read-only: it never writes events or alerts.
type Detector struct {
	events repository.EventStore
	rules  []*Rule
	now    func() time.Time
}

func New(events repository.EventStore, rules []*Rule) *Detector {
	return &Detector{events: events, rules: rules, now: time.Now}
}

// Rules returns the loaded rule table.
func (d *Detector) Rules() []*Rule {
	return d.rules
}

// Evaluate counts, per rule matching s.EventType, the stored events of the
// same actor (or IP when anonymous) inside the rule's window and returns the
// rules whose threshold is met.
func (d *Detector) Evaluate(ctx context.Context, s Subject) ([]Triggered, error) {
	start := time.Now()
	defer func() { metrics.DetectionDuration.Observe(time.Since(start).Seconds()) }()

	var candidates []*Rule
	for _, r := range d.rules {
		if r.Matches(s.EventType) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var base models.EventQuery
	switch {
	case s.ActorID != "":
		base.ActorID = s.ActorID
	case s.IPAddress != "":
		base.IPAddress = s.IPAddress
	default:
		return nil, nil
	}

	now := d.now()
	var triggered []Triggered
	for _, r := range candidates {
		q := base
		q.EventTypePattern = r.Pattern.String()
		q.Since = now.Add(-r.TimeWindow)

		qctx, cancel := database.QueryContext(ctx)
		count, err := d.events.CountEvents(qctx, q)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to count events for rule %s: %w", r.Name, err)
		}
		if count >= r.Threshold {
			triggered = append(triggered, Triggered{Rule: r, Count: count})
		}
	}
	return triggered, nil
}
