package eventlog

import (
	"context"
	"time"

	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/internal/models"
	"github.com/telhawk-systems/guardrail/internal/ratelimit"
)

// EventClientLog is the only low-priority type with a hard cap.
const EventClientLog = "client_log"

var lowPriorityTypes = map[string]bool{
	"page_view":      true,
	"ui_interaction": true,
	"console_access": true,
	"heartbeat":      true,
	EventClientLog:   true,
}

// IsLowPriority reports whether eventType is subject to spam control and
// aggregation.
func IsLowPriority(eventType string) bool {
	return lowPriorityTypes[eventType]
}

type spamVerdict int

const (
	spamAccept spamVerdict = iota
	spamFiltered
	spamRateLimited
)

const spamWindow = time.Minute

// checkSpam applies the per-IP budgets. Counter failures accept the event.
func (l *Logger) checkSpam(ctx context.Context, eventType string, severity models.Severity, ip string) spamVerdict {
	if l.spam == nil || !IsLowPriority(eventType) || severity.AtLeast(models.SeverityHigh) {
		return spamAccept
	}

	key := "spam:" + eventType + ":" + ip
	limit := l.cfg.LowPriorityPerMinute
	verdict := spamFiltered
	if eventType == EventClientLog {
		limit = l.cfg.ClientLogPerMinute
		verdict = spamRateLimited
	}

	res, err := l.spam.Check(ctx, key, limit, spamWindow, ratelimit.NeutralTrust)
	if err != nil {
		l.logger.WarnContext(ctx, "spam counter unavailable, accepting event",
			logging.EventType(eventType),
			logging.Error(err),
		)
		return spamAccept
	}
	if !res.Allowed {
		return verdict
	}
	return spamAccept
}
