package eventlog

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/telhawk-systems/guardrail/common/httputil"
	"github.com/telhawk-systems/guardrail/internal/models"
)

// Column limits applied before insert.
const (
	MaxEventTypeLen = 100
	MaxSourceLen    = 50
	MaxUserAgentLen = 500
)

const previewBytes = 500

// highRiskMarkers add RiskBoost when found anywhere in an event type.
var highRiskMarkers = []string{
	"failed_login",
	"suspicious_activity",
	"rate_limit_exceeded",
	"csrf_invalid",
	"injection_attempt",
	"unauthorized_access",
	"session_anomaly",
	"admin_role_assigned",
}

// RiskBoost is added to the severity base for high-risk event types.
const RiskBoost = 25

// RiskScore returns the 0-100 risk of an event.
func RiskScore(eventType string, severity models.Severity) int {
	score := severity.BaseRisk()
	if IsHighRiskType(eventType) {
		score += RiskBoost
	}
	return min(score, 100)
}

// IsHighRiskType reports whether eventType contains a high-risk marker.
func IsHighRiskType(eventType string) bool {
	for _, m := range highRiskMarkers {
		if strings.Contains(eventType, m) {
			return true
		}
	}
	return false
}

// SanitizePayload normalises data through a JSON round trip. Values that do
// not survive encoding are dropped, and payloads whose encoding exceeds
// maxBytes are replaced by a truncation marker with a short preview.
func SanitizePayload(data map[string]interface{}, maxBytes int) map[string]interface{} {
	if len(data) == 0 {
		return map[string]interface{}{}
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return map[string]interface{}{"sanitize_error": "payload is not JSON-encodable"}
	}

	if maxBytes > 0 && len(encoded) > maxBytes {
		return map[string]interface{}{
			"truncated":     true,
			"original_size": len(encoded),
			"preview":       truncateBytes(string(encoded), previewBytes),
		}
	}

	out := map[string]interface{}{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return map[string]interface{}{"sanitize_error": "payload is not a JSON object"}
	}
	return out
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func normalizeIP(s string) string {
	return httputil.NormalizeIP(s)
}
