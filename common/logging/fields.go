package logging

import "log/slog"

// Field names shared by every component so log queries stay uniform.
const (
	FieldService    = "service"
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldUserID     = "user_id"
	FieldIP         = "ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldEventID    = "event_id"
	FieldEventType  = "event_type"
	FieldSeverity   = "severity"
	FieldRule       = "rule"
	FieldIncident   = "incident_type"
	FieldAction     = "action"
	FieldAlertID    = "alert_id"
	FieldTrustScore = "trust_score"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func UserID(id string) slog.Attr {
	return slog.String(FieldUserID, id)
}

func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error. A nil error yields an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

func Severity(s string) slog.Attr {
	return slog.String(FieldSeverity, s)
}

func Rule(name string) slog.Attr {
	return slog.String(FieldRule, name)
}

func Incident(t string) slog.Attr {
	return slog.String(FieldIncident, t)
}

func Action(a string) slog.Attr {
	return slog.String(FieldAction, a)
}

func AlertID(id string) slog.Attr {
	return slog.String(FieldAlertID, id)
}

func TrustScore(score int) slog.Attr {
	return slog.Int(FieldTrustScore, score)
}
