// Package messaging defines the broker abstraction used to fan security
// notifications out to other systems without coupling callers to a broker.
package messaging

import (
	"context"
	"time"
)

// Message is a payload published to a subject.
type Message struct {
	Subject  string
	Data     []byte
	Metadata map[string]string
}

// Publisher publishes messages to subjects. Publishing is fire-and-forget.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	PublishMsg(ctx context.Context, msg *Message) error
	Close() error
}

// Connection is implemented by publishers that hold a live broker connection.
type Connection interface {
	IsConnected() bool
}

// HealthStatus reports the state of a broker connection for health endpoints.
type HealthStatus struct {
	Enabled   bool      `json:"enabled"`
	Connected bool      `json:"connected"`
	CheckedAt time.Time `json:"checked_at"`
}

// CheckHealth reports the connection state of c. A nil connection reports
// the broker as disabled.
func CheckHealth(c Connection) HealthStatus {
	status := HealthStatus{CheckedAt: time.Now().UTC()}
	if c == nil {
		return status
	}
	status.Enabled = true
	status.Connected = c.IsConnected()
	return status
}
