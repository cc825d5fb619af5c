// Package search mirrors stored security events into OpenSearch for
// dashboard queries. The relational store stays the system of record.
package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/internal/models"
)

// Config holds the OpenSearch connection and target index.
type Config struct {
	URL      string
	Username string
	Password string
	Insecure bool
	Index    string
}

// Mirror indexes security events, one document per event keyed by event ID.
type Mirror struct {
	client *opensearch.Client
	index  string
	logger *logging.Logger
}

func NewMirror(cfg Config, logger *logging.Logger) (*Mirror, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("opensearch index is required")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.Insecure} //nolint:gosec // self-signed dev clusters

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &Mirror{
		client: client,
		index:  cfg.Index,
		logger: logger.Component("search"),
	}, nil
}

// Index returns the target index name.
func (m *Mirror) Index() string {
	return m.index
}

// Initialize checks connectivity and installs the index template.
func (m *Mirror) Initialize(ctx context.Context) error {
	info, err := m.client.Info(m.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to opensearch: %w", err)
	}
	defer info.Body.Close()
	if info.IsError() {
		return fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	body, err := json.Marshal(indexTemplate(m.index))
	if err != nil {
		return err
	}
	res, err := m.client.Indices.PutIndexTemplate(
		m.index+"-template",
		bytes.NewReader(body),
		m.client.Indices.PutIndexTemplate.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index template: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		detail, _ := io.ReadAll(res.Body)
		return fmt.Errorf("failed to create index template: %s - %s", res.Status(), string(detail))
	}

	m.logger.InfoContext(ctx, "opensearch mirror initialized", "index", m.index)
	return nil
}

// IndexEvent writes e to the index. Re-indexing the same event overwrites
// the previous document.
func (m *Mirror) IndexEvent(ctx context.Context, e *models.SecurityEvent) error {
	body, err := json.Marshal(document(e))
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	res, err := m.client.Index(
		m.index,
		bytes.NewReader(body),
		m.client.Index.WithDocumentID(e.ID),
		m.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		detail, _ := io.ReadAll(res.Body)
		return fmt.Errorf("opensearch rejected event %s: %s - %s", e.ID, res.Status(), string(detail))
	}
	return nil
}

func document(e *models.SecurityEvent) map[string]interface{} {
	doc := map[string]interface{}{
		"@timestamp": e.CreatedAt.UTC().Format(time.RFC3339Nano),
		"event_id":   e.ID,
		"event_type": e.EventType,
		"severity":   e.Severity,
		"source":     e.Source,
		"risk_score": e.RiskScore,
		"event_data": e.EventData,
	}
	if e.ActorID != nil {
		doc["actor_id"] = *e.ActorID
	}
	if e.SessionID != nil {
		doc["session_id"] = *e.SessionID
	}
	if e.IPAddress != nil {
		doc["ip_address"] = *e.IPAddress
	}
	if e.UserAgent != "" {
		doc["user_agent"] = e.UserAgent
	}
	return doc
}

func indexTemplate(index string) map[string]interface{} {
	keyword := map[string]interface{}{"type": "keyword"}
	return map[string]interface{}{
		"index_patterns": []string{index + "*"},
		"template": map[string]interface{}{
			"settings": map[string]interface{}{
				"number_of_shards":   1,
				"number_of_replicas": 0,
				"refresh_interval":   "5s",
			},
			"mappings": map[string]interface{}{
				"dynamic": true,
				"properties": map[string]interface{}{
					"@timestamp": map[string]interface{}{"type": "date"},
					"event_id":   keyword,
					"event_type": keyword,
					"severity":   keyword,
					"source":     keyword,
					"actor_id":   keyword,
					"session_id": keyword,
					"ip_address": map[string]interface{}{"type": "ip"},
					"user_agent": map[string]interface{}{"type": "text"},
					"risk_score": map[string]interface{}{"type": "integer"},
					"event_data": map[string]interface{}{"type": "object", "enabled": false},
				},
			},
		},
		"priority": 100,
	}
}
