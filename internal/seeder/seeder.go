// Package seeder posts synthetic client traffic and attacks to a running
// guardrail instance.
package seeder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/guardrail/common/logging"
)

// Scenario names a traffic pattern.
type Scenario string

const (
	ScenarioPageViews  Scenario = "page-views"
	ScenarioClientLog  Scenario = "client-log"
	ScenarioBruteForce Scenario = "brute-force"
	ScenarioInjection  Scenario = "injection"
)

// Scenarios lists every known scenario with a one-line description.
func Scenarios() map[Scenario]string {
	return map[Scenario]string{
		ScenarioPageViews:  "benign page views from many visitors",
		ScenarioClientLog:  "client error logs from a single noisy browser",
		ScenarioBruteForce: "repeated failed logins from one address against one account",
		ScenarioInjection:  "SQL injection and XSS probes against the consultation form",
	}
}

// ParseScenario validates s.
func ParseScenario(s string) (Scenario, error) {
	sc := Scenario(s)
	if _, ok := Scenarios()[sc]; !ok {
		names := make([]string, 0, len(Scenarios()))
		for name := range Scenarios() {
			names = append(names, string(name))
		}
		sort.Strings(names)
		return "", fmt.Errorf("unknown scenario %q (want one of %s)", s, strings.Join(names, ", "))
	}
	return sc, nil
}

// Summary counts responses by HTTP status.
type Summary struct {
	Scenario Scenario    `json:"scenario" yaml:"scenario"`
	Sent     int         `json:"sent" yaml:"sent"`
	Failed   int         `json:"failed" yaml:"failed"`
	ByStatus map[int]int `json:"by_status" yaml:"by_status"`
}

// Runner sends generated requests to BaseURL.
type Runner struct {
	BaseURL  string
	Client   *http.Client
	Interval time.Duration
	faker    *gofakeit.Faker
	logger   *logging.Logger
}

// NewRunner returns a runner. A zero seed draws a random one.
func NewRunner(baseURL string, seed int64, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
		faker:   gofakeit.New(seed),
		logger:  logger.Component("seeder"),
	}
}

type request struct {
	path    string
	ip      string
	agent   string
	payload map[string]interface{}
}

// Run sends count requests for sc. Transport errors are counted, not
// returned; only context cancellation stops the run early.
func (r *Runner) Run(ctx context.Context, sc Scenario, count int) (Summary, error) {
	sum := Summary{Scenario: sc, ByStatus: map[int]int{}}
	reqs := r.generate(sc, count)

	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		status, err := r.send(ctx, req)
		sum.Sent++
		if err != nil {
			sum.Failed++
			r.logger.WarnContext(ctx, "seed request failed", logging.Path(req.path), logging.Error(err))
		} else {
			sum.ByStatus[status]++
		}

		if r.Interval > 0 && i < len(reqs)-1 {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-time.After(r.Interval):
			}
		}
	}

	r.logger.InfoContext(ctx, "seeding complete",
		"scenario", string(sc),
		"sent", sum.Sent,
		"failed", sum.Failed,
	)
	return sum, nil
}

func (r *Runner) generate(sc Scenario, count int) []request {
	reqs := make([]request, 0, count)
	switch sc {
	case ScenarioBruteForce:
		ip, agent, victim := r.faker.IPv4Address(), r.faker.UserAgent(), r.faker.Email()
		for i := 0; i < count; i++ {
			reqs = append(reqs, request{
				path:  "/api/v1/enhanced-security-monitoring",
				ip:    ip,
				agent: agent,
				payload: map[string]interface{}{
					"eventType": "login_failed",
					"severity":  "medium",
					"source":    "login_form",
					"eventData": map[string]interface{}{
						"username": victim,
						"attempt":  i + 1,
						"reason":   "invalid_password",
					},
				},
			})
		}

	case ScenarioInjection:
		probes := []struct{ eventType, value string }{
			{"sql_injection", "' OR '1'='1' --"},
			{"xss_attempt", "<script>alert(document.cookie)</script>"},
			{"sql_injection", "1; DROP TABLE loans;--"},
			{"xss_attempt", "<img src=x onerror=alert(1)>"},
		}
		ip := r.faker.IPv4Address()
		for i := 0; i < count; i++ {
			p := probes[i%len(probes)]
			reqs = append(reqs, request{
				path:  "/api/v1/enhanced-security-monitoring",
				ip:    ip,
				agent: r.faker.UserAgent(),
				payload: map[string]interface{}{
					"eventType": p.eventType,
					"severity":  "high",
					"source":    "consultation_form",
					"eventData": map[string]interface{}{
						"field": r.faker.RandomString([]string{"name", "email", "phone", "message"}),
						"value": p.value,
					},
				},
			})
		}

	case ScenarioClientLog:
		ip, agent := r.faker.IPv4Address(), r.faker.UserAgent()
		for i := 0; i < count; i++ {
			reqs = append(reqs, request{
				path:  "/api/v1/log-security-event",
				ip:    ip,
				agent: agent,
				payload: map[string]interface{}{
					"event_type": "client_log",
					"severity":   "low",
					"event_data": map[string]interface{}{
						"message": r.faker.HackerPhrase(),
						"url":     r.faker.URL(),
					},
				},
			})
		}

	default:
		pages := []string{"/", "/loans", "/loans/personal", "/loans/business", "/consultation", "/about"}
		for i := 0; i < count; i++ {
			reqs = append(reqs, request{
				path:  "/api/v1/log-security-event",
				ip:    r.faker.IPv4Address(),
				agent: r.faker.UserAgent(),
				payload: map[string]interface{}{
					"event_type": "page_view",
					"session_id": r.faker.UUID(),
					"event_data": map[string]interface{}{
						"path":     r.faker.RandomString(pages),
						"referrer": r.faker.URL(),
					},
				},
			})
		}
	}
	return reqs
}

func (r *Runner) send(ctx context.Context, req request) (int, error) {
	body, err := json.Marshal(req.payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+req.path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", req.agent)
	httpReq.Header.Set("X-Forwarded-For", req.ip)

	resp, err := r.Client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
