package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/guardrail/common/httputil"
	"github.com/telhawk-systems/guardrail/internal/admin"
)

type adminResponse struct {
	Success bool            `json:"success"`
	Action  string          `json:"action"`
	Data    json.RawMessage `json:"data"`
}

// adminClient calls the admin security-data endpoint.
type adminClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *adminClient) do(ctx context.Context, req admin.Request) (interface{}, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.baseURL, "/")+"/api/v1/admin-security-data", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var e httputil.ErrorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			if len(e.Details) > 0 {
				return nil, fmt.Errorf("%s (%d): %v", e.Error, resp.StatusCode, e.Details)
			}
			return nil, fmt.Errorf("%s (%d)", e.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out adminResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	// Decode into generic values so YAML output gets maps, not raw bytes.
	var data interface{}
	if err := json.Unmarshal(out.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode response data: %w", err)
	}
	return data, nil
}

func newAdminCommand(opts *options) *cobra.Command {
	var (
		token string
		req   admin.Request
		notes string
	)

	cmd := &cobra.Command{
		Use:   "admin <action>",
		Short: "Query the admin security-data endpoint",
		Long: `Call the admin security-data endpoint as a staff user.

Actions: get_events, get_alerts, get_dashboard_metrics,
update_alert_status, get_user_sessions.

Examples:
  guardctl admin get_events --severity high --limit 50 --token $TOKEN
  guardctl admin update_alert_status --alert-id 0190... --status resolved -o yaml`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{admin.ActionGetEvents, admin.ActionGetAlerts, admin.ActionGetDashboardMetrics, admin.ActionUpdateAlertStatus, admin.ActionGetUserSessions},
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token is required (mint one with `guardctl token issue`)")
			}
			req.Action = args[0]
			if cmd.Flags().Changed("notes") {
				req.Notes = &notes
			}

			c := &adminClient{baseURL: opts.serverURL, token: token, http: &http.Client{Timeout: 15 * time.Second}}
			data, err := c.do(cmd.Context(), req)
			if err != nil {
				return err
			}

			format := opts.output
			if format == "table" {
				format = "json"
			}
			return render(cmd.OutOrStdout(), format, data)
		},
	}

	f := cmd.Flags()
	f.StringVar(&token, "token", "", "bearer token of a staff user")
	f.StringVar(&req.Severity, "severity", "", "event severity filter")
	f.StringVar(&req.EventType, "event-type", "", "event type filter")
	f.StringVar(&req.Since, "since", "", "RFC3339 lower bound for events")
	f.IntVar(&req.Limit, "limit", 0, "maximum rows")
	f.StringVar(&req.Status, "status", "", "alert status filter or new status")
	f.StringVar(&req.AlertID, "alert-id", "", "alert to update")
	f.StringVar(&notes, "notes", "", "notes for update_alert_status")
	f.StringVar(&req.UserID, "user-id", "", "user whose sessions to list")
	f.BoolVar(&req.ActiveOnly, "active-only", false, "only active sessions")
	return cmd
}
