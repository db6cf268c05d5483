// Package alerts evaluates alert rules against incoming events and
// fires alerts subject to per-rule cooldowns. Everything here is
// best-effort relative to ingestion: failures are logged and never
// propagated to the caller.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/observatory/internal/domain"
	"github.com/openclaw/observatory/internal/ports"
	"github.com/openclaw/observatory/internal/telemetry"
)

const (
	checkTimeout   = 5 * time.Second
	webhookTimeout = 5 * time.Second
)

// Broadcaster pushes fired alerts to connected clients.
type Broadcaster interface {
	BroadcastAlert(alert domain.Alert)
}

// Engine evaluates every enabled rule against each incoming event. It
// owns the per-rule cooldown state; construct one per process and
// share it across request handlers.
type Engine struct {
	repo       ports.AlertRepository
	hub        Broadcaster
	webhookURL string
	client     *http.Client
	logger     *zap.Logger
	metrics    telemetry.Recorder

	mu         sync.Mutex
	lastFired  map[string]time.Time
	conditions map[string]Condition

	now func() time.Time
}

func NewEngine(repo ports.AlertRepository, hub Broadcaster, webhookURL string, logger *zap.Logger, metrics telemetry.Recorder) *Engine {
	if metrics == nil {
		metrics = telemetry.Noop{}
	}
	return &Engine{
		repo:       repo,
		hub:        hub,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: webhookTimeout},
		logger:     logger,
		metrics:    metrics,
		lastFired:  make(map[string]time.Time),
		conditions: make(map[string]Condition),
		now:        time.Now,
	}
}

// CheckEvent runs every enabled rule against the event. All failures
// are swallowed after logging; alerting must never abort ingestion.
func (e *Engine) CheckEvent(ctx context.Context, ev domain.Event) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	rules, err := e.repo.ListRules(ctx)
	if err != nil {
		e.logger.Error("failed to fetch alert rules", zap.Error(err))
		return
	}

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if e.inCooldown(rule) {
			continue
		}
		if !e.conditionFor(rule).Matches(ev) {
			continue
		}
		if !e.reserve(rule) {
			// Lost the race with a concurrent event for the same rule.
			continue
		}
		if err := e.trigger(ctx, rule, ev); err != nil {
			e.logger.Error("failed to trigger alert",
				zap.String("rule", rule.Name), zap.Error(err))
			e.release(rule.ID)
		}
	}
}

// conditionFor returns the parsed form of a rule's condition. Each
// distinct condition string is parsed once per engine; keying on the
// text rather than the rule ID means an edited rule takes effect
// without a restart.
func (e *Engine) conditionFor(rule domain.AlertRule) Condition {
	e.mu.Lock()
	defer e.mu.Unlock()
	cond, ok := e.conditions[rule.Condition]
	if !ok {
		cond = ParseCondition(rule.Condition)
		e.conditions[rule.Condition] = cond
	}
	return cond
}

func (e *Engine) inCooldown(rule domain.AlertRule) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastFired[rule.ID]
	return ok && e.now().Sub(last) < rule.Cooldown()
}

// reserve records the firing time before the alert is persisted so a
// concurrent event for the same rule cannot pass the cooldown check in
// between. Returns false when another event won the reservation.
func (e *Engine) reserve(rule domain.AlertRule) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	last, ok := e.lastFired[rule.ID]
	if ok && now.Sub(last) < rule.Cooldown() {
		return false
	}
	e.lastFired[rule.ID] = now
	return true
}

// release undoes a reservation after a failed trigger so the rule is
// eligible again immediately.
func (e *Engine) release(ruleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.lastFired, ruleID)
}

func (e *Engine) trigger(ctx context.Context, rule domain.AlertRule, ev domain.Event) error {
	message := RenderMessage(rule.MessageTemplate, ev)

	e.logger.Warn("alert fired",
		zap.String("severity", string(rule.Severity)),
		zap.String("rule", rule.Name),
		zap.String("message", message),
		zap.String("session_key", ev.SessionKey))

	alert, err := e.repo.CreateAlert(ctx, domain.NewAlertParams{
		RuleID:     &rule.ID,
		Severity:   rule.Severity,
		Message:    message,
		SessionKey: &ev.SessionKey,
		GatewayID:  &ev.GatewayID,
		Metadata: map[string]any{
			"eventType": ev.EventType,
			"ruleName":  rule.Name,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to persist alert: %w", err)
	}

	e.metrics.AlertFired(ctx, string(rule.Severity))

	if e.hub != nil {
		e.hub.BroadcastAlert(*alert)
	}

	if e.webhookURL != "" {
		e.sendWebhook(ctx, *alert, rule)
	}

	return nil
}

// sendWebhook is fire-and-forget: a delivery failure is logged and
// does not affect the persisted alert.
func (e *Engine) sendWebhook(ctx context.Context, alert domain.Alert, rule domain.AlertRule) {
	payload := map[string]any{
		"text":      fmt.Sprintf("[%s] %s", strings.ToUpper(string(rule.Severity)), alert.Message),
		"severity":  string(rule.Severity),
		"session":   alert.SessionKey,
		"rule":      rule.Name,
		"timestamp": e.now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("failed to marshal webhook payload", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.webhookURL, bytes.NewReader(body))
	if err != nil {
		e.logger.Error("failed to build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("failed to send webhook", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		e.logger.Error("webhook returned non-success status",
			zap.Int("status", resp.StatusCode))
	}
}

// RenderMessage substitutes the fixed placeholder tokens of a message
// template. Placeholders whose measurement block is absent render as
// "N/A"; unrecognized placeholders are left verbatim.
func RenderMessage(template string, ev domain.Event) string {
	percentUsed := "N/A"
	if ev.Tokens != nil && ev.Tokens.PercentUsed != nil {
		percentUsed = strconv.FormatFloat(*ev.Tokens.PercentUsed*100, 'f', 1, 64)
	}

	errorMessage := "N/A"
	if ev.Error != nil && ev.Error.Message != "" {
		errorMessage = ev.Error.Message
	}

	durationMs := "N/A"
	if ev.Timing != nil && ev.Timing.DurationMs != nil {
		durationMs = strconv.FormatInt(*ev.Timing.DurationMs, 10)
	}

	toolName := "N/A"
	if ev.Tool != nil && ev.Tool.Name != "" {
		toolName = ev.Tool.Name
	}

	return strings.NewReplacer(
		"{session_key}", ev.SessionKey,
		"{gateway_id}", ev.GatewayID,
		"{event_type}", ev.EventType,
		"{tokens_percent_used}", percentUsed,
		"{error_message}", errorMessage,
		"{duration_ms}", durationMs,
		"{tool_name}", toolName,
	).Replace(template)
}
