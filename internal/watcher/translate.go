package watcher

import (
	"encoding/json"
	"strings"

	"github.com/openclaw/observatory/internal/domain"
	"github.com/openclaw/observatory/internal/ingest"
)

// transcriptEntry is one line of a transcript .jsonl file. Only the
// fields needed to derive a turn event are decoded.
type transcriptEntry struct {
	Type      string             `json:"type"`
	ID        string             `json:"id"`
	ParentID  string             `json:"parentId"`
	Timestamp string             `json:"timestamp"`
	Message   *transcriptMessage `json:"message"`
}

type transcriptMessage struct {
	Role       string           `json:"role"`
	Provider   string           `json:"provider"`
	Model      string           `json:"model"`
	StopReason string           `json:"stopReason"`
	API        string           `json:"api"`
	Usage      *transcriptUsage `json:"usage"`
}

type transcriptUsage struct {
	Input       int64           `json:"input"`
	Output      int64           `json:"output"`
	TotalTokens int64           `json:"totalTokens"`
	CacheRead   *int64          `json:"cacheRead"`
	CacheWrite  *int64          `json:"cacheWrite"`
	Cost        *transcriptCost `json:"cost"`
}

type transcriptCost struct {
	Input      float64 `json:"input"`
	Output     float64 `json:"output"`
	CacheRead  float64 `json:"cacheRead"`
	CacheWrite float64 `json:"cacheWrite"`
	Total      float64 `json:"total"`
}

// translateLine converts one transcript line into an ingestion event.
// Only assistant messages that carry usage data produce an event;
// everything else, including lines that fail to parse, yields nil.
func translateLine(line []byte, sessionKey, gatewayID string) *ingest.EventInput {
	var entry transcriptEntry
	if err := json.Unmarshal(line, &entry); err != nil {
		return nil
	}
	if entry.Type != "message" || entry.Message == nil || entry.Message.Role != "assistant" {
		return nil
	}
	msg := entry.Message
	if msg.Usage == nil {
		return nil
	}
	usage := msg.Usage

	total := usage.TotalTokens
	if total == 0 {
		total = usage.Input + usage.Output
	}

	ev := &ingest.EventInput{
		Timestamp:  entry.Timestamp,
		EventType:  string(domain.EventTurnCompleted),
		GatewayID:  gatewayID,
		SessionKey: sessionKey,
		AgentID:    agentIDFromKey(sessionKey),
		TurnID:     entry.ID,
		MessageID:  entry.ParentID,
		Tokens: &ingest.TokensInput{
			Input:  &usage.Input,
			Output: &usage.Output,
			Total:  &total,
		},
		Model: &ingest.ModelInput{
			Provider: orUnknown(msg.Provider),
			ModelID:  orUnknown(msg.Model),
		},
	}

	if cost := usage.Cost; cost != nil {
		// Cache reads and writes count toward the input side.
		inputCost := cost.Input + cost.CacheRead + cost.CacheWrite
		outputCost := cost.Output
		totalCost := cost.Total
		ev.Cost = &ingest.CostInput{
			InputCost:  &inputCost,
			OutputCost: &outputCost,
			TotalCost:  &totalCost,
		}
	}

	payload := map[string]any{}
	if msg.StopReason != "" {
		payload["stopReason"] = msg.StopReason
	}
	if msg.API != "" {
		payload["api"] = msg.API
	}
	if usage.CacheRead != nil {
		payload["cacheRead"] = *usage.CacheRead
	}
	if usage.CacheWrite != nil {
		payload["cacheWrite"] = *usage.CacheWrite
	}
	if len(payload) > 0 {
		ev.Payload = payload
	}

	return ev
}

// agentIDFromKey extracts the agent segment from a session key of the
// form "agent:<agentId>:<rest>".
func agentIDFromKey(sessionKey string) string {
	parts := strings.Split(sessionKey, ":")
	if len(parts) > 1 && parts[1] != "" {
		return parts[1]
	}
	return "unknown"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
