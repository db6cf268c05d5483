package alerts

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/openclaw/observatory/internal/domain"
)

// conditionKind tags the predicate family a rule condition belongs to.
type conditionKind int

const (
	condInvalid conditionKind = iota
	condPercentThreshold
	condTypeEquals
	condDurationThreshold
)

var (
	percentPattern  = regexp.MustCompile(`tokens_percent_used\s*>\s*([\d.]+)`)
	typePattern     = regexp.MustCompile(`event_type\s*=\s*(\S+)`)
	durationPattern = regexp.MustCompile(`duration_ms\s*>\s*(\d+)`)
)

// Condition is a parsed rule condition. The grammar is a closed set of
// three predicate families; anything else parses to an invalid
// condition that never matches.
type Condition struct {
	kind              conditionKind
	percentThreshold  float64
	eventType         string
	durationThreshold int64
}

// ParseCondition recognizes the predicate families in a fixed order:
// percent-used threshold, then event-type equality, then duration
// threshold. The first family whose pattern matches wins.
func ParseCondition(raw string) Condition {
	cond := strings.ToLower(raw)

	if strings.Contains(cond, "tokens_percent_used") {
		if m := percentPattern.FindStringSubmatch(cond); m != nil {
			threshold, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				return Condition{kind: condPercentThreshold, percentThreshold: threshold}
			}
		}
	}

	if strings.Contains(cond, "event_type") {
		if m := typePattern.FindStringSubmatch(cond); m != nil {
			return Condition{kind: condTypeEquals, eventType: m[1]}
		}
	}

	if strings.Contains(cond, "duration_ms") {
		if m := durationPattern.FindStringSubmatch(cond); m != nil {
			threshold, err := strconv.ParseInt(m[1], 10, 64)
			if err == nil {
				return Condition{kind: condDurationThreshold, durationThreshold: threshold}
			}
		}
	}

	return Condition{kind: condInvalid}
}

// Matches reports whether the event satisfies the condition. A
// condition referencing a measurement block the event does not carry
// never matches.
func (c Condition) Matches(ev domain.Event) bool {
	switch c.kind {
	case condPercentThreshold:
		if ev.Tokens == nil || ev.Tokens.PercentUsed == nil {
			return false
		}
		return *ev.Tokens.PercentUsed > c.percentThreshold
	case condTypeEquals:
		return ev.EventType == c.eventType
	case condDurationThreshold:
		if ev.Timing == nil || ev.Timing.DurationMs == nil {
			return false
		}
		return *ev.Timing.DurationMs > c.durationThreshold
	default:
		return false
	}
}
