// Package notifier delivers trade lifecycle events to external channels.
// The Notifier interface is injected into every component that reports
// state changes; there is no package level singleton.
package notifier

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"aitrader/internal/logger"
)

type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Notifier is the fire-and-forget notification capability. Implementations
// must never propagate delivery failures back into the trading path.
type Notifier interface {
	Notify(event, message string, level Level, fields map[string]any)
}

// TextNotifier is the minimal delivery channel (Telegram, email, webhook).
type TextNotifier interface {
	SendText(text string) error
}

// Nop discards all notifications. Used when no channel is configured and
// as the default in tests.
type Nop struct{}

func (Nop) Notify(event, message string, level Level, fields map[string]any) {}

// Dispatcher formats events and forwards them to a text channel, rate
// limited per event name so a flapping condition cannot flood the channel.
type Dispatcher struct {
	sink      TextNotifier
	rateLimit time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
	nowFn    func() time.Time
}

func NewDispatcher(sink TextNotifier, rateLimit time.Duration) *Dispatcher {
	if rateLimit <= 0 {
		rateLimit = time.Minute
	}
	return &Dispatcher{
		sink:      sink,
		rateLimit: rateLimit,
		lastSent:  make(map[string]time.Time),
		nowFn:     time.Now,
	}
}

// SetClock overrides the clock used for rate limiting.
func (d *Dispatcher) SetClock(fn func() time.Time) {
	if fn != nil {
		d.nowFn = fn
	}
}

func (d *Dispatcher) Notify(event, message string, level Level, fields map[string]any) {
	if d == nil || d.sink == nil {
		return
	}
	if !d.allow(event) {
		logger.Debugf("notify %s suppressed by rate limit", event)
		return
	}
	text := Format(event, message, level, fields)
	go func() {
		if err := d.sink.SendText(text); err != nil {
			logger.Errorf("notify %s delivery failed: %v", event, err)
		}
	}()
}

func (d *Dispatcher) allow(event string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.nowFn()
	if last, ok := d.lastSent[event]; ok && now.Sub(last) < d.rateLimit {
		return false
	}
	d.lastSent[event] = now
	return true
}

// Format renders an event as a Markdown message with its structured fields
// listed one per line, keys sorted for stable output.
func Format(event, message string, level Level, fields map[string]any) string {
	var b strings.Builder
	b.WriteString(levelIcon(level))
	b.WriteString(" *")
	b.WriteString(event)
	b.WriteString("*\n")
	b.WriteString(message)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n```\n")
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("%s: %v\n", k, formatField(fields[k])))
		}
		b.WriteString("```")
	}
	return b.String()
}

func formatField(v any) string {
	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("%.4f", val)
	case float32:
		return fmt.Sprintf("%.4f", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func levelIcon(level Level) string {
	switch level {
	case LevelCritical:
		return "🚨"
	case LevelWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
