package notifier

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkRecorder struct {
	mu    sync.Mutex
	texts []string
	sent  chan string
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{sent: make(chan string, 16)}
}

func (s *sinkRecorder) SendText(text string) error {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	s.sent <- text
	return nil
}

func (s *sinkRecorder) wait(t *testing.T) string {
	t.Helper()
	select {
	case text := <-s.sent:
		return text
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return ""
	}
}

func (s *sinkRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

func TestDispatcherRateLimit(t *testing.T) {
	sink := newSinkRecorder()
	d := NewDispatcher(sink, time.Minute)

	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	d.SetClock(func() time.Time { return now })

	d.Notify("trade_opened", "opened", LevelInfo, nil)
	sink.wait(t)

	t.Run("repeat within the window is suppressed", func(t *testing.T) {
		d.Notify("trade_opened", "opened again", LevelInfo, nil)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, sink.count())
	})

	t.Run("different event is independent", func(t *testing.T) {
		d.Notify("trade_closed", "closed", LevelInfo, nil)
		sink.wait(t)
	})

	t.Run("window expiry re-admits the event", func(t *testing.T) {
		now = now.Add(61 * time.Second)
		d.Notify("trade_opened", "opened later", LevelInfo, nil)
		sink.wait(t)
	})
}

func TestFormat(t *testing.T) {
	text := Format("liquidation_risk", "Position is approaching its liquidation price", LevelCritical, map[string]any{
		"distance_pct":  4.5,
		"current_price": 50000.0,
	})

	require.Contains(t, text, "🚨")
	assert.Contains(t, text, "*liquidation_risk*")
	assert.Contains(t, text, "Position is approaching its liquidation price")
	// keys render sorted, floats with four decimals
	assert.Contains(t, text, "current_price: 50000.0000\ndistance_pct: 4.5000")
}

func TestFormatLevels(t *testing.T) {
	assert.Contains(t, Format("e", "m", LevelWarning, nil), "⚠️")
	assert.Contains(t, Format("e", "m", LevelInfo, nil), "ℹ️")
	assert.NotContains(t, Format("e", "m", LevelInfo, nil), "```")
}

func TestNilDispatcherIsSafe(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() {
		d.Notify("trade_opened", "opened", LevelInfo, nil)
	})
}
