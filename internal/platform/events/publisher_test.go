package events

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_stub_without_url(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pub, err := New("", log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pub.Close()

	if !strings.Contains(buf.String(), "NATS_URL not set") {
		t.Errorf("expected stub warning, got %s", buf.String())
	}

	err = pub.Publish(context.Background(), SubjectWatchCompleted, Event{
		EventID:   "e1",
		EventType: SubjectWatchCompleted,
		Data:      []byte(`{"user_id":"u1"}`),
	})
	if err != nil {
		t.Errorf("stub Publish should succeed, got %v", err)
	}
	if !strings.Contains(buf.String(), `"event_id":"e1"`) {
		t.Errorf("expected skipped publish to be logged, got %s", buf.String())
	}
}
