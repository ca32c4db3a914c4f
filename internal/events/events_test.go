package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testEvent() PurchaseEvent {
	return PurchaseEvent{
		ID:          "ev-1",
		OrderID:     "ord-1",
		WorkflowID:  "3",
		Title:       "Weekly SEO Report Generator",
		Amount:      29,
		Currency:    "USD",
		Provider:    "stripe",
		PurchasedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{w: w}

	if err := p.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "3" {
		t.Errorf("Key = %q, want workflow id", msg.Key)
	}
	var got PurchaseEvent
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("decoding value: %v", err)
	}
	if got != testEvent() {
		t.Errorf("event = %+v, want %+v", got, testEvent())
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("Close: err %v, closed %v", err, w.closed)
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{w: &fakeWriter{err: errors.New("broker down")}}
	err := p.Publish(context.Background(), testEvent())
	if err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Fatalf("err = %v, want wrapped broker error", err)
	}
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := p.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"purchase completed", "order_id=ord-1", "workflow_id=3", "provider=stripe"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
