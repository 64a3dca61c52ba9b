package flockgate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newAuditedGate(t *testing.T, sink AuditSink) *gateFixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	provider := newFakeProvider()
	provider.addAccount(memberIdentity())

	cfg := DefaultConfig()
	cfg.ContextID = "test-ctx"

	gate, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProvider(provider).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(gate.Close)

	return &gateFixture{gate: gate, provider: provider, redis: rdb, mini: mr}
}

func collectEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %q event arrived", eventType)
		}
	}
}

func TestAuditSignInLifecycle(t *testing.T) {
	sink := NewChannelSink(64)
	f := newAuditedGate(t, sink)

	mustSignIn(t, f, "member@example.com")
	ev := collectEvent(t, sink, "sign_in_success")
	if ev.UserID != "u-member" || ev.Role != "member" || !ev.Success {
		t.Fatalf("unexpected success event %+v", ev)
	}
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Fatalf("event missing identity fields: %+v", ev)
	}

	f.gate.SignOut(context.Background())
	ev = collectEvent(t, sink, "sign_out")
	if ev.UserID != "u-member" {
		t.Fatalf("sign-out event should name who left, got %+v", ev)
	}
}

func TestAuditFailureCarriesError(t *testing.T) {
	sink := NewChannelSink(64)
	f := newAuditedGate(t, sink)

	_, _ = f.gate.SignIn(context.Background(), "member@example.com", "wrong")
	ev := collectEvent(t, sink, "sign_in_failure")
	if ev.Success || ev.Error == "" {
		t.Fatalf("failure event must carry the error, got %+v", ev)
	}
	if ev.Email != "member@example.com" {
		t.Fatalf("failure event should record the email, got %+v", ev)
	}
}

func TestAuditNavigationDenied(t *testing.T) {
	sink := NewChannelSink(64)
	f := newAuditedGate(t, sink)

	f.gate.CanNavigate("/admin")
	ev := collectEvent(t, sink, "navigation_denied")
	if ev.Metadata["path"] != "/admin" || ev.Metadata["redirect_to"] != "/" {
		t.Fatalf("denial event should record path and redirect, got %+v", ev)
	}
}

func TestAuditEventCarriesClientIP(t *testing.T) {
	sink := NewChannelSink(64)
	f := newAuditedGate(t, sink)

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	if _, err := f.gate.SignIn(ctx, "member@example.com", "correctpw"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	ev := collectEvent(t, sink, "sign_in_success")
	if ev.IP != "203.0.113.9" {
		t.Fatalf("expected caller IP on the event, got %q", ev.IP)
	}
}

func TestJSONWriterSinkEmitsOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{EventType: "sign_in_success", UserID: "u-1", Success: true})
	sink.Emit(context.Background(), AuditEvent{EventType: "sign_out", UserID: "u-1", Success: true})

	scanner := bufio.NewScanner(strings.NewReader(buf.String()))
	var lines int
	for scanner.Scan() {
		lines++
		var ev AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		if ev.UserID != "u-1" {
			t.Fatalf("line %d lost fields: %+v", lines, ev)
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	// A sink that never returns until allowed, to back up the queue.
	block := make(chan struct{})
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, blockingSink{block})

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "sign_out"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops once the buffer filled")
	}

	close(block)
	d.Close()
}

func TestAuditDispatcherDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16, DropIfFull: false}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "sign_out"})
	}
	d.Close()

	var got int
	for {
		select {
		case <-sink.Events():
			got++
		default:
			if got != 5 {
				t.Fatalf("expected all 5 events delivered before Close returned, got %d", got)
			}
			return
		}
	}
}

func TestAuditEmitAfterCloseIsNoOp(t *testing.T) {
	sink := NewChannelSink(4)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4, DropIfFull: true}, sink)
	d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: "sign_out"})

	select {
	case ev := <-sink.Events():
		t.Fatalf("closed dispatcher delivered %+v", ev)
	default:
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(ctx context.Context, _ AuditEvent) {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
}
