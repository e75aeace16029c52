package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Notify(ctx context.Context, a Alert) error {
	s.calls++
	return s.err
}

func TestMulti_NotifiesAllAndCombinesErrors(t *testing.T) {
	a := &stubNotifier{err: errors.New("a down")}
	b := &stubNotifier{}
	c := &stubNotifier{err: errors.New("c down")}

	err := Multi{a, nil, b, c}.Notify(context.Background(), downAlert())
	if a.calls != 1 || b.calls != 1 || c.calls != 1 {
		t.Fatalf("calls = %d/%d/%d, want 1/1/1", a.calls, b.calls, c.calls)
	}
	if err == nil || !strings.Contains(err.Error(), "a down") || !strings.Contains(err.Error(), "c down") {
		t.Fatalf("err = %v, want both failures", err)
	}
}

func TestAlert_Text(t *testing.T) {
	text := downAlert().Text()
	for _, want := range []string{"Target: tcp/cf", "Address: 1.1.1.1:443", "Latency: 2000 ms", "Reason: i/o timeout", "Checked: 2024-05-01T12:00:00Z"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
}

func TestLog_WritesAlertEntry(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := NewLog(zap.New(core))

	if err := n.Notify(context.Background(), downAlert()); err != nil {
		t.Fatal(err)
	}
	entries := logs.FilterMessage("alert").All()
	if len(entries) != 1 {
		t.Fatalf("got %d alert entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["target"] != "tcp/cf" || fields["down"] != true {
		t.Fatalf("fields = %v", fields)
	}
}
