package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestErrorModeFromFlags_Precedence(t *testing.T) {
	tests := []struct {
		name                            string
		exception, traceback, propagate bool
		want                            ErrorMode
	}{
		{"default silent", false, false, false, ModeSilent},
		{"exception", true, false, false, ModeEchoException},
		{"traceback", false, true, false, ModeEchoTraceback},
		{"propagate", false, false, true, ModePropagate},
		{"propagate beats exception", true, false, true, ModePropagate},
		{"propagate beats traceback", false, true, true, ModePropagate},
		{"exception beats traceback", true, true, false, ModeEchoException},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorModeFromFlags(tt.exception, tt.traceback, tt.propagate)
			if got != tt.want {
				t.Fatalf("mode = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorPolicy_Silent(t *testing.T) {
	var sent []string
	p := &errorPolicy{mode: ModeSilent, send: func(_ context.Context, s string) {
		sent = append(sent, s)
	}}

	if err := p.handle(context.Background(), errors.New("boom")); err != nil {
		t.Fatalf("silent mode must swallow, got %v", err)
	}
	if len(sent) != 1 || sent[0] != unknownErrorText {
		t.Fatalf("sent = %v", sent)
	}
}

func TestErrorPolicy_EchoException(t *testing.T) {
	var sent []string
	p := &errorPolicy{mode: ModeEchoException, send: func(_ context.Context, s string) {
		sent = append(sent, s)
	}}

	p.handle(context.Background(), errors.New("boom"))
	if len(sent) != 1 || !strings.Contains(sent[0], "boom") {
		t.Fatalf("sent = %v", sent)
	}
	if !strings.HasPrefix(sent[0], "Error occurred:") {
		t.Fatalf("sent = %v", sent)
	}
}

func TestErrorPolicy_EchoTraceback(t *testing.T) {
	var sent []string
	p := &errorPolicy{mode: ModeEchoTraceback, send: func(_ context.Context, s string) {
		sent = append(sent, s)
	}}

	err := safeCall(func() error { panic("kaboom") })
	p.handle(context.Background(), err)
	if len(sent) != 1 {
		t.Fatalf("sent = %v", sent)
	}
	if !strings.Contains(sent[0], "kaboom") || !strings.Contains(sent[0], "goroutine") {
		t.Fatalf("expected the panic stack in %q", sent[0])
	}
}

func TestErrorPolicy_Propagate(t *testing.T) {
	p := &errorPolicy{mode: ModePropagate, send: func(context.Context, string) {
		t.Fatal("propagate mode must not send to chat")
	}}

	boom := errors.New("boom")
	if err := p.handle(context.Background(), boom); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestSafeCall_PassesThroughErrors(t *testing.T) {
	boom := errors.New("boom")
	if err := safeCall(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if err := safeCall(func() error { return nil }); err != nil {
		t.Fatalf("err = %v", err)
	}
}
