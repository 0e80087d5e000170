package bot

import (
	"context"
	"errors"
	"testing"
)

func TestListenerRegistry_ReturnsSameFunction(t *testing.T) {
	r := NewListenerRegistry()
	called := false
	fn := func(context.Context, *Message) error {
		called = true
		return nil
	}

	got := r.AddMessageListener(fn)
	if got == nil {
		t.Fatal("expected the registered function back")
	}
	got(context.Background(), nil)
	if !called {
		t.Fatal("returned function should be the registered one")
	}
}

func TestListenerRegistry_RunInRegistrationOrder(t *testing.T) {
	r := NewListenerRegistry()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		r.AddMessageListener(func(context.Context, *Message) error {
			order = append(order, i)
			return nil
		})
	}

	sink := func(err error) error { return nil }
	if err := r.RunMessageListeners(context.Background(), &Message{}, sink); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("order = %v", order)
	}
}

func TestListenerRegistry_FailureDoesNotStopLaterListeners(t *testing.T) {
	r := NewListenerRegistry()
	boom := errors.New("boom")
	ran := false
	r.AddLoopListener(func(context.Context) error { return boom })
	r.AddLoopListener(func(context.Context) error {
		ran = true
		return nil
	})

	var seen []error
	sink := func(err error) error {
		seen = append(seen, err)
		return nil
	}
	if err := r.RunLoopListeners(context.Background(), sink); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !ran {
		t.Fatal("second listener should still run")
	}
	if len(seen) != 1 || !errors.Is(seen[0], boom) {
		t.Fatalf("sink saw %v", seen)
	}
}

func TestListenerRegistry_PanicIsIsolated(t *testing.T) {
	r := NewListenerRegistry()
	r.AddMessageListener(func(context.Context, *Message) error {
		panic("kaboom")
	})

	var seen error
	sink := func(err error) error {
		seen = err
		return nil
	}
	if err := r.RunMessageListeners(context.Background(), &Message{}, sink); err != nil {
		t.Fatalf("run: %v", err)
	}
	var pe *PanicError
	if !errors.As(seen, &pe) {
		t.Fatalf("expected PanicError, got %v", seen)
	}
	if pe.Value != "kaboom" {
		t.Fatalf("panic value = %v", pe.Value)
	}
	if len(pe.Stack) == 0 {
		t.Fatal("expected a captured stack")
	}
}

func TestListenerRegistry_SinkAbortStopsRemaining(t *testing.T) {
	r := NewListenerRegistry()
	ran := false
	r.AddLoopListener(func(context.Context) error { return errors.New("boom") })
	r.AddLoopListener(func(context.Context) error {
		ran = true
		return nil
	})

	abort := errors.New("abort")
	err := r.RunLoopListeners(context.Background(), func(error) error { return abort })
	if !errors.Is(err, abort) {
		t.Fatalf("err = %v, want abort", err)
	}
	if ran {
		t.Fatal("remaining listeners must not run after an abort")
	}
}

func TestListenerRegistry_DuplicatesAllRun(t *testing.T) {
	r := NewListenerRegistry()
	count := 0
	fn := func(context.Context) error {
		count++
		return nil
	}
	r.AddLoopListener(fn)
	r.AddLoopListener(fn)

	r.RunLoopListeners(context.Background(), func(error) error { return nil })
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}
