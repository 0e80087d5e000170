package bot

import "context"

// MessageListener runs for every newly observed message, before command
// dispatch.
type MessageListener func(ctx context.Context, msg *Message) error

// LoopListener runs once per poll cycle, before the message fetch.
type LoopListener func(ctx context.Context) error

// ListenerRegistry holds the ordered message and loop listeners of a
// client. Listeners have no identity beyond registration order;
// duplicates are allowed and all run.
type ListenerRegistry struct {
	onMessage []MessageListener
	onLoop    []LoopListener
}

func NewListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{}
}

// AddMessageListener appends fn and returns it unchanged, so call sites
// can keep composing with the registered function.
func (r *ListenerRegistry) AddMessageListener(fn MessageListener) MessageListener {
	if fn != nil {
		r.onMessage = append(r.onMessage, fn)
	}
	return fn
}

// AddLoopListener appends fn and returns it unchanged.
func (r *ListenerRegistry) AddLoopListener(fn LoopListener) LoopListener {
	if fn != nil {
		r.onLoop = append(r.onLoop, fn)
	}
	return fn
}

// RunMessageListeners invokes every message listener in registration
// order. Each invocation is isolated: a failing listener is reported to
// sink and later listeners still run. sink returning an error aborts the
// remaining listeners (propagate mode).
func (r *ListenerRegistry) RunMessageListeners(ctx context.Context, msg *Message, sink func(error) error) error {
	for _, fn := range r.onMessage {
		listener := fn
		err := safeCall(func() error { return listener(ctx, msg) })
		if err == nil {
			continue
		}
		if abort := sink(err); abort != nil {
			return abort
		}
	}
	return nil
}

// RunLoopListeners invokes every loop listener with the same isolation
// semantics as RunMessageListeners.
func (r *ListenerRegistry) RunLoopListeners(ctx context.Context, sink func(error) error) error {
	for _, fn := range r.onLoop {
		listener := fn
		err := safeCall(func() error { return listener(ctx) })
		if err == nil {
			continue
		}
		if abort := sink(err); abort != nil {
			return abort
		}
	}
	return nil
}
