// Package bot implements the WhatsApp bot client: the command and
// listener registries, the error policy and the polling dispatch loop.
// The underlying chat driver is abstracted behind transport.Transport.
package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/wabot-dev/wabot/pkg/logger"
	"github.com/wabot-dev/wabot/pkg/ratelimit"
	"github.com/wabot-dev/wabot/pkg/transport"
)

const (
	// DefaultPrefix is the command prefix used when none is configured.
	DefaultPrefix = "!"

	defaultPollInterval = 500 * time.Millisecond
	defaultInputBackoff = 5 * time.Second
	releaseTimeout      = 15 * time.Second

	commandNotFoundText = "Command not found!"
	badHandlerText      = "An error occurred while executing the command. The command handler is not callable."

	helpCommandName = "help"
	helpCommandHelp = "Returns help messages"
)

// Options configures a Client. The zero value gives the defaults:
// prefix "!", silent error handling, half-second polling.
type Options struct {
	// Prefix is the command prefix. Only its first character is compared
	// against incoming messages.
	Prefix string

	// ErrorMode selects how handler and listener failures are surfaced.
	ErrorMode ErrorMode

	// PollInterval is the sleep between dispatch cycles.
	PollInterval time.Duration

	// InputBackoff is the sleep before retrying when the chat's text
	// entry is not available yet.
	InputBackoff time.Duration

	// SendLimiter throttles outbound messages. Nil means unlimited.
	SendLimiter *ratelimit.Limiter
}

// Client is a WhatsApp bot. Commands and listeners are registered up
// front, then Run blocks driving the dispatch loop until Stop is called
// (or the error policy propagates a handler failure).
//
// The dispatch loop is the only goroutine that reads messages; registry
// mutations from other goroutines are serialized behind one mutex.
type Client struct {
	tr        transport.Transport
	commands  *CommandRegistry
	listeners *ListenerRegistry
	policy    *errorPolicy
	limiter   *ratelimit.Limiter

	prefix       string
	pollInterval time.Duration
	inputBackoff time.Duration

	running  atomic.Bool
	lastSeen string

	mu sync.Mutex
}

// New creates a client on top of the given transport. The built-in help
// command is registered immediately; RemoveCommand("help") takes it out.
func New(tr transport.Transport, opts Options) *Client {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	inputBackoff := opts.InputBackoff
	if inputBackoff <= 0 {
		inputBackoff = defaultInputBackoff
	}

	c := &Client{
		tr:           tr,
		commands:     NewCommandRegistry(),
		listeners:    NewListenerRegistry(),
		limiter:      opts.SendLimiter,
		prefix:       prefix,
		pollInterval: pollInterval,
		inputBackoff: inputBackoff,
	}
	c.policy = &errorPolicy{mode: opts.ErrorMode, send: c.notify}
	c.commands.Register(helpCommandName, c.helpCommand, helpCommandHelp)
	return c
}

// SetCommandPrefix replaces the command prefix. Like the registries this
// is meant to be called during setup, not concurrently with Run.
func (c *Client) SetCommandPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefix = prefix
}

// SetChat selects the chat the client reads from and sends to.
func (c *Client) SetChat(ctx context.Context, name string) error {
	found, err := c.tr.NavigateToChat(ctx, name)
	if err != nil {
		return fmt.Errorf("navigate to chat: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrUnknownChat, name)
	}
	logger.InfoCF("bot", "chat selected", map[string]any{"chat": name})
	return nil
}

// RegisterCommand adds or replaces a command. Last registration wins.
func (c *Client) RegisterCommand(name string, handler CommandHandler, help string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commands.Register(name, handler, help)
}

// RemoveCommand deletes a command. ErrCommandNotFound when absent.
func (c *Client) RemoveCommand(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commands.Remove(name)
}

// OnMessage registers a listener for every newly observed message and
// returns the same function for call-site composition.
func (c *Client) OnMessage(fn MessageListener) MessageListener {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listeners.AddMessageListener(fn)
}

// OnLoop registers a listener that runs once per poll cycle, before the
// message fetch.
func (c *Client) OnLoop(fn LoopListener) LoopListener {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listeners.AddLoopListener(fn)
}

// SendMessage sends text to the active chat, one submission per line.
// Blank lines are dropped; a message of only blank lines sends nothing.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil
	}
	if err := c.limiter.Wait(ctx, len(lines)); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return c.tr.SendText(ctx, lines)
}

// SendFile uploads the file at path to the active chat. The kind selects
// the upload control: transport.FileKindImage sends it as a picture,
// transport.FileKindOther as a document. Validation happens before any
// upload attempt; the 64 MB limit is inclusive.
func (c *Client) SendFile(ctx context.Context, path string, kind transport.FileKind) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if info.Size() > transport.MaxFileBytes {
		return fmt.Errorf("%w: %d bytes", transport.ErrFileTooBig, info.Size())
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", transport.ErrUnknownFileType, kind)
	}
	return c.tr.SendFile(ctx, path, kind)
}

// GetLastMessage reads the newest message in the active chat.
func (c *Client) GetLastMessage(ctx context.Context) (*Message, error) {
	last, err := c.tr.GetLastMessage(ctx)
	if err != nil {
		if errors.Is(err, transport.ErrNoMessageFound) {
			return nil, ErrCannotFindMessage
		}
		return nil, err
	}
	return &Message{FromMe: last.FromMe, Text: last.Text, Handle: last.Handle}, nil
}

// Running reports whether the dispatch loop is active.
func (c *Client) Running() bool {
	return c.running.Load()
}

// Stop requests graceful termination. It takes effect at the next cycle
// boundary; a cycle always completes once started. The session is
// released (logout, close) when Run returns.
func (c *Client) Stop() {
	c.running.Store(false)
}

// Run executes the dispatch loop until Stop is called, ctx is cancelled,
// the transport fails hard, or (in propagate mode) a handler error is
// re-raised. Each cycle: wait for the send input, run loop listeners,
// fetch the latest message, and dispatch it if its text is new.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("client already running")
	}
	defer c.release()

	logger.InfoCF("bot", "dispatch loop starting", map[string]any{
		"prefix":     c.currentPrefix(),
		"error_mode": c.policy.mode.String(),
	})

	for c.running.Load() {
		if err := ctx.Err(); err != nil {
			c.running.Store(false)
			return err
		}

		// AwaitingInput: a missing text entry is recoverable, the page
		// may still be loading or the user has not scanned the QR yet.
		if err := c.tr.LocateSendInput(ctx); err != nil {
			if errors.Is(err, transport.ErrInputNotReady) {
				logger.DebugC("bot", "send input not ready, backing off")
				if !c.sleep(ctx, c.inputBackoff) {
					c.running.Store(false)
					return ctx.Err()
				}
				continue
			}
			c.running.Store(false)
			return fmt.Errorf("locate send input: %w", err)
		}

		// Polling: loop listeners run before the fetch.
		if err := c.listeners.RunLoopListeners(ctx, c.sinkFor(ctx)); err != nil {
			c.running.Store(false)
			return err
		}

		last, err := c.tr.GetLastMessage(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrNoMessageFound) {
				if !c.sleep(ctx, c.pollInterval) {
					c.running.Store(false)
					return ctx.Err()
				}
				continue
			}
			c.running.Store(false)
			return fmt.Errorf("get last message: %w", err)
		}

		if err := c.dispatch(ctx, last); err != nil {
			c.running.Store(false)
			return err
		}

		if !c.sleep(ctx, c.pollInterval) {
			c.running.Store(false)
			return ctx.Err()
		}
	}
	return nil
}

// dispatch routes one fetched message: dedup against the previously seen
// text, message listeners, then command resolution. The returned error
// is non-nil only when the error policy propagates.
func (c *Client) dispatch(ctx context.Context, last transport.LastMessage) error {
	seen := c.lastSeen
	// Overwritten before any handler runs so a handler's own side
	// effects cannot come back around as a "new" message.
	c.lastSeen = last.Text
	if last.Text == seen {
		return nil
	}

	msg := &Message{FromMe: last.FromMe, Text: last.Text, Handle: last.Handle}
	logger.DebugCF("bot", "new message", map[string]any{
		"from_me": msg.FromMe,
		"length":  len(msg.Text),
	})

	if err := c.listeners.RunMessageListeners(ctx, msg, c.sinkFor(ctx)); err != nil {
		return err
	}

	if msg.Text == "" {
		return nil
	}

	prefix, prefixSize := utf8.DecodeRuneInString(c.currentPrefix())
	if prefixSize == 0 {
		// Non-empty message but nothing to compare the first character
		// against. This is a configuration fault, not a handler error.
		return fmt.Errorf("%w: prefix is empty", ErrInvalidPrefix)
	}
	first, _ := utf8.DecodeRuneInString(msg.Text)
	if first != prefix {
		// Ordinary chat, not a command.
		return nil
	}

	fields := strings.Fields(msg.Text[prefixSize:])
	if len(fields) == 0 {
		c.notify(ctx, commandNotFoundText)
		return nil
	}

	c.mu.Lock()
	cmd, ok := c.commands.Lookup(fields[0])
	c.mu.Unlock()
	if !ok {
		c.notify(ctx, commandNotFoundText)
		return nil
	}

	return c.invoke(ctx, cmd, fields[1:], msg)
}

// invoke runs a command handler isolated by the error policy. A command
// without a callable handler is a dispatch fault reported to the chat,
// distinct from a runtime failure inside the handler.
func (c *Client) invoke(ctx context.Context, cmd Command, args []string, msg *Message) error {
	if cmd.Handler == nil {
		c.notify(ctx, badHandlerText)
		return nil
	}
	logger.DebugCF("bot", "invoking command", map[string]any{
		"command": cmd.Name,
		"args":    len(args),
	})
	if err := safeCall(func() error { return cmd.Handler(ctx, args, msg) }); err != nil {
		logger.WarnCF("bot", "command failed", map[string]any{
			"command": cmd.Name,
			"error":   err.Error(),
		})
		return c.policy.handle(ctx, err)
	}
	return nil
}

// helpCommand is the built-in help. Without arguments it lists every
// registered command on one line; with one argument it sends that
// command's help text.
func (c *Client) helpCommand(ctx context.Context, args []string, _ *Message) error {
	c.mu.Lock()
	names := c.commands.Names()
	var cmd Command
	var ok bool
	if len(args) > 0 {
		cmd, ok = c.commands.Lookup(args[0])
	}
	c.mu.Unlock()

	if len(args) == 0 {
		return c.SendMessage(ctx, "List of commands:\n"+strings.Join(names, ", "))
	}
	if !ok {
		return c.SendMessage(ctx, commandNotFoundText)
	}
	if cmd.Help == "" {
		return c.SendMessage(ctx, "No help available for "+cmd.Name)
	}
	return c.SendMessage(ctx, cmd.Help)
}

func (c *Client) sinkFor(ctx context.Context) func(error) error {
	return func(err error) error {
		logger.WarnCF("bot", "listener failed", map[string]any{"error": err.Error()})
		return c.policy.handle(ctx, err)
	}
}

// notify sends a dispatch-engine notice to the chat best-effort.
func (c *Client) notify(ctx context.Context, text string) {
	if err := c.SendMessage(ctx, text); err != nil {
		logger.WarnCF("bot", "failed to send notice", map[string]any{"error": err.Error()})
	}
}

func (c *Client) currentPrefix() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefix
}

// sleep pauses between cycles; false means ctx ended first.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// release ends the session once the loop has exited: logout is
// best-effort, close always runs.
func (c *Client) release() {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := c.tr.Logout(ctx); err != nil {
		logger.WarnCF("bot", "logout failed", map[string]any{"error": err.Error()})
	}
	if err := c.tr.Close(ctx); err != nil {
		logger.WarnCF("bot", "transport close failed", map[string]any{"error": err.Error()})
	}
	logger.InfoC("bot", "session released")
}

// splitLines splits text on line breaks, dropping blank lines. Sending a
// blank line submits nothing in WhatsApp anyway.
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
