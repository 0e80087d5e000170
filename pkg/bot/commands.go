package bot

import "context"

// CommandHandler is the fixed signature for command handlers. args holds
// the whitespace-split tokens after the command name; msg is the message
// that invoked the command.
type CommandHandler func(ctx context.Context, args []string, msg *Message) error

// Command is a registered command with its handler and help text.
type Command struct {
	Name    string
	Handler CommandHandler
	Help    string
}

// CommandRegistry holds the named commands of a client. Names are unique;
// re-registering a name replaces the previous command in place. Lookup is
// an exact string match against the bare (unprefixed) name.
//
// The registry is not safe for concurrent mutation; the owning client is
// the only writer.
type CommandRegistry struct {
	commands map[string]Command
	order    []string
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]Command),
	}
}

// Register inserts or overwrites the command unconditionally. Last
// registration wins; the original registration position is kept so help
// listings stay stable.
func (r *CommandRegistry) Register(name string, handler CommandHandler, help string) error {
	if handler == nil {
		return ErrNilHandler
	}
	if _, exists := r.commands[name]; !exists {
		r.order = append(r.order, name)
	}
	r.commands[name] = Command{Name: name, Handler: handler, Help: help}
	return nil
}

// Remove deletes the command. ErrCommandNotFound when absent.
func (r *CommandRegistry) Remove(name string) error {
	if _, ok := r.commands[name]; !ok {
		return ErrCommandNotFound
	}
	delete(r.commands, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Lookup resolves a bare command name (prefix already stripped by the
// dispatcher) to its command.
func (r *CommandRegistry) Lookup(token string) (Command, bool) {
	cmd, ok := r.commands[token]
	return cmd, ok
}

// Names returns the registered command names in registration order.
func (r *CommandRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *CommandRegistry) Len() int {
	return len(r.commands)
}
