package bot

import "errors"

var (
	// ErrUnknownChat is returned by SetChat when no chat with the given
	// name exists in the sidebar.
	ErrUnknownChat = errors.New("unknown chat")

	// ErrCommandNotFound is returned by RemoveCommand for a name that
	// was never registered (or was already removed).
	ErrCommandNotFound = errors.New("command not found")

	// ErrCannotFindMessage is returned by GetLastMessage when the chat
	// holds no readable message.
	ErrCannotFindMessage = errors.New("cannot find message")

	// ErrInvalidPrefix is returned by Run when a non-empty message was
	// fetched but the configured prefix makes the first-character
	// comparison structurally impossible.
	ErrInvalidPrefix = errors.New("invalid command prefix")

	// ErrNilHandler is returned when a command or listener is registered
	// with a nil function.
	ErrNilHandler = errors.New("nil handler")
)
