// Package transport defines the contract between the bot core and the
// underlying WhatsApp driver. Implementations live in the subpackages:
// webdriver (WhatsApp Web through a headless browser) and wameow
// (native multidevice protocol).
package transport

import (
	"context"
	"errors"
)

// MaxFileBytes is the largest file WhatsApp accepts for upload.
// The limit is inclusive: a file of exactly MaxFileBytes still sends.
const MaxFileBytes = 64_000_000

// FileKind selects the upload path for SendFile.
type FileKind string

const (
	FileKindOther FileKind = "other"
	FileKindImage FileKind = "img"
)

// Valid reports whether the kind is one of the supported upload paths.
func (k FileKind) Valid() bool {
	return k == FileKindOther || k == FileKindImage
}

var (
	// ErrInputNotReady is returned by LocateSendInput while the chat's
	// text entry is not available yet. Recoverable: the dispatch loop
	// backs off and retries, it is never surfaced as a handler error.
	ErrInputNotReady = errors.New("send input not ready")

	// ErrNoMessageFound is returned by GetLastMessage when the chat has
	// no readable message. Recoverable, same as ErrInputNotReady.
	ErrNoMessageFound = errors.New("no message found")

	// ErrFileTooBig is returned when a file exceeds MaxFileBytes.
	ErrFileTooBig = errors.New("file too big")

	// ErrUnknownFileType is returned for a FileKind that is neither
	// "other" nor "img".
	ErrUnknownFileType = errors.New("unknown file type")
)

// Handle is an opaque reference into transport state for a message.
// The core never inspects it; it only carries it so callers can run
// follow-up queries against the transport that produced it.
type Handle any

// LastMessage is the raw view of the newest message in the active chat.
type LastMessage struct {
	FromMe bool
	Text   string
	Handle Handle
}

// Transport drives a single WhatsApp chat. All methods block; recoverable
// failure modes are the sentinel errors above, anything else is a real
// transport fault.
type Transport interface {
	// LocateSendInput finds the chat's text entry. ErrInputNotReady when
	// the page (or connection) is not far enough along to send yet.
	LocateSendInput(ctx context.Context) error

	// GetLastMessage reads the newest message in the active chat.
	GetLastMessage(ctx context.Context) (LastMessage, error)

	// SendText submits each line as a separate message. Delivery is
	// best-effort per line: a line lost to a stale input is skipped,
	// not an error.
	SendText(ctx context.Context, lines []string) error

	// SendFile uploads the file at path using the control matching kind,
	// then waits for the send control to appear and confirms.
	SendFile(ctx context.Context, path string, kind FileKind) error

	// NavigateToChat selects the chat with the given name. Returns false
	// when no such chat exists.
	NavigateToChat(ctx context.Context, name string) (bool, error)

	// Logout ends the WhatsApp session. Best-effort: a missing
	// confirmation control is not an error.
	Logout(ctx context.Context) error

	// Close releases the underlying session resources.
	Close(ctx context.Context) error
}
