// Package wameow implements the transport contract on the native
// WhatsApp multidevice protocol via whatsmeow. Unlike the webdriver
// transport there is no page to scrape: incoming messages arrive as
// events and the newest one per chat is cached for the poll loop.
package wameow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "modernc.org/sqlite"

	"github.com/wabot-dev/wabot/pkg/config"
	"github.com/wabot-dev/wabot/pkg/logger"
	"github.com/wabot-dev/wabot/pkg/transport"
)

// Driver implements transport.Transport over whatsmeow.
type Driver struct {
	client    *whatsmeow.Client
	container *sqlstore.Container

	mu   sync.Mutex
	chat types.JID
	last *transport.LastMessage
}

var _ transport.Transport = (*Driver)(nil)

// Connect opens the device store, requires a linked device (see Link)
// and connects to WhatsApp.
func Connect(ctx context.Context, cfg config.WameowConfig) (*Driver, error) {
	container, err := openContainer(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	if device.ID == nil {
		return nil, errors.New("no linked WhatsApp device found; run 'wabot link' first")
	}

	d := &Driver{
		client:    whatsmeow.NewClient(device, waLog.Noop),
		container: container,
	}
	d.client.AddEventHandler(d.handleEvent)

	if err := d.client.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	logger.InfoC("wameow", "WhatsApp connection established")
	return d, nil
}

func openContainer(ctx context.Context, dbPath string) (*sqlstore.Container, error) {
	dbPath = config.ExpandHome(dbPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath)
	container, err := sqlstore.New(ctx, "sqlite", dsn, waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}
	return container, nil
}

func (d *Driver) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		d.cacheMessage(v)
	case *events.Connected:
		logger.InfoC("wameow", "WhatsApp connected")
	case *events.Disconnected:
		logger.WarnC("wameow", "WhatsApp disconnected")
	case *events.LoggedOut:
		logger.ErrorCF("wameow", "WhatsApp logged out", map[string]any{
			"reason": v.Reason,
		})
	}
}

func (d *Driver) cacheMessage(msg *events.Message) {
	// Status broadcasts are not chat traffic.
	if msg.Info.Chat.User == "status" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chat.IsEmpty() || msg.Info.Chat != d.chat {
		return
	}
	d.last = &transport.LastMessage{
		FromMe: msg.Info.IsFromMe,
		Text:   messageText(msg.Message),
		Handle: msg,
	}
}

// messageText extracts the text body of a message; media without a
// caption reads as empty, like the browser transport.
func messageText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if t := msg.GetConversation(); t != "" {
		return t
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetCaption()
	}
	return ""
}

// LocateSendInput reports ready once the connection is up and a chat is
// selected. There is no DOM element here; "input" is the ability to send.
func (d *Driver) LocateSendInput(_ context.Context) error {
	d.mu.Lock()
	chatSet := !d.chat.IsEmpty()
	d.mu.Unlock()

	if !d.client.IsConnected() || !chatSet {
		return transport.ErrInputNotReady
	}
	return nil
}

func (d *Driver) GetLastMessage(_ context.Context) (transport.LastMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return transport.LastMessage{}, transport.ErrNoMessageFound
	}
	return *d.last, nil
}

func (d *Driver) SendText(ctx context.Context, lines []string) error {
	chat, err := d.activeChat()
	if err != nil {
		return err
	}
	for _, line := range lines {
		if line == "" {
			continue
		}
		_, err := d.client.SendMessage(ctx, chat, &waE2E.Message{
			Conversation: proto.String(line),
		})
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
		d.noteOwnMessage(line)
	}
	return nil
}

// noteOwnMessage records an outbound message as the newest one in the
// chat. The browser transport sees its own bubbles in the DOM; this
// keeps the two transports consistent for the dedup logic.
func (d *Driver) noteOwnMessage(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = &transport.LastMessage{FromMe: true, Text: text}
}

func (d *Driver) SendFile(ctx context.Context, path string, kind transport.FileKind) error {
	chat, err := d.activeChat()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	mimetype := http.DetectContentType(data)

	var msg *waE2E.Message
	switch kind {
	case transport.FileKindImage:
		uploaded, err := d.client.Upload(ctx, data, whatsmeow.MediaImage)
		if err != nil {
			return fmt.Errorf("upload image: %w", err)
		}
		msg = &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(mimetype),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uint64(len(data))),
		}}
	case transport.FileKindOther:
		uploaded, err := d.client.Upload(ctx, data, whatsmeow.MediaDocument)
		if err != nil {
			return fmt.Errorf("upload document: %w", err)
		}
		msg = &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(mimetype),
			FileName:      proto.String(filepath.Base(path)),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uint64(len(data))),
		}}
	default:
		return fmt.Errorf("%w: %q", transport.ErrUnknownFileType, kind)
	}

	if _, err := d.client.SendMessage(ctx, chat, msg); err != nil {
		return fmt.Errorf("failed to send file: %w", err)
	}
	return nil
}

// NavigateToChat resolves a chat by JID, contact name or group name and
// makes it the active chat.
func (d *Driver) NavigateToChat(ctx context.Context, name string) (bool, error) {
	jid, found, err := d.resolveChat(ctx, name)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	d.mu.Lock()
	d.chat = jid
	d.last = nil
	d.mu.Unlock()
	return true, nil
}

func (d *Driver) resolveChat(ctx context.Context, name string) (types.JID, bool, error) {
	if strings.ContainsRune(name, '@') {
		jid, err := types.ParseJID(name)
		if err != nil {
			return types.EmptyJID, false, fmt.Errorf("invalid JID %q: %w", name, err)
		}
		return jid, true, nil
	}

	contacts, err := d.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return types.EmptyJID, false, fmt.Errorf("list contacts: %w", err)
	}
	for jid, info := range contacts {
		if info.FullName == name || info.PushName == name || info.BusinessName == name {
			return jid, true, nil
		}
	}

	groups, err := d.client.GetJoinedGroups(ctx)
	if err != nil {
		return types.EmptyJID, false, fmt.Errorf("list groups: %w", err)
	}
	for _, group := range groups {
		if group.Name == name {
			return group.JID, true, nil
		}
	}

	return types.EmptyJID, false, nil
}

func (d *Driver) activeChat() (types.JID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chat.IsEmpty() {
		return types.EmptyJID, errors.New("no chat selected")
	}
	return d.chat, nil
}

func (d *Driver) Logout(ctx context.Context) error {
	if err := d.client.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (d *Driver) Close(_ context.Context) error {
	d.client.Disconnect()
	if d.container != nil {
		if err := d.container.Close(); err != nil {
			return fmt.Errorf("close device store: %w", err)
		}
	}
	return nil
}
