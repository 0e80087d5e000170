package wameow

import (
	"context"
	"testing"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/wabot-dev/wabot/pkg/transport"
)

func TestMessageText(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil", nil, ""},
		{"conversation", &waE2E.Message{Conversation: proto.String("hello")}, "hello"},
		{"extended text", &waE2E.Message{
			ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("linked")},
		}, "linked"},
		{"image caption", &waE2E.Message{
			ImageMessage: &waE2E.ImageMessage{Caption: proto.String("look")},
		}, "look"},
		{"image without caption", &waE2E.Message{
			ImageMessage: &waE2E.ImageMessage{},
		}, ""},
		{"document caption", &waE2E.Message{
			DocumentMessage: &waE2E.DocumentMessage{Caption: proto.String("report")},
		}, "report"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := messageText(tt.msg); got != tt.want {
				t.Errorf("messageText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheMessage_FiltersByActiveChat(t *testing.T) {
	active := types.NewJID("31612345678", types.DefaultUserServer)
	other := types.NewJID("31687654321", types.DefaultUserServer)

	d := &Driver{chat: active}

	d.cacheMessage(incoming(other, "wrong chat"))
	if _, err := d.GetLastMessage(context.Background()); err != transport.ErrNoMessageFound {
		t.Fatalf("message from another chat was cached, err = %v", err)
	}

	d.cacheMessage(incoming(active, "right chat"))
	last, err := d.GetLastMessage(context.Background())
	if err != nil {
		t.Fatalf("GetLastMessage: %v", err)
	}
	if last.Text != "right chat" || last.FromMe {
		t.Fatalf("cached message = %+v", last)
	}
}

func TestCacheMessage_IgnoresStatusBroadcast(t *testing.T) {
	status := types.NewJID("status", types.BroadcastServer)
	d := &Driver{chat: status}

	d.cacheMessage(incoming(status, "status update"))
	if _, err := d.GetLastMessage(context.Background()); err != transport.ErrNoMessageFound {
		t.Fatalf("status broadcast was cached, err = %v", err)
	}
}

func TestCacheMessage_NoActiveChat(t *testing.T) {
	d := &Driver{}
	d.cacheMessage(incoming(types.NewJID("31612345678", types.DefaultUserServer), "early"))
	if _, err := d.GetLastMessage(context.Background()); err != transport.ErrNoMessageFound {
		t.Fatalf("message cached before a chat was selected, err = %v", err)
	}
}

func TestNoteOwnMessage(t *testing.T) {
	d := &Driver{chat: types.NewJID("31612345678", types.DefaultUserServer)}
	d.noteOwnMessage("sent by us")

	last, err := d.GetLastMessage(context.Background())
	if err != nil {
		t.Fatalf("GetLastMessage: %v", err)
	}
	if !last.FromMe || last.Text != "sent by us" {
		t.Fatalf("own message = %+v", last)
	}
}

func incoming(chat types.JID, text string) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat},
		},
		Message: &waE2E.Message{Conversation: proto.String(text)},
	}
}
