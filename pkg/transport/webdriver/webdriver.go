// Package webdriver drives WhatsApp Web through a headless Chromium
// instance. It is the page-plumbing side of the bot: locating the send
// input, reading the newest message bubble, clicking through the attach
// and logout menus.
package webdriver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/wabot-dev/wabot/pkg/config"
	"github.com/wabot-dev/wabot/pkg/logger"
	"github.com/wabot-dev/wabot/pkg/transport"
)

const (
	selSendInput     = `footer div[contenteditable="true"][data-tab]`
	selMessageRow    = `div.focusable-list-item`
	selMessageText   = `.selectable-text`
	selMessageImage  = `img`
	selChatEntry     = `#pane-side span[title]`
	selAttachButton  = `footer [data-icon="attach-menu-plus"], footer [data-icon="clip"], footer [data-icon="plus"]`
	selImageInput    = `input[type="file"][accept^="image"]`
	selDocumentInput = `input[type="file"]:not([accept^="image"])`
	selSendButton    = `[data-icon="send"]`
	selMenuButton    = `header [data-icon="menu"]`
	selLogoutItem    = `li:has-text("Log out"), div[role="button"]:has-text("Log out")`
	selConfirmButton = `div[data-animate-modal-popup="true"] button:last-child`

	outgoingClass = "message-out"

	clickTimeoutMS   = 5000.0
	sendPollInterval = 500 * time.Millisecond
	sendPollTimeout  = 30 * time.Second
)

// extractTextJS reads the visible text of a message bubble, walking the
// child nodes so emoji (rendered as <img alt="...">) come through too.
const extractTextJS = `el => {
	const text = el.firstChild;
	let child = text ? text.firstChild : null;
	let ret = "";
	while (child) {
		if (child.nodeType === Node.TEXT_NODE) {
			ret += child.textContent;
		} else if (child.tagName && child.tagName.toLowerCase() === "img") {
			ret += child.alt;
		}
		child = child.nextSibling;
	}
	return ret;
}`

// Driver implements transport.Transport on top of playwright.
type Driver struct {
	pw      *playwright.Playwright
	browser playwright.BrowserContext
	page    playwright.Page
	cfg     config.WebdriverConfig
}

var _ transport.Transport = (*Driver)(nil)

// New launches the browser with a persistent profile (so the WhatsApp
// Web session survives restarts) and opens WhatsApp Web. On a fresh
// profile the user still has to scan the QR code once; until then every
// LocateSendInput call reports ErrInputNotReady.
func New(cfg config.WebdriverConfig) (*Driver, error) {
	userDataDir := config.ExpandHome(cfg.UserDataDir)
	if err := os.MkdirAll(userDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create user data dir: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	browser, err := pw.Chromium.LaunchPersistentContext(userDataDir,
		playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: playwright.Bool(cfg.Headless),
		})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	var page playwright.Page
	if pages := browser.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = browser.NewPage()
		if err != nil {
			browser.Close()
			pw.Stop()
			return nil, fmt.Errorf("could not create page: %w", err)
		}
	}

	url := cfg.URL
	if url == "" {
		url = "https://web.whatsapp.com/"
	}
	if _, err := page.Goto(url); err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("could not open %s: %w", url, err)
	}

	logger.InfoCF("webdriver", "browser session started", map[string]any{
		"headless": cfg.Headless,
	})

	return &Driver{pw: pw, browser: browser, page: page, cfg: cfg}, nil
}

func (d *Driver) LocateSendInput(_ context.Context) error {
	n, err := d.page.Locator(selSendInput).Count()
	if err != nil {
		return fmt.Errorf("query send input: %w", err)
	}
	if n == 0 {
		return transport.ErrInputNotReady
	}
	return nil
}

func (d *Driver) GetLastMessage(_ context.Context) (transport.LastMessage, error) {
	rows := d.page.Locator(selMessageRow)
	n, err := rows.Count()
	if err != nil {
		return transport.LastMessage{}, fmt.Errorf("query messages: %w", err)
	}
	if n == 0 {
		return transport.LastMessage{}, transport.ErrNoMessageFound
	}

	row := rows.Nth(n - 1)
	class, err := row.GetAttribute("class")
	if err != nil {
		// The row went away between the count and the read; treat it
		// like an empty chat and let the loop retry.
		return transport.LastMessage{}, transport.ErrNoMessageFound
	}
	fromMe := strings.Contains(class, outgoingClass)

	textEl := row.Locator(selMessageText)
	tn, err := textEl.Count()
	if err != nil {
		return transport.LastMessage{}, fmt.Errorf("query message text: %w", err)
	}
	if tn == 0 {
		// Media without a caption reads as an empty message.
		in, err := row.Locator(selMessageImage).Count()
		if err != nil || in == 0 {
			return transport.LastMessage{}, transport.ErrNoMessageFound
		}
		return transport.LastMessage{FromMe: fromMe, Text: "", Handle: row}, nil
	}

	raw, err := textEl.First().Evaluate(extractTextJS, nil)
	if err != nil {
		return transport.LastMessage{}, transport.ErrNoMessageFound
	}
	text, _ := raw.(string)

	return transport.LastMessage{FromMe: fromMe, Text: text, Handle: row}, nil
}

// SendText submits each line separately. A line lost to a stale input
// element is skipped, matching the best-effort contract.
func (d *Driver) SendText(ctx context.Context, lines []string) error {
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return err
		}
		input := d.page.Locator(selSendInput).First()
		if err := d.typeLine(input, line); err != nil {
			logger.DebugCF("webdriver", "dropped line on stale input", map[string]any{
				"error": err.Error(),
			})
		}
	}
	return nil
}

func (d *Driver) typeLine(input playwright.Locator, line string) error {
	if err := input.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(clickTimeoutMS)}); err != nil {
		return err
	}
	if err := input.Fill(line, playwright.LocatorFillOptions{Timeout: playwright.Float(clickTimeoutMS)}); err != nil {
		return err
	}
	return input.Press("Enter", playwright.LocatorPressOptions{Timeout: playwright.Float(clickTimeoutMS)})
}

func (d *Driver) SendFile(ctx context.Context, path string, kind transport.FileKind) error {
	var inputSel string
	switch kind {
	case transport.FileKindImage:
		inputSel = selImageInput
	case transport.FileKindOther:
		inputSel = selDocumentInput
	default:
		return fmt.Errorf("%w: %q", transport.ErrUnknownFileType, kind)
	}

	attach := d.page.Locator(selAttachButton).First()
	if err := attach.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(clickTimeoutMS)}); err != nil {
		return fmt.Errorf("open attach menu: %w", err)
	}

	fileInput := d.page.Locator(inputSel).First()
	if err := fileInput.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(clickTimeoutMS),
	}); err != nil {
		return fmt.Errorf("file input did not appear: %w", err)
	}
	if err := fileInput.SetInputFiles(path); err != nil {
		return fmt.Errorf("set file: %w", err)
	}

	// The upload preview takes a moment; poll until the send control
	// shows up and confirm.
	deadline := time.Now().Add(sendPollTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		send := d.page.Locator(selSendButton)
		n, err := send.Count()
		if err == nil && n > 0 {
			if err := send.Last().Click(playwright.LocatorClickOptions{Timeout: playwright.Float(clickTimeoutMS)}); err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return errors.New("send control did not appear")
		}
		time.Sleep(sendPollInterval)
	}
}

func (d *Driver) NavigateToChat(_ context.Context, name string) (bool, error) {
	chats := d.page.Locator(selChatEntry)
	n, err := chats.Count()
	if err != nil {
		return false, fmt.Errorf("query chat list: %w", err)
	}
	for i := 0; i < n; i++ {
		entry := chats.Nth(i)
		title, err := entry.GetAttribute("title")
		if err != nil {
			continue
		}
		if title == name {
			if err := entry.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(clickTimeoutMS)}); err != nil {
				return false, fmt.Errorf("select chat: %w", err)
			}
			return true, nil
		}
	}
	return false, nil
}

// Logout clicks through the account menu. Every step is best-effort: a
// missing control simply ends the attempt.
func (d *Driver) Logout(_ context.Context) error {
	steps := []string{selMenuButton, selLogoutItem, selConfirmButton}
	for _, sel := range steps {
		loc := d.page.Locator(sel).First()
		if err := loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(clickTimeoutMS)}); err != nil {
			logger.DebugCF("webdriver", "logout step skipped", map[string]any{
				"selector": sel,
			})
			return nil
		}
		time.Sleep(time.Second)
	}
	return nil
}

func (d *Driver) Close(_ context.Context) error {
	var errs []error
	if d.page != nil {
		if err := d.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
	}
	return errors.Join(errs...)
}
