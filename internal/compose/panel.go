// Package compose holds the view-model behind the email panel.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docchat/internal/mailer"
	"github.com/docchat/internal/model"
)

var (
	ErrIncomplete = errors.New("compose: recipient, subject and body are required")
	ErrBusy       = errors.New("compose: a send is already in progress")
	ErrLocked     = errors.New("compose: form is locked")
)

type State string

const (
	StateIdle    State = "idle"
	StateSending State = "sending"
	StateSent    State = "sent"
)

type Config struct {
	ResetDelay time.Duration // how long the success indicator stays up
}

func DefaultConfig() Config {
	return Config{ResetDelay: 3 * time.Second}
}

// Outcome is delivered once a submit has settled.
type Outcome struct {
	Receipt mailer.Receipt
	Err     error
}

// Panel is the email form. Transitions:
//
//	idle -> sending -> sent -> (ResetDelay) idle
//	               \-> idle (failure, draft kept)
type Panel struct {
	mu           sync.Mutex
	cfg          Config
	sender       mailer.Sender
	logger       *slog.Logger
	draft        model.EmailDraft
	state        State
	notification *model.Notification
	seq          int
	reset        *time.Timer
	closed       bool
}

func New(sender mailer.Sender, cfg Config, logger *slog.Logger) *Panel {
	if cfg.ResetDelay <= 0 {
		cfg.ResetDelay = DefaultConfig().ResetDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Panel{cfg: cfg, sender: sender, logger: logger, state: StateIdle}
}

// Update replaces the form contents. Editing is disabled while a send is in
// flight and while the success indicator is shown.
func (p *Panel) Update(draft model.EmailDraft) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return ErrLocked
	}
	p.draft = draft
	return nil
}

func (p *Panel) Draft() model.EmailDraft {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft
}

// Submit sends the current draft. An incomplete draft raises a notification
// and returns ErrIncomplete without contacting the sender.
func (p *Panel) Submit(ctx context.Context) (<-chan Outcome, error) {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	if !p.draft.Complete() {
		p.notifyLocked("Missing Information", "Please fill in all fields before sending.", model.VariantDestructive)
		p.mu.Unlock()
		return nil, ErrIncomplete
	}
	p.state = StateSending
	draft := p.draft
	p.mu.Unlock()

	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		out <- p.deliver(ctx, draft)
	}()
	return out, nil
}

func (p *Panel) deliver(ctx context.Context, draft model.EmailDraft) Outcome {
	receipt, err := p.sender.Send(ctx, draft)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.logger.Warn("compose: send failed", "err", err)
		p.state = StateIdle
		p.notifyLocked("Email Failed", "Failed to send email. Please check your server configuration.", model.VariantDestructive)
		return Outcome{Err: err}
	}

	p.logger.Info("compose: email sent", "status", receipt.Status)
	p.state = StateSent
	p.notifyLocked("Email Sent!", fmt.Sprintf("Email successfully sent to %s", draft.Recipient), model.VariantDefault)
	if !p.closed {
		p.reset = time.AfterFunc(p.cfg.ResetDelay, p.clear)
	}
	return Outcome{Receipt: receipt}
}

// clear returns a sent form to its initial state.
func (p *Panel) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateSent {
		return
	}
	p.draft = model.EmailDraft{}
	p.state = StateIdle
	p.reset = nil
}

// Close stops a pending reset timer. A send still in flight settles
// normally but no longer schedules a reset.
func (p *Panel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.reset != nil {
		p.reset.Stop()
		p.reset = nil
	}
}

func (p *Panel) notifyLocked(title, description string, variant model.Variant) {
	p.seq++
	p.notification = &model.Notification{
		Seq:         p.seq,
		Title:       title,
		Description: description,
		Variant:     variant,
	}
}

type View struct {
	State        State               `json:"state"`
	Draft        model.EmailDraft    `json:"draft"`
	Sent         bool                `json:"sent"`
	Editable     bool                `json:"editable"`
	CanSend      bool                `json:"canSend"`
	ButtonLabel  string              `json:"buttonLabel"`
	Notification *model.Notification `json:"notification,omitempty"`
}

func (p *Panel) Snapshot() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := View{
		State:    p.state,
		Draft:    p.draft,
		Sent:     p.state == StateSent,
		Editable: p.state == StateIdle,
		CanSend:  p.state == StateIdle && p.draft.Complete(),
	}
	switch p.state {
	case StateSending:
		v.ButtonLabel = "Sending..."
	case StateSent:
		v.ButtonLabel = "Sent!"
	default:
		v.ButtonLabel = "Send Email"
	}
	if p.notification != nil {
		n := *p.notification
		v.Notification = &n
	}
	return v
}
