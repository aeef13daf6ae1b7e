package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/docchat/internal/model"
)

// FallbackAnswer replaces the reply whenever the QA backend cannot be reached
// or answers with a non-success status.
const FallbackAnswer = "Sorry, I couldn't process your question. Please make sure the API server is running on backend"

const (
	thinkingText = "Thinking..."
	placeholder  = "Ask a question about your documents..."
	emptyText    = "Ask me anything about your uploaded documents!"
)

var (
	ErrNoFiles       = errors.New("chat: no uploaded files")
	ErrEmptyQuestion = errors.New("chat: question is empty")
	ErrBusy          = errors.New("chat: a question is already in flight")
)

// Answerer asks the QA backend a question about files.
type Answerer interface {
	Ask(ctx context.Context, files []model.UploadedFile, question string) (string, error)
}

// Panel keeps the transcript and the single in-flight question.
type Panel struct {
	mu         sync.Mutex
	answerer   Answerer
	logger     *slog.Logger
	files      []model.UploadedFile
	transcript []model.Message
	loading    bool
}

func New(answerer Answerer, logger *slog.Logger) *Panel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Panel{answerer: answerer, logger: logger}
}

// SetFiles replaces the files attached to every subsequent question.
func (p *Panel) SetFiles(files []model.UploadedFile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files = model.CloneFiles(files)
}

// CanSend reports whether the send control is enabled for input.
func (p *Panel) CanSend(input string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canSendLocked(input) == nil
}

func (p *Panel) canSendLocked(input string) error {
	switch {
	case len(p.files) == 0:
		return ErrNoFiles
	case p.loading:
		return ErrBusy
	case strings.TrimSpace(input) == "":
		return ErrEmptyQuestion
	}
	return nil
}

// Submit appends the user's question to the transcript and sends it to the
// backend in the background. The assistant entry that ends the exchange,
// either the answer or FallbackAnswer, is delivered on the returned channel
// once it has been appended.
func (p *Panel) Submit(ctx context.Context, question string) (<-chan model.Message, error) {
	p.mu.Lock()
	if err := p.canSendLocked(question); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.transcript = append(p.transcript, model.NewMessage(model.RoleUser, question))
	p.loading = true
	files := p.files
	p.mu.Unlock()

	reply := make(chan model.Message, 1)
	go func() {
		defer close(reply)
		reply <- p.resolve(ctx, files, question)
	}()
	return reply, nil
}

func (p *Panel) resolve(ctx context.Context, files []model.UploadedFile, question string) model.Message {
	content, err := p.answerer.Ask(ctx, files, question)
	if err != nil {
		p.logger.Warn("chat: qa backend failed", "err", err, "files", len(files))
		content = FallbackAnswer
	}

	msg := model.NewMessage(model.RoleAssistant, content)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.transcript = append(p.transcript, msg)
	p.loading = false
	return msg
}

func (p *Panel) Transcript() []model.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Message, len(p.transcript))
	copy(out, p.transcript)
	return out
}

type Entry struct {
	model.Message
	Time    string `json:"time"`
	Pending bool   `json:"pending,omitempty"`
}

type View struct {
	Entries      []Entry `json:"entries"`
	Loading      bool    `json:"loading"`
	InputEnabled bool    `json:"inputEnabled"`
	Placeholder  string  `json:"placeholder"`
	EmptyText    string  `json:"emptyText,omitempty"`
}

// Snapshot renders the transcript. While a question is in flight a transient
// "Thinking..." entry closes the list; it is never stored.
func (p *Panel) Snapshot() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := View{
		Entries:      make([]Entry, 0, len(p.transcript)+1),
		Loading:      p.loading,
		InputEnabled: len(p.files) > 0 && !p.loading,
		Placeholder:  placeholder,
	}
	for _, m := range p.transcript {
		v.Entries = append(v.Entries, Entry{Message: m, Time: m.CreatedAt.Format("3:04:05 PM")})
	}
	if p.loading {
		v.Entries = append(v.Entries, Entry{
			Message: model.Message{ID: "pending", Role: model.RoleAssistant, Content: thinkingText},
			Pending: true,
		})
	}
	if len(p.transcript) == 0 {
		v.EmptyText = emptyText
	}
	return v
}
