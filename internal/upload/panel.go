// Package upload holds the view-model behind the document upload panel.
//
// Uploading is a stepped progress sequence that runs entirely on the server:
// file bytes stay in memory and only leave the process later, attached to
// each question the chat panel sends.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docchat/internal/media"
	"github.com/docchat/internal/model"
)

var (
	ErrLocked          = errors.New("upload: file list is locked")
	ErrNoFiles         = errors.New("upload: no files selected")
	ErrIndexOutOfRange = errors.New("upload: file index out of range")
)

type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StateUploaded  State = "uploaded"
)

type Config struct {
	Step     int           // percent added per tick
	Interval time.Duration // time between ticks
}

func DefaultConfig() Config {
	return Config{Step: 10, Interval: 200 * time.Millisecond}
}

// Panel accepts PDF files and runs the progress sequence. It is safe for
// concurrent use.
type Panel struct {
	mu       sync.Mutex
	cfg      Config
	logger   *slog.Logger
	onDone   func([]model.UploadedFile)
	files    []model.UploadedFile
	state    State
	progress int
	done     chan struct{}
}

// New returns an idle panel. onDone is called once, with the final file list,
// when progress reaches 100.
func New(cfg Config, logger *slog.Logger, onDone func([]model.UploadedFile)) *Panel {
	if cfg.Step <= 0 || cfg.Step > 100 {
		cfg.Step = DefaultConfig().Step
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if logger == nil {
		logger = slog.Default()
	}
	if onDone == nil {
		onDone = func([]model.UploadedFile) {}
	}
	return &Panel{
		cfg:    cfg,
		logger: logger,
		onDone: onDone,
		state:  StateIdle,
		done:   make(chan struct{}),
	}
}

// Add appends the PDF files among files, in order, and returns how many were
// accepted. Everything else is dropped without error.
func (p *Panel) Add(files ...model.UploadedFile) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return 0, ErrLocked
	}

	accepted := 0
	for _, f := range files {
		if !media.IsPDF(f) {
			p.logger.Debug("upload: skipping non-pdf file", "name", f.Name, "type", f.MIMEType)
			continue
		}
		f.MIMEType = model.MIMETypePDF
		if f.Size == 0 {
			f.Size = int64(len(f.Data))
		}
		p.files = append(p.files, f)
		accepted++
	}
	return accepted, nil
}

func (p *Panel) Remove(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return ErrLocked
	}
	if index < 0 || index >= len(p.files) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	p.files = append(p.files[:index], p.files[index+1:]...)
	return nil
}

// Start begins the progress sequence. The sequence stops early if ctx is
// cancelled, leaving the panel in the uploading state.
func (p *Panel) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return ErrLocked
	}
	if len(p.files) == 0 {
		return ErrNoFiles
	}

	p.state = StateUploading
	p.progress = 0
	p.logger.Info("upload: started", "files", len(p.files))

	go p.run(ctx)
	return nil
}

func (p *Panel) run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Warn("upload: progress cancelled", "err", ctx.Err())
			return
		case <-ticker.C:
			if files, finished := p.tick(); finished {
				p.logger.Info("upload: completed", "files", len(files))
				p.onDone(files)
				close(p.done)
				return
			}
		}
	}
}

// tick advances progress by one step. On reaching 100 it freezes the list
// and returns a copy of it.
func (p *Panel) tick() ([]model.UploadedFile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.progress += p.cfg.Step
	if p.progress < 100 {
		return nil, false
	}
	p.progress = 100
	p.state = StateUploaded
	return model.CloneFiles(p.files), true
}

// Done is closed after the completion callback has returned.
func (p *Panel) Done() <-chan struct{} {
	return p.done
}

func (p *Panel) Files() []model.UploadedFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return model.CloneFiles(p.files)
}

type FileView struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	SizeMB    string `json:"sizeMB"`
	SizeLabel string `json:"sizeLabel"`
}

type View struct {
	State       State      `json:"state"`
	Progress    int        `json:"progress"`
	Files       []FileView `json:"files"`
	Editable    bool       `json:"editable"`
	ButtonLabel string     `json:"buttonLabel"`
	Headline    string     `json:"headline"`
	Hint        string     `json:"hint"`
}

func (p *Panel) Snapshot() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := View{
		State:    p.state,
		Progress: p.progress,
		Files:    make([]FileView, 0, len(p.files)),
		Editable: p.state == StateIdle,
	}
	for i, f := range p.files {
		v.Files = append(v.Files, FileView{
			Index:     i,
			Name:      f.Name,
			Size:      f.Size,
			SizeMB:    media.SizeMB(f.Size),
			SizeLabel: media.SizeLabel(f.Size),
		})
	}

	switch p.state {
	case StateUploaded:
		v.Headline = "Files uploaded successfully!"
		v.Hint = "Ready to ask questions!"
	case StateUploading:
		v.Headline = "Drag & drop PDF files here"
		v.Hint = "or click to browse files"
		v.ButtonLabel = "Processing..."
	default:
		v.Headline = "Drag & drop PDF files here"
		v.Hint = "or click to browse files"
		v.ButtonLabel = buttonLabel(len(p.files))
	}
	return v
}

func buttonLabel(n int) string {
	switch n {
	case 0:
		return ""
	case 1:
		return "Upload 1 file"
	default:
		return fmt.Sprintf("Upload %d files", n)
	}
}
