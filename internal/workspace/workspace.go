// Package workspace ties the upload, chat and email panels of a single page
// together.
package workspace

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/docchat/internal/chat"
	"github.com/docchat/internal/compose"
	"github.com/docchat/internal/mailer"
	"github.com/docchat/internal/media"
	"github.com/docchat/internal/model"
	"github.com/docchat/internal/upload"
)

var (
	ErrTabLocked  = errors.New("workspace: tab is locked until files are uploaded")
	ErrUnknownTab = errors.New("workspace: unknown tab")
)

type Tab string

const (
	TabUpload Tab = "upload"
	TabChat   Tab = "chat"
	TabEmail  Tab = "email"
)

// Deps are the collaborators shared by every workspace.
type Deps struct {
	Answerer chat.Answerer
	Sender   mailer.Sender
	Upload   upload.Config
	Compose  compose.Config
	Logger   *slog.Logger
}

// Workspace is the state behind one page load: the three panels, the list
// of uploaded files and the readiness flag that unlocks the chat tab.
type Workspace struct {
	ID     string
	Upload *upload.Panel
	Chat   *chat.Panel
	Email  *compose.Panel

	mu     sync.Mutex
	files  []model.UploadedFile
	ready  bool
	active Tab
}

func New(id string, deps Deps) *Workspace {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("workspace", id)

	w := &Workspace{
		ID:     id,
		Chat:   chat.New(deps.Answerer, logger),
		Email:  compose.New(deps.Sender, deps.Compose, logger),
		active: TabUpload,
	}
	w.Upload = upload.New(deps.Upload, logger, w.filesUploaded)
	return w
}

func (w *Workspace) filesUploaded(files []model.UploadedFile) {
	w.mu.Lock()
	w.files = model.CloneFiles(files)
	w.ready = len(files) > 0
	w.mu.Unlock()

	w.Chat.SetFiles(files)
}

// Ready reports whether the upload has completed.
func (w *Workspace) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready
}

func (w *Workspace) Files() []model.UploadedFile {
	w.mu.Lock()
	defer w.mu.Unlock()
	return model.CloneFiles(w.files)
}

func (w *Workspace) Select(tab Tab) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch tab {
	case TabUpload, TabEmail:
	case TabChat:
		if !w.ready {
			return ErrTabLocked
		}
	default:
		return ErrUnknownTab
	}
	w.active = tab
	return nil
}

func (w *Workspace) ActiveTab() Tab {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Close releases timers held by the panels.
func (w *Workspace) Close() {
	w.Email.Close()
}

type UploadedFileView struct {
	Name   string `json:"name"`
	SizeMB string `json:"sizeMB"`
}

type View struct {
	ID        string             `json:"id"`
	Ready     bool               `json:"ready"`
	ActiveTab Tab                `json:"activeTab"`
	Uploaded  []UploadedFileView `json:"uploaded"`
	Upload    upload.View        `json:"upload"`
	Chat      chat.View          `json:"chat"`
	Email     compose.View       `json:"email"`
}

func (w *Workspace) Snapshot() View {
	w.mu.Lock()
	v := View{
		ID:        w.ID,
		Ready:     w.ready,
		ActiveTab: w.active,
		Uploaded:  make([]UploadedFileView, 0, len(w.files)),
	}
	files := w.files
	w.mu.Unlock()

	for _, f := range files {
		v.Uploaded = append(v.Uploaded, UploadedFileView{Name: f.Name, SizeMB: media.SizeMB(f.Size)})
	}
	v.Upload = w.Upload.Snapshot()
	v.Chat = w.Chat.Snapshot()
	v.Email = w.Email.Snapshot()
	return v
}
