package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat/internal/model"
)

type answererMock struct {
	mu      sync.Mutex
	calls   int
	files   [][]model.UploadedFile
	gate    chan struct{}
	AskFunc func(ctx context.Context, files []model.UploadedFile, question string) (string, error)
}

func (m *answererMock) Ask(ctx context.Context, files []model.UploadedFile, question string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.files = append(m.files, files)
	m.mu.Unlock()
	if m.gate != nil {
		<-m.gate
	}
	return m.AskFunc(ctx, files, question)
}

func (m *answererMock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var uploaded = []model.UploadedFile{
	{Name: "cv.pdf", Size: 3, MIMEType: model.MIMETypePDF, Data: []byte("%PD")},
	{Name: "cover.pdf", Size: 3, MIMEType: model.MIMETypePDF, Data: []byte("%PD")},
}

func await(t *testing.T, ch <-chan model.Message) model.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
		return model.Message{}
	}
}

func TestSubmitSuccess(t *testing.T) {
	mock := &answererMock{AskFunc: func(_ context.Context, _ []model.UploadedFile, q string) (string, error) {
		return "X", nil
	}}
	p := New(mock, quietLogger())
	p.SetFiles(uploaded)

	reply, err := p.Submit(context.Background(), "What is the candidate's last role?")
	require.NoError(t, err)
	msg := await(t, reply)

	assert.Equal(t, model.RoleAssistant, msg.Role)
	assert.Equal(t, "X", msg.Content)

	transcript := p.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, model.RoleUser, transcript[0].Role)
	assert.Equal(t, "What is the candidate's last role?", transcript[0].Content)
	assert.Equal(t, model.RoleAssistant, transcript[1].Role)
	assert.Equal(t, "X", transcript[1].Content)
	assert.NotEqual(t, transcript[0].ID, transcript[1].ID)

	assert.Equal(t, 1, mock.Calls())
}

func TestSubmitFailureUsesFallback(t *testing.T) {
	mock := &answererMock{AskFunc: func(context.Context, []model.UploadedFile, string) (string, error) {
		return "partial answer that must not leak", errors.New("qa: unexpected status 500")
	}}
	p := New(mock, quietLogger())
	p.SetFiles(uploaded)

	reply, err := p.Submit(context.Background(), "hello")
	require.NoError(t, err)
	msg := await(t, reply)
	assert.Equal(t, FallbackAnswer, msg.Content)

	transcript := p.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, FallbackAnswer, transcript[1].Content)
	assert.Equal(t, 1, mock.Calls(), "failures are not retried")
}

func TestEveryQuestionCarriesAllFiles(t *testing.T) {
	mock := &answererMock{AskFunc: func(context.Context, []model.UploadedFile, string) (string, error) {
		return "ok", nil
	}}
	p := New(mock, quietLogger())
	p.SetFiles(uploaded)

	for _, q := range []string{"first", "second"} {
		reply, err := p.Submit(context.Background(), q)
		require.NoError(t, err)
		await(t, reply)
	}

	require.Len(t, mock.files, 2)
	for _, files := range mock.files {
		assert.Len(t, files, len(uploaded))
	}
}

func TestSubmitRejected(t *testing.T) {
	mock := &answererMock{AskFunc: func(context.Context, []model.UploadedFile, string) (string, error) {
		return "ok", nil
	}}

	t.Run("no files", func(t *testing.T) {
		p := New(mock, quietLogger())
		_, err := p.Submit(context.Background(), "question")
		assert.ErrorIs(t, err, ErrNoFiles)
		assert.Empty(t, p.Transcript())
	})

	t.Run("blank question", func(t *testing.T) {
		p := New(mock, quietLogger())
		p.SetFiles(uploaded)
		_, err := p.Submit(context.Background(), "   \t\n")
		assert.ErrorIs(t, err, ErrEmptyQuestion)
		assert.Empty(t, p.Transcript())
	})
}

func TestLoadingStateAndPendingEntry(t *testing.T) {
	mock := &answererMock{
		gate: make(chan struct{}),
		AskFunc: func(context.Context, []model.UploadedFile, string) (string, error) {
			return "done", nil
		},
	}
	p := New(mock, quietLogger())
	p.SetFiles(uploaded)

	reply, err := p.Submit(context.Background(), "slow question")
	require.NoError(t, err)

	v := p.Snapshot()
	assert.True(t, v.Loading)
	assert.False(t, v.InputEnabled)
	require.Len(t, v.Entries, 2)
	assert.Equal(t, "slow question", v.Entries[0].Content)
	assert.True(t, v.Entries[1].Pending)
	assert.Equal(t, "Thinking...", v.Entries[1].Content)

	_, err = p.Submit(context.Background(), "another")
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, p.CanSend("another"))

	close(mock.gate)
	await(t, reply)

	v = p.Snapshot()
	assert.False(t, v.Loading)
	assert.True(t, v.InputEnabled)
	require.Len(t, v.Entries, 2)
	assert.False(t, v.Entries[1].Pending)
	assert.Equal(t, "done", v.Entries[1].Content)
	assert.Len(t, p.Transcript(), 2, "the pending entry is never stored")
}

func TestCanSend(t *testing.T) {
	mock := &answererMock{AskFunc: func(context.Context, []model.UploadedFile, string) (string, error) {
		return "", nil
	}}

	cases := []struct {
		name  string
		files []model.UploadedFile
		input string
		want  bool
	}{
		{"no files", nil, "question", false},
		{"empty input", uploaded, "", false},
		{"whitespace input", uploaded, "  ", false},
		{"ready", uploaded, " question ", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := New(mock, quietLogger())
			p.SetFiles(tc.files)
			assert.Equal(t, tc.want, p.CanSend(tc.input))
		})
	}
}

func TestEmptySnapshot(t *testing.T) {
	p := New(nil, quietLogger())
	v := p.Snapshot()
	assert.Empty(t, v.Entries)
	assert.False(t, v.InputEnabled)
	assert.Equal(t, "Ask me anything about your uploaded documents!", v.EmptyText)
	assert.Equal(t, "Ask a question about your documents...", v.Placeholder)
}
