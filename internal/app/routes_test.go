package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat/internal/compose"
	"github.com/docchat/internal/config"
	"github.com/docchat/internal/mailer"
	"github.com/docchat/internal/middleware"
	"github.com/docchat/internal/model"
	"github.com/docchat/internal/qa"
	"github.com/docchat/internal/store"
	"github.com/docchat/internal/upload"
	"github.com/docchat/internal/workspace"
)

var pdfData = []byte("%PDF-1.5\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

type backends struct {
	qaCalls    atomic.Int32
	emailCalls atomic.Int32
	lastEmail  atomic.Pointer[model.EmailDraft]
	qaStatus   int
}

func (b *backends) qa(w http.ResponseWriter, r *http.Request) {
	b.qaCalls.Add(1)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if b.qaStatus != 0 {
		w.WriteHeader(b.qaStatus)
		return
	}
	files := r.MultipartForm.File["files"]
	_ = json.NewEncoder(w).Encode(map[string]string{
		"question": r.FormValue("question"),
		"answer":   "Found " + r.FormValue("question") + " in " + files[0].Filename,
	})
}

func (b *backends) email(w http.ResponseWriter, r *http.Request) {
	b.emailCalls.Add(1)
	var d model.EmailDraft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.lastEmail.Store(&d)
	_ = json.NewEncoder(w).Encode(mailer.Receipt{Status: "success", Message: "Email sent successfully"})
}

func newTestApp(t *testing.T, b *backends, ratePerMinute int) *App {
	t.Helper()
	qaSrv := httptest.NewServer(http.HandlerFunc(b.qa))
	t.Cleanup(qaSrv.Close)
	emailSrv := httptest.NewServer(http.HandlerFunc(b.email))
	t.Cleanup(emailSrv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Env:                "development",
		MaxUploadSizeMB:    5,
		RateLimitPerMinute: ratePerMinute,
		WorkspaceTTL:       time.Hour,
	}

	return &App{
		config: cfg,
		logger: logger,
		workspaces: store.NewWorkspaceStore(workspace.Deps{
			Answerer: qa.NewClient(qaSrv.URL, qaSrv.Client()),
			Sender:   mailer.NewHTTPSender(emailSrv.URL, emailSrv.Client()),
			Upload:   upload.Config{Step: 25, Interval: time.Millisecond},
			Compose:  compose.Config{ResetDelay: 100 * time.Millisecond},
			Logger:   logger,
		}),
		limiter: middleware.NewLimiter(middleware.PerMinute(ratePerMinute), ratePerMinute),
	}
}

type client struct {
	t       *testing.T
	handler http.Handler
	id      string
}

var workspaceAttr = regexp.MustCompile(`data-workspace="([0-9a-f]+)"`)

func openPage(t *testing.T, h http.Handler) *client {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	m := workspaceAttr.FindStringSubmatch(rr.Body.String())
	require.Len(t, m, 2, "page must embed the workspace id")
	return &client{t: t, handler: h, id: m[1]}
}

func (c *client) send(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = "192.0.2.10:5000"
	req.Header.Set("X-Workspace-ID", c.id)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	return rr
}

func (c *client) json(method, target, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return c.send(method, target, r, "application/json")
}

func (c *client) addFiles(names ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, name := range names {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		h.Set("Content-Type", "application/pdf")
		w, err := mw.CreatePart(h)
		require.NoError(c.t, err)
		_, _ = w.Write(pdfData)
	}
	require.NoError(c.t, mw.Close())
	return c.send(http.MethodPost, "/api/upload/files", body, mw.FormDataContentType())
}

func (c *client) snapshot() workspace.View {
	c.t.Helper()
	rr := c.json(http.MethodGet, "/api/workspace", "")
	require.Equal(c.t, http.StatusOK, rr.Code)
	var out struct {
		Workspace workspace.View `json:"workspace"`
	}
	require.NoError(c.t, json.NewDecoder(rr.Body).Decode(&out))
	return out.Workspace
}

func (c *client) uploadAndWait() {
	c.t.Helper()
	require.Equal(c.t, http.StatusOK, c.addFiles("resume.pdf").Code)
	require.Equal(c.t, http.StatusAccepted, c.json(http.MethodPost, "/api/upload", "").Code)
	require.Eventually(c.t, func() bool { return c.snapshot().Ready }, 2*time.Second, 5*time.Millisecond)
}

func TestFullSession(t *testing.T) {
	b := &backends{}
	h := newTestApp(t, b, 600).routes()
	c := openPage(t, h)

	v := c.snapshot()
	assert.False(t, v.Ready)
	assert.Equal(t, workspace.TabUpload, v.ActiveTab)
	assert.Equal(t, http.StatusConflict, c.json(http.MethodPut, "/api/workspace/tab", `{"tab":"chat"}`).Code)

	c.uploadAndWait()
	v = c.snapshot()
	assert.Equal(t, upload.StateUploaded, v.Upload.State)
	assert.Equal(t, 100, v.Upload.Progress)
	require.Len(t, v.Uploaded, 1)
	assert.Equal(t, "resume.pdf", v.Uploaded[0].Name)
	assert.Equal(t, http.StatusOK, c.json(http.MethodPut, "/api/workspace/tab", `{"tab":"chat"}`).Code)

	rr := c.json(http.MethodPost, "/api/chat?wait=true", `{"question":"skills"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	transcript := c.snapshot().Chat.Entries
	require.Len(t, transcript, 2)
	assert.Equal(t, model.RoleUser, transcript[0].Role)
	assert.Equal(t, "Found skills in resume.pdf", transcript[1].Content)
	assert.EqualValues(t, 1, b.qaCalls.Load())

	draft := `{"recipient":"hr@example.com","subject":"Summary","body":"Strong candidate"}`
	require.Equal(t, http.StatusOK, c.json(http.MethodPut, "/api/email", draft).Code)
	require.Equal(t, http.StatusOK, c.json(http.MethodPost, "/api/email?wait=true", "").Code)

	assert.EqualValues(t, 1, b.emailCalls.Load())
	assert.Equal(t, &model.EmailDraft{Recipient: "hr@example.com", Subject: "Summary", Body: "Strong candidate"}, b.lastEmail.Load())

	assert.Eventually(t, func() bool {
		e := c.snapshot().Email
		return e.State == compose.StateIdle && e.Draft == model.EmailDraft{}
	}, 2*time.Second, 10*time.Millisecond, "form resets after the delay")
}

func TestChatFallbackOnBackendError(t *testing.T) {
	b := &backends{qaStatus: http.StatusInternalServerError}
	c := openPage(t, newTestApp(t, b, 600).routes())
	c.uploadAndWait()

	rr := c.json(http.MethodPost, "/api/chat?wait=true", `{"question":"anything"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	entries := c.snapshot().Chat.Entries
	require.Len(t, entries, 2)
	assert.Equal(t, "Sorry, I couldn't process your question. Please make sure the API server is running on backend", entries[1].Content)
	assert.EqualValues(t, 1, b.qaCalls.Load())
}

func TestIncompleteEmailIsNotSent(t *testing.T) {
	b := &backends{}
	c := openPage(t, newTestApp(t, b, 600).routes())

	require.Equal(t, http.StatusOK, c.json(http.MethodPut, "/api/email", `{"recipient":"a@b.co","subject":"Hi","body":""}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, c.json(http.MethodPost, "/api/email", "").Code)
	assert.Zero(t, b.emailCalls.Load())
}

func TestReloadStartsFreshWorkspace(t *testing.T) {
	h := newTestApp(t, &backends{}, 600).routes()
	first := openPage(t, h)
	first.uploadAndWait()

	second := openPage(t, h)
	assert.NotEqual(t, first.id, second.id)
	assert.False(t, second.snapshot().Ready)
	assert.True(t, first.snapshot().Ready)
}

func TestRateLimitOnPostEndpoints(t *testing.T) {
	c := openPage(t, newTestApp(t, &backends{}, 2).routes())

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, c.json(http.MethodPost, "/api/chat", `{"question":"q"}`).Code)
	}
	assert.Equal(t, []int{http.StatusConflict, http.StatusConflict, http.StatusTooManyRequests}, codes)

	// reads are not limited
	assert.Equal(t, http.StatusOK, c.json(http.MethodGet, "/api/chat", "").Code)
}

func TestLimiterSharedAcrossPostRoutes(t *testing.T) {
	a := newTestApp(t, &backends{}, 1)
	c := openPage(t, a.routes())

	assert.Equal(t, http.StatusConflict, c.json(http.MethodPost, "/api/chat", `{"question":"q"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, c.json(http.MethodPost, "/api/email", "").Code)
	assert.Equal(t, 1, a.limiter.Len())
	assert.Zero(t, a.limiter.Sweep(), "a drained bucket is not forgotten")
}

func TestStaticAndHeaders(t *testing.T) {
	h := newTestApp(t, &backends{}, 600).routes()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","workspaces":0}`, rr.Body.String())
}

func TestNewSender(t *testing.T) {
	s, err := newSender(&config.Config{EmailTransport: config.TransportHTTP, EmailBackendURL: "http://localhost:8000/send-email/"}, http.DefaultClient)
	require.NoError(t, err)
	assert.IsType(t, &mailer.HTTPSender{}, s)

	s, err = newSender(&config.Config{EmailTransport: config.TransportSMTP, SMTPHost: "smtp.gmail.com", SMTPPort: 587}, http.DefaultClient)
	require.NoError(t, err)
	assert.IsType(t, &mailer.SMTPSender{}, s)

	_, err = newSender(&config.Config{EmailTransport: "fax"}, http.DefaultClient)
	assert.Error(t, err)
}
