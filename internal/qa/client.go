// Package qa is a client for the document question-answering backend.
package qa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/docchat/internal/model"
)

var ErrNoFiles = errors.New("qa: at least one file is required")

// StatusError reports a non-success response from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("qa: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("qa: unexpected status %d: %s", e.Code, e.Body)
}

type answerResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Client posts files and a question to the backend. Every call uploads all
// files again; the backend keeps no state between questions.
type Client struct {
	url    string
	client *http.Client
}

// NewClient returns a client for the endpoint at url. A nil httpClient means
// a client without a timeout.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{url: url, client: httpClient}
}

func (c *Client) Ask(ctx context.Context, files []model.UploadedFile, question string) (string, error) {
	if len(files) == 0 {
		return "", ErrNoFiles
	}

	body, contentType, err := encodeForm(files, question)
	if err != nil {
		return "", fmt.Errorf("qa: encode form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return "", fmt.Errorf("qa: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("qa: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}

	var out answerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("qa: decode response: %w", err)
	}
	return out.Answer, nil
}

func encodeForm(files []model.UploadedFile, question string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		h.Set("Content-Type", model.MIMETypePDF)
		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := writer.WriteField("question", question); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
