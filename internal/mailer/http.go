package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/docchat/internal/model"
)

// HTTPSender posts drafts as JSON to the email backend.
type HTTPSender struct {
	url    string
	client *http.Client
}

// NewHTTPSender returns a sender for the endpoint at url. A nil client means
// a client without a timeout.
func NewHTTPSender(url string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSender{url: url, client: client}
}

func (s *HTTPSender) Send(ctx context.Context, draft model.EmailDraft) (Receipt, error) {
	body, err := json.Marshal(draft)
	if err != nil {
		return Receipt{}, fmt.Errorf("mailer: encode draft: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("mailer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("mailer: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Receipt{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return Receipt{}, fmt.Errorf("mailer: decode response: %w", err)
	}
	return receipt, nil
}
