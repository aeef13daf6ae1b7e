// Package mailer delivers email drafts composed in the email panel.
package mailer

import (
	"context"
	"fmt"

	"github.com/docchat/internal/model"
)

// Receipt is the confirmation returned by a transport.
type Receipt struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Sender delivers a single draft. Implementations do not retry.
type Sender interface {
	Send(ctx context.Context, draft model.EmailDraft) (Receipt, error)
}

// StatusError reports a non-success response from the email backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("mailer: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("mailer: unexpected status %d: %s", e.Code, e.Body)
}
