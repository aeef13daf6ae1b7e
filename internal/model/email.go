package model

type EmailDraft struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// Complete reports whether every field has been filled in.
func (d EmailDraft) Complete() bool {
	return d.Recipient != "" && d.Subject != "" && d.Body != ""
}

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a toast raised by a panel. Seq increases with every new
// notification so clients can tell a repeat from a new one.
type Notification struct {
	Seq         int     `json:"seq"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}
