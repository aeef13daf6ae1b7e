package model

// MIMETypePDF is the only content type the upload panel accepts.
const MIMETypePDF = "application/pdf"

// UploadedFile is a document held in memory between selection and the
// question that eventually carries it to the QA backend.
type UploadedFile struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

// CloneFiles returns a copy of the slice header list. File contents are
// shared; they are never mutated after upload.
func CloneFiles(files []UploadedFile) []UploadedFile {
	out := make([]UploadedFile, len(files))
	copy(out, files)
	return out
}
