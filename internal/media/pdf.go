package media

import (
	"fmt"
	"mime"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/docchat/internal/model"
)

// DetectType returns the sniffed MIME type of data. When data is empty the
// declared type (typically the multipart part header) is used instead.
func DetectType(data []byte, declared string) string {
	if len(data) == 0 {
		mt, _, err := mime.ParseMediaType(declared)
		if err != nil {
			return ""
		}
		return mt
	}
	return mimetype.Detect(data).String()
}

// IsPDF reports whether the file should be accepted by the upload panel.
func IsPDF(f model.UploadedFile) bool {
	if len(f.Data) == 0 {
		return DetectType(nil, f.MIMEType) == model.MIMETypePDF
	}
	return mimetype.Detect(f.Data).Is(model.MIMETypePDF)
}

// SizeMB formats a byte count the way the file list shows it.
func SizeMB(size int64) string {
	return fmt.Sprintf("%.2f MB", float64(size)/1024/1024)
}

// SizeLabel is the compact human form, e.g. "1.2 MB".
func SizeLabel(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.Bytes(uint64(size))
}
