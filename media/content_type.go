package media

import (
	"mime"
	"net/http"
	"strings"
)

// ContentType resolves the MIME type of an upload, preferring the extension
// and falling back to content sniffing.
func ContentType(data []byte, ext string) string {
	if e := SanitizeExt(ext); e != "" {
		if ct := mime.TypeByExtension(e); ct != "" {
			return strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
		}
	}
	return strings.TrimSpace(strings.SplitN(http.DetectContentType(data), ";", 2)[0])
}
