package normalize

import (
	"net/url"
	"strings"
)

// AttachmentRewriter turns the relative upload paths stored on tickets into
// links served by the attachment viewer.
type AttachmentRewriter struct {
	BaseURL string
	Token   string
}

func (a AttachmentRewriter) Rewrite(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || strings.HasPrefix(path, "http") {
		return path
	}
	cleaned := strings.TrimPrefix(path, "/upload/")
	if cleaned == path {
		cleaned = strings.TrimPrefix(path, "upload/")
	}
	return a.BaseURL + encodeURIComponent(cleaned) + "&token=" + a.Token
}

// encodeURIComponent escapes everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ).
func encodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	r := strings.NewReplacer("%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")
	return r.Replace(escaped)
}
