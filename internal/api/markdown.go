package api

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// renderHTML converts a generated document to HTML. Conversion failures
// are logged and yield an empty string; the markdown is always returned.
func (s *Server) renderHTML(md string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		s.logger.Warn("markdown render failed", "error", err)
		return ""
	}
	return buf.String()
}
