package chunker

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/machinerag/core"
)

// ExtractText returns the plain text of a PDF, one block per page separated
// by blank lines. Unreadable documents yield an error wrapping
// core.ErrSourceParse.
func ExtractText(r io.ReaderAt, size int64) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("%w: pdf reader panic: %v", core.ErrSourceParse, p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrSourceParse, err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %w", core.ErrSourceParse, i, err)
		}
		if content = strings.TrimSpace(content); content != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// ExtractBytes is ExtractText over an in-memory document.
func ExtractBytes(data []byte) (string, error) {
	return ExtractText(bytes.NewReader(data), int64(len(data)))
}
