// Package extract converts uploaded resume documents into plain text.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dslipak/pdf"
)

// PDFText concatenates the text of every page in the document.
// Malformed documents fail with an error, never with silent empty output;
// the caller distinguishes a readable-but-empty document separately.
func PDFText(data []byte) (text string, err error) {
	// The pdf reader panics on some corrupt inputs; turn that into an error
	// so the upload pipeline can reject the file cleanly.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		builder.WriteString(pageText)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}
