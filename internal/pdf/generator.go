// Package pdf renders enhanced resume text to a PDF through a headless
// Chromium instance.
package pdf

import (
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const documentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  @page { size: A4; margin: 2cm; }
  body { font-family: Georgia, "Times New Roman", serif; font-size: 12pt; line-height: 1.5; color: #1a1a1a; }
  h1 { font-size: 18pt; margin-bottom: 2pt; }
  .subtitle { font-size: 10pt; color: #555; margin-bottom: 16pt; text-transform: uppercase; letter-spacing: 1px; }
  p { margin: 0 0 8pt 0; white-space: pre-wrap; }
</style>
</head>
<body>
<h1>%s</h1>
<div class="subtitle">%s</div>
%s
</body>
</html>`

// RenderEnhancement builds a printable document from an enhancement and
// returns the PDF bytes. All text is HTML-escaped before rendering.
func RenderEnhancement(title, subtitle, content string) ([]byte, error) {
	var body strings.Builder
	for _, paragraph := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		body.WriteString("<p>")
		body.WriteString(html.EscapeString(paragraph))
		body.WriteString("</p>\n")
	}

	document := fmt.Sprintf(documentTemplate,
		html.EscapeString(title),
		html.EscapeString(subtitle),
		body.String(),
	)

	return fromHTML(document)
}

func fromHTML(htmlContent string) ([]byte, error) {
	launch := launcher.New().
		Headless(true).
		NoSandbox(true)

	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	defer launch.Cleanup()

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
	}()

	page, err := browser.Timeout(30 * time.Second).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	page = page.Timeout(30 * time.Second)
	if err := page.SetDocumentContent(htmlContent); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}

	return data, nil
}
