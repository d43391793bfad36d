package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var errNoPages = errors.New("extract: document has no pages")

// standardParse walks the page tree and concatenates each page's plain text.
// It rejects documents above maxPages so pathological page trees are handed
// to the alternative parse.
func standardParse(maxPages int) func([]byte) (Result, error) {
	return func(data []byte) (res Result, err error) {
		defer recoverParse(&err)

		doc, err := openPDF(data)
		if err != nil {
			return Result{}, err
		}
		n := doc.NumPage()
		if n == 0 {
			return Result{}, errNoPages
		}
		if n > maxPages {
			return Result{PageCount: n}, fmt.Errorf("extract: %d pages exceeds standard limit of %d", n, maxPages)
		}

		var sb strings.Builder
		for i := 1; i <= n; i++ {
			page := doc.Page(i)
			if page.V.IsNull() {
				continue
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				continue
			}
			appendPage(&sb, text)
		}
		return Result{Text: sb.String(), PageCount: n}, nil
	}
}

// alternativeParse reads every page without a page limit and rebuilds text
// from positioned text runs, falling back to the plain-text interpreter per
// page.
func alternativeParse(data []byte) (res Result, err error) {
	defer recoverParse(&err)

	doc, err := openPDF(data)
	if err != nil {
		return Result{}, err
	}
	n := doc.NumPage()
	if n == 0 {
		return Result{}, errNoPages
	}

	var sb strings.Builder
	for i := 1; i <= n; i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		appendPage(&sb, pageRuns(page))
	}
	return Result{Text: sb.String(), PageCount: n}, nil
}

func openPDF(data []byte) (*pdf.Reader, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("extract: open: %w", err)
	}
	return doc, nil
}

// pageRuns joins a page's text runs, starting a new line whenever the
// baseline moves.
func pageRuns(page pdf.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	var sb strings.Builder
	var lastY float64
	for i, run := range page.Content().Text {
		if i > 0 && run.Y != lastY {
			sb.WriteByte('\n')
		}
		sb.WriteString(run.S)
		lastY = run.Y
	}
	if strings.TrimSpace(sb.String()) != "" {
		return sb.String()
	}
	plain, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return plain
}

func appendPage(sb *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if sb.Len() > 0 {
		sb.WriteByte('\n')
	}
	sb.WriteString(text)
}

// recoverParse converts a panic inside the PDF library into an error.
// Malformed documents routinely trip index and nil checks in the parser.
func recoverParse(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("extract: parser panic: %v", r)
	}
}
