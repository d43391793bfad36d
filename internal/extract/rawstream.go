package extract

import (
	"bytes"
	"encoding/ascii85"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/gonkalabs/pdfguard/internal/rx"
)

// maxInflated caps the decompressed size of a single stream.
const maxInflated = 32 << 20

var (
	streamKeyword    = []byte("stream")
	endstreamKeyword = []byte("endstream")
	ascii85Start     = []byte("<~")
	ascii85End       = []byte("~>")

	pageObjectRe = rx.MustCompile(`/Type\s*/Page[^s]`)
)

var errNoRawText = errors.New("extract: no text recoverable from raw bytes")

// rawFallback ignores the document structure. It inflates every
// stream...endstream region it can find and, when none of them yields text,
// falls back to pattern heuristics over the raw bytes.
func rawFallback(data []byte) (Result, error) {
	pages := len(pageObjectRe.FindAll(data, -1))

	var fragments []string
	regions := streamRegions(data)
	for i, region := range regions {
		decoded, err := decodeStream(region)
		if err != nil {
			if !mostlyPrintable(region) {
				slog.Debug("extract: stream not decodable", "index", i, "len", len(region), "err", err)
				continue
			}
			decoded = region
		}
		if text := streamText(decoded); strings.TrimSpace(text) != "" {
			fragments = append(fragments, text)
		}
	}

	text := strings.Join(fragments, "\n")
	if len(strings.TrimSpace(text)) >= MinUsableText {
		slog.Debug("extract: recovered text from streams", "streams", len(regions), "fragments", len(fragments))
		return Result{Text: text, PageCount: pages}, nil
	}

	bucket, text := scanHeuristics(data)
	if text == "" {
		return Result{PageCount: pages}, errNoRawText
	}
	slog.Debug("extract: heuristic match", "bucket", bucket, "chars", len(text))
	return Result{Text: text, PageCount: pages}, nil
}

// streamRegions returns the payload of every stream...endstream region.
func streamRegions(data []byte) [][]byte {
	var regions [][]byte
	pos := 0
	for pos < len(data) {
		i := bytes.Index(data[pos:], streamKeyword)
		if i < 0 {
			break
		}
		start := pos + i
		bodyStart := start + len(streamKeyword)
		if start >= 3 && string(data[start-3:start]) == "end" {
			pos = bodyStart
			continue
		}
		if bodyStart < len(data) && data[bodyStart] == '\r' {
			bodyStart++
		}
		if bodyStart < len(data) && data[bodyStart] == '\n' {
			bodyStart++
		}
		j := bytes.Index(data[bodyStart:], endstreamKeyword)
		if j < 0 {
			break
		}
		end := bodyStart + j
		regions = append(regions, bytes.TrimRight(data[bodyStart:end], "\r\n"))
		pos = end + len(endstreamKeyword)
	}
	return regions
}

// decodeStream reverses the encodings the fallback understands: ASCII85
// (recognized by its ~> terminator) followed by Flate, or Flate alone.
func decodeStream(region []byte) ([]byte, error) {
	if end := bytes.Index(region, ascii85End); end >= 0 {
		decoded, err := decodeASCII85(region[:end])
		if err != nil {
			return nil, err
		}
		if inflated, err := inflate(decoded); err == nil {
			return inflated, nil
		}
		return decoded, nil
	}
	return inflate(region)
}

func decodeASCII85(src []byte) ([]byte, error) {
	if i := bytes.Index(src, ascii85Start); i >= 0 {
		src = src[i+len(ascii85Start):]
	}
	out, err := io.ReadAll(ascii85.NewDecoder(bytes.NewReader(src)))
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("extract: ascii85: %w", err)
	}
	return out, nil
}

// inflate decompresses a zlib-wrapped DEFLATE stream, the only form
// FlateDecode uses. Truncated streams are common in damaged files, so
// whatever was decoded before an error is kept.
func inflate(src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("extract: inflate: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxInflated))
	if len(out) == 0 {
		if err == nil {
			err = errors.New("empty stream")
		}
		return nil, fmt.Errorf("extract: inflate: %w", err)
	}
	return out, nil
}

// mostlyPrintable reports whether b looks like an unencoded text stream.
func mostlyPrintable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	printable := 0
	for _, c := range b {
		if c >= 0x20 && c <= 0x7e || c == '\n' || c == '\r' || c == '\t' {
			printable++
		}
	}
	return printable*10 >= len(b)*9
}

// streamText pulls readable text out of a decoded stream. Page content
// streams contribute their shown strings; anything else contributes its
// printable runs.
func streamText(b []byte) string {
	if bytes.Contains(b, []byte("Tj")) || bytes.Contains(b, []byte("TJ")) {
		if s := shownStrings(b); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return printableRuns(b, 4)
}

// shownStrings collects the literal strings of a content stream. Strings
// inside a TJ array are joined without separators.
func shownStrings(b []byte) string {
	var sb strings.Builder
	inArray := false
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '[':
			inArray = true
		case ']':
			inArray = false
			sb.WriteByte('\n')
		case '(':
			s, next := readLiteral(b, i)
			sb.WriteString(s)
			if !inArray {
				sb.WriteByte('\n')
			}
			i = next
		}
	}
	return sb.String()
}

// readLiteral decodes the PDF literal string starting at b[start] == '('
// and returns it with the index of the closing parenthesis.
func readLiteral(b []byte, start int) (string, int) {
	var sb strings.Builder
	depth := 1
	i := start + 1
	for ; i < len(b); i++ {
		c := b[i]
		switch c {
		case '\\':
			if i+1 >= len(b) {
				return sb.String(), i
			}
			i++
			switch e := b[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && i+1 < len(b) && b[i+1] >= '0' && b[i+1] <= '7'; k++ {
						i++
						v = v*8 + int(b[i]-'0')
					}
					sb.WriteByte(byte(v))
				} else {
					sb.WriteByte(e)
				}
			}
		case '(':
			depth++
			sb.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), i
}

// printableRuns returns the runs of printable ASCII at least minRun long,
// one per line.
func printableRuns(b []byte, minRun int) string {
	var sb strings.Builder
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= minRun {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.Write(b[start:end])
		}
		start = -1
	}
	for i, c := range b {
		if c >= 0x20 && c <= 0x7e || c == '\t' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(b))
	return sb.String()
}
