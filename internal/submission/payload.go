// Package submission bridges scan messages sent by the browser extension
// into the scan pipeline.
package submission

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gonkalabs/pdfguard/internal/scan"
)

// ErrInvalidPayload is returned for messages that cannot be turned into a
// file.
var ErrInvalidPayload = errors.New("invalid payload")

// Encoding says how Message.FileData carries the file bytes.
type Encoding int

const (
	Raw Encoding = iota
	Base64
	DataURL
)

func (e Encoding) String() string {
	switch e {
	case Base64:
		return "base64"
	case DataURL:
		return "dataurl"
	default:
		return "raw"
	}
}

// ParseEncoding parses an explicit encoding name.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw":
		return Raw, nil
	case "base64":
		return Base64, nil
	case "dataurl", "data-url", "data_url":
		return DataURL, nil
	}
	return Raw, fmt.Errorf("%w: unknown encoding %q", ErrInvalidPayload, s)
}

// Message is the extension's scan request.
type Message struct {
	Type     string `json:"type"`
	FileData string `json:"fileData"`
	Filename string `json:"filename"`
	FileSize int64  `json:"fileSize"`
	Encoding string `json:"encoding,omitempty"`
}

// Resolve picks the encoding of fileData. An explicit name wins; otherwise
// a data: prefix means DataURL, a %PDF header means Raw, and anything else
// is treated as base64.
func Resolve(fileData, explicit string) (Encoding, error) {
	if explicit != "" {
		return ParseEncoding(explicit)
	}
	switch {
	case strings.HasPrefix(fileData, "data:"):
		return DataURL, nil
	case strings.HasPrefix(fileData, "%PDF"):
		return Raw, nil
	default:
		return Base64, nil
	}
}

// Decode turns msg into a file for the scan pipeline.
func Decode(msg Message) (scan.File, error) {
	if msg.Type != "scan" {
		return scan.File{}, fmt.Errorf("%w: message type %q", ErrInvalidPayload, msg.Type)
	}
	enc, err := Resolve(msg.FileData, msg.Encoding)
	if err != nil {
		return scan.File{}, err
	}

	var data []byte
	switch enc {
	case Raw:
		data, err = decodeBinaryString(msg.FileData)
	case Base64:
		data, err = decodeBase64(msg.FileData)
	case DataURL:
		data, err = decodeDataURL(msg.FileData)
	}
	if err != nil {
		return scan.File{}, err
	}
	return scan.File{Filename: msg.Filename, DeclaredSize: msg.FileSize, Data: data}, nil
}

// decodeBinaryString maps a binary string, one character per byte in
// U+0000..U+00FF, back to the bytes it carries.
func decodeBinaryString(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i, r := range s {
		if r > 0xFF {
			return nil, fmt.Errorf("%w: raw data: character %U at offset %d is not a byte", ErrInvalidPayload, r, i)
		}
		out = append(out, byte(r))
	}
	return out, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrInvalidPayload, err)
	}
	return b, nil
}

// decodeDataURL decodes "data:[<mediatype>][;base64],<data>".
func decodeDataURL(s string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: data url without comma", ErrInvalidPayload)
	}
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		return decodeBase64(payload)
	}
	b, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: data url: %v", ErrInvalidPayload, err)
	}
	return []byte(b), nil
}
