// Package extract turns stored .txt and .pdf uploads into plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Media types the extractor understands.
const (
	MediaTypeText = "text/plain"
	MediaTypePDF  = "application/pdf"
)

// Source is a stored document stream plus the hints used to pick a decoder.
type Source struct {
	Reader    io.Reader
	MediaType string
	Filename  string
}

type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With("system", "extract")}
}

type kind int

const (
	kindUnknown kind = iota
	kindText
	kindPDF
)

// Extract reads src and returns its trimmed text. Decoding runs on its own
// goroutine so that ctx bounds the call even if a malformed PDF stalls the parser.
func (e *Extractor) Extract(ctx context.Context, src Source) (string, error) {
	if src.Reader == nil {
		return "", fmt.Errorf("failed to extract text: %w", ErrMissingSource)
	}

	k := detect(src.Filename, src.MediaType)
	if k == kindUnknown {
		return "", fmt.Errorf("failed to extract text: %w", ErrUnsupported)
	}

	data, err := io.ReadAll(src.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		var o outcome
		switch k {
		case kindText:
			o.text = decodeText(data)
		case kindPDF:
			o.text, o.err = pdfText(data)
		}
		done <- o
	}()

	select {
	case <-ctx.Done():
		e.logger.Warn("extraction abandoned", "filename", src.Filename, "error", ctx.Err())
		return "", fmt.Errorf("failed to extract text: %w", ctx.Err())
	case o := <-done:
		if o.err != nil {
			return "", fmt.Errorf("failed to extract text: %w", o.err)
		}
		text := strings.TrimSpace(o.text)
		if text == "" {
			return "", ErrNoText
		}
		e.logger.Debug("text extracted", "filename", src.Filename, "chars", utf8.RuneCountInString(text))
		return text, nil
	}
}

func detect(filename, mediaType string) kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return kindText
	case ".pdf":
		return kindPDF
	}

	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		switch mt {
		case MediaTypeText:
			return kindText
		case MediaTypePDF:
			return kindPDF
		}
	}
	return kindUnknown
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return strings.ToValidUTF8(string(data), "�")
}
