package converter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// PlainText is the built-in basic conversion strategy. It decodes text
// sources (plain text, markdown, fetched HTML-free bodies) verbatim and
// rejects binary formats, which require an external strategy.
type PlainText struct{}

// NewPlainText creates the basic text strategy.
func NewPlainText() *PlainText {
	return &PlainText{}
}

// Convert implements the Converter interface. Progress is reported in
// stages: after loading the source, after decoding, and on completion.
func (p *PlainText) Convert(
	ctx context.Context,
	src Source,
	opts Options,
	progress ProgressFunc,
) (*Result, error) {
	if progress == nil {
		progress = func(int) {}
	}

	data := src.Data
	if data == nil && src.Path != "" {
		b, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, NewConversionError(DefaultMethod, "failed to read source file", err)
		}
		data = b
	}
	progress(25)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, NewConversionError(DefaultMethod, "source is empty", nil)
	}

	if !utf8.Valid(data) {
		return nil, NewConversionError(
			DefaultMethod,
			"source is not valid UTF-8 text; a richer conversion method is required",
			nil,
		)
	}
	progress(75)

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, NewConversionError(DefaultMethod, "source contains no text", nil)
	}

	progress(100)
	return &Result{
		Title: p.deriveTitle(src, opts, text),
		Text:  text,
	}, nil
}

// deriveTitle picks a title from the options hint, the source filename,
// or the first line of the extracted text, in that order.
func (p *PlainText) deriveTitle(src Source, opts Options, text string) string {
	if opts.TitleHint != "" {
		return opts.TitleHint
	}

	if src.Filename != "" {
		base := filepath.Base(src.Filename)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}

	first, _, _ := strings.Cut(text, "\n")
	first = strings.TrimSpace(strings.TrimLeft(first, "# "))
	const maxTitleLen = 80
	if utf8.RuneCountInString(first) > maxTitleLen {
		runes := []rune(first)
		first = string(runes[:maxTitleLen])
	}
	if first == "" {
		first = "Untitled"
	}
	return first
}
