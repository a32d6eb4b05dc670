package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func pdfText(data []byte) (string, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return "", fmt.Errorf("validate pdf: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return "", fmt.Errorf("count pdf pages: %w", err)
	}

	var sb strings.Builder
	for page := 1; page <= ctx.PageCount; page++ {
		r, err := pdfcpu.ExtractPageContent(ctx, page)
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", page, err)
		}
		if r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", page, err)
		}
		if text := strings.TrimSpace(scanContent(content)); text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(text)
		}
	}

	return sb.String(), nil
}

// scanContent walks a page content stream and renders its text-showing
// operators (Tj, TJ, ' and ") as plain text. Positioning operators that
// move to a new line (T*, Td/TD with a vertical offset, Tm, ET) emit a
// newline. Glyph codes are decoded as PDFDocEncoding, or UTF-16BE when
// the string carries a byte order mark.
func scanContent(content []byte) string {
	s := &scanner{data: content}
	var (
		out      strings.Builder
		operands []token
	)

	newline := func() {
		if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n") {
			out.WriteByte('\n')
		}
	}

	for {
		tok, ok := s.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			writeLast(&out, operands, tokString)
		case "'", "\"":
			newline()
			writeLast(&out, operands, tokString)
		case "TJ":
			if n := len(operands); n > 0 && operands[n-1].kind == tokArray {
				for _, el := range operands[n-1].items {
					switch el.kind {
					case tokString:
						out.WriteString(decodePDFString(el.raw))
					case tokNumber:
						// large negative kerning separates words
						if el.num < -200 {
							out.WriteByte(' ')
						}
					}
				}
			}
		case "T*", "Tm", "ET":
			newline()
		case "Td", "TD":
			if n := len(operands); n >= 2 && operands[n-1].kind == tokNumber && operands[n-1].num != 0 {
				newline()
			} else if out.Len() > 0 {
				out.WriteByte(' ')
			}
		case "BI":
			s.skipInlineImage()
		}
		operands = operands[:0]
	}

	return out.String()
}

func writeLast(out *strings.Builder, operands []token, k tokenKind) {
	if n := len(operands); n > 0 && operands[n-1].kind == k {
		out.WriteString(decodePDFString(operands[n-1].raw))
	}
}

func decodePDFString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		b = b[2:]
		u := make([]uint16, 0, len(b)/2)
		for i := 0; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(u))
	}

	r := make([]rune, 0, len(b))
	for _, c := range b {
		if c < 0x20 && c != '\n' && c != '\t' {
			continue
		}
		r = append(r, rune(c))
	}
	return string(r)
}
