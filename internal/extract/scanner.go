package extract

import (
	"bytes"
	"strconv"
)

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokNumber
	tokString
	tokName
	tokArray
	tokDict
)

type token struct {
	kind  tokenKind
	text  string
	raw   []byte
	num   float64
	items []token
}

// scanner tokenizes PDF content streams. It understands enough of the
// syntax to find string operands and operators; everything else is
// consumed and discarded.
type scanner struct {
	data []byte
	pos  int
}

func isWhite(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case isWhite(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
		default:
			return
		}
	}
}

func (s *scanner) next() (token, bool) {
	for {
		s.skipSpace()
		if s.pos >= len(s.data) {
			return token{}, false
		}

		c := s.data[s.pos]
		switch {
		case c == '(':
			return token{kind: tokString, raw: s.literal()}, true
		case c == '<' && s.peek(1) == '<':
			s.pos += 2
			return s.dict(), true
		case c == '<':
			return token{kind: tokString, raw: s.hex()}, true
		case c == '[':
			s.pos++
			return s.array(), true
		case c == '/':
			s.pos++
			return token{kind: tokName, text: s.word()}, true
		case isDelim(c):
			// unbalanced closer
			s.pos++
			continue
		}

		w := s.word()
		if n, err := strconv.ParseFloat(w, 64); err == nil {
			return token{kind: tokNumber, num: n, text: w}, true
		}
		return token{kind: tokOperator, text: w}, true
	}
}

func (s *scanner) peek(off int) byte {
	if s.pos+off < len(s.data) {
		return s.data[s.pos+off]
	}
	return 0
}

func (s *scanner) word() string {
	start := s.pos
	for s.pos < len(s.data) && !isWhite(s.data[s.pos]) && !isDelim(s.data[s.pos]) {
		s.pos++
	}
	return string(s.data[start:s.pos])
}

func (s *scanner) literal() []byte {
	s.pos++ // (
	var buf bytes.Buffer
	depth := 1

	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++

		switch c {
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return buf.Bytes()
			}
			buf.WriteByte(c)
		case '\\':
			if s.pos >= len(s.data) {
				return buf.Bytes()
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				if s.peek(0) == '\n' {
					s.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; i++ {
						v = v*8 + int(s.data[s.pos]-'0')
						s.pos++
					}
					buf.WriteByte(byte(v))
				} else {
					buf.WriteByte(e)
				}
			}
		default:
			buf.WriteByte(c)
		}
	}
	return buf.Bytes()
}

func (s *scanner) hex() []byte {
	s.pos++ // <
	var digits []byte
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		c := s.data[s.pos]
		if !isWhite(c) {
			digits = append(digits, c)
		}
		s.pos++
	}
	s.pos++ // >

	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return out
}

func (s *scanner) array() token {
	arr := token{kind: tokArray}
	for {
		s.skipSpace()
		if s.pos >= len(s.data) {
			return arr
		}
		if s.data[s.pos] == ']' {
			s.pos++
			return arr
		}
		tok, ok := s.next()
		if !ok {
			return arr
		}
		arr.items = append(arr.items, tok)
	}
}

func (s *scanner) dict() token {
	for {
		s.skipSpace()
		if s.pos >= len(s.data) {
			break
		}
		if s.data[s.pos] == '>' && s.peek(1) == '>' {
			s.pos += 2
			break
		}
		if _, ok := s.next(); !ok {
			break
		}
	}
	return token{kind: tokDict}
}

// skipInlineImage advances past the binary payload of a BI ... ID ... EI block.
func (s *scanner) skipInlineImage() {
	if i := bytes.Index(s.data[s.pos:], []byte("ID")); i >= 0 {
		s.pos += i + 2
	}
	for s.pos < len(s.data) {
		i := bytes.Index(s.data[s.pos:], []byte("EI"))
		if i < 0 {
			s.pos = len(s.data)
			return
		}
		end := s.pos + i
		before := end == 0 || isWhite(s.data[end-1])
		after := end+2 >= len(s.data) || isWhite(s.data[end+2])
		s.pos = end + 2
		if before && after {
			return
		}
	}
}
