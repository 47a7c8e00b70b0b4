package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/sandrolain/gorhyme/pkg/types"
)

const eof = -1

// Lexer splits query text into tokens on demand.
type Lexer struct {
	src  string
	pos  int   // read offset
	mark int   // offset where the pending token starts
	err  error // once set, Next yields only TokenEOF
}

// NewLexer returns a lexer over input. Tokens are pulled with Next.
func NewLexer(input string) *Lexer {
	return &Lexer{src: input}
}

// Next returns the next token, or TokenEOF once the input is exhausted or
// an error was reported.
//
// The segment parameter tells the lexer that a path segment is expected,
// i.e. the previous token was a dot. Digits are then read as a field name,
// so that data.0.x addresses position 0 instead of the number 0.x.
func (l *Lexer) Next(segment bool) Token {
	if l.err != nil {
		return Token{Type: TokenEOF, Position: l.pos}
	}
	l.skipWhile(isWhitespace)
	l.mark = l.pos

	r := l.peek()
	switch {
	case r == eof:
		return Token{Type: TokenEOF, Position: l.pos}
	case symbolType(r) != 0:
		l.advance()
		return l.emit(symbolType(r))
	case r == '"' || r == '\'':
		return l.lexString(r)
	case r == '*':
		l.drop()
		l.skipWhile(isNameRune)
		return l.emit(TokenVar)
	case r == '$':
		l.drop()
		if !l.skipWhile(isDigit) {
			return l.fail(types.ErrBadSlot, "expected slot number after $")
		}
		return l.emit(TokenSlot)
	case !segment && (isDigit(r) || r == '-' && isDigit(l.peekAt(1))):
		return l.lexNumber()
	}
	return l.lexName()
}

// Error returns the error that stopped the lexer, if any.
func (l *Lexer) Error() error {
	return l.err
}

// lexString reads a quoted literal. The token holds the text between the
// quotes with escapes left in place.
func (l *Lexer) lexString(quote rune) Token {
	l.drop()
	for {
		switch l.peek() {
		case eof:
			return l.fail(types.ErrStringNotClosed, "unterminated string literal")
		case quote:
			t := l.emit(TokenString)
			l.advance()
			return t
		case '\\':
			l.advance()
			if l.peek() != eof {
				l.advance()
			}
		default:
			l.advance()
		}
	}
}

// lexNumber reads -?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]*)?
// A dot not followed by a digit is left for the path that follows.
func (l *Lexer) lexNumber() Token {
	l.skipIf(oneOf("-"))
	if !l.skipIf(oneOf("0")) {
		l.skipWhile(isDigit)
	}
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		l.advance()
		l.skipWhile(isDigit)
	}
	if l.skipIf(oneOf("eE")) {
		l.skipIf(oneOf("+-"))
		l.skipWhile(isDigit)
	}
	return l.emit(TokenNumber)
}

// lexName reads a bare word. true, false and null become keyword tokens.
func (l *Lexer) lexName() Token {
	if !l.skipWhile(isNameRune) {
		l.advance()
		return l.fail(types.ErrSyntaxError, "unexpected character")
	}
	t := l.emit(TokenName)
	if kw, ok := keywords[t.Value]; ok {
		t.Type = kw
	}
	return t
}

func (l *Lexer) emit(tt TokenType) Token {
	t := Token{Type: tt, Value: l.src[l.mark:l.pos], Position: l.mark}
	l.mark = l.pos
	return t
}

func (l *Lexer) fail(code types.ErrorCode, message string) Token {
	t := l.emit(TokenError)
	l.err = &types.Error{
		Code:     code,
		Message:  message,
		Position: t.Position,
		Token:    t.Value,
	}
	return t
}

func (l *Lexer) peek() rune {
	return l.peekAt(0)
}

// peekAt decodes the rune off bytes past the read offset.
func (l *Lexer) peekAt(off int) rune {
	if l.pos+off >= len(l.src) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos+off:])
	return r
}

func (l *Lexer) advance() {
	if l.pos < len(l.src) {
		_, w := utf8.DecodeRuneInString(l.src[l.pos:])
		l.pos += w
	}
}

// drop consumes the current rune without making it part of the token.
func (l *Lexer) drop() {
	l.advance()
	l.mark = l.pos
}

func (l *Lexer) skipIf(match func(rune) bool) bool {
	if !match(l.peek()) {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) skipWhile(match func(rune) bool) bool {
	from := l.pos
	for l.skipIf(match) {
	}
	return l.pos > from
}

func oneOf(set string) func(rune) bool {
	return func(r rune) bool {
		return r != eof && strings.ContainsRune(set, r)
	}
}

var isWhitespace = oneOf(" \t\n\r\v")

func isNameRune(r rune) bool {
	return r != eof && !isWhitespace(r) && symbolType(r) == 0 && !strings.ContainsRune("*$\"'", r)
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}
