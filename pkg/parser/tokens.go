package parser

import "strings"

// TokenType classifies a token of query text.
type TokenType uint8

const (
	TokenEOF TokenType = iota
	TokenError

	TokenString  // quoted with " or '
	TokenNumber  // JSON number, optionally negative
	TokenBoolean // true or false
	TokenNull    // null
	TokenName    // bare word: path segment, function or key
	TokenVar     // * or *NAME, Value holds NAME
	TokenSlot    // $N, Value holds N

	TokenBracketOpen
	TokenBracketClose
	TokenBraceOpen
	TokenBraceClose
	TokenParenOpen
	TokenParenClose
	TokenDot
	TokenComma
	TokenColon
	TokenPlus
	TokenDiv
)

var tokenNames = [...]string{
	TokenEOF:          "(eof)",
	TokenError:        "(error)",
	TokenString:       "(string)",
	TokenNumber:       "(number)",
	TokenBoolean:      "(boolean)",
	TokenNull:         "(null)",
	TokenName:         "(name)",
	TokenVar:          "(variable)",
	TokenSlot:         "(slot)",
	TokenBracketOpen:  "[",
	TokenBracketClose: "]",
	TokenBraceOpen:    "{",
	TokenBraceClose:   "}",
	TokenParenOpen:    "(",
	TokenParenClose:   ")",
	TokenDot:          ".",
	TokenComma:        ",",
	TokenColon:        ":",
	TokenPlus:         "+",
	TokenDiv:          "/",
}

// String returns the symbol of punctuation tokens and a parenthesized
// class name for the others.
func (tt TokenType) String() string {
	if int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return "(unknown)"
}

// Token is one lexeme together with its byte offset in the query text.
type Token struct {
	Type     TokenType
	Value    string
	Position int
}

// symbolChars and symbolTypes are parallel: the i-th character lexes as
// the i-th type.
const symbolChars = "[]{}().,:+/"

var symbolTypes = [len(symbolChars)]TokenType{
	TokenBracketOpen, TokenBracketClose,
	TokenBraceOpen, TokenBraceClose,
	TokenParenOpen, TokenParenClose,
	TokenDot, TokenComma, TokenColon,
	TokenPlus, TokenDiv,
}

// symbolType returns the type of a one-character symbol, or zero.
func symbolType(r rune) TokenType {
	if i := strings.IndexRune(symbolChars, r); i >= 0 {
		return symbolTypes[i]
	}
	return 0
}

var keywords = map[string]TokenType{
	"true":  TokenBoolean,
	"false": TokenBoolean,
	"null":  TokenNull,
}

const termStarts = 1<<TokenString | 1<<TokenNumber | 1<<TokenBoolean | 1<<TokenNull |
	1<<TokenName | 1<<TokenVar | 1<<TokenSlot |
	1<<TokenBracketOpen | 1<<TokenBraceOpen | 1<<TokenParenOpen

// startsTerm reports whether a token of this type can begin a term.
func (tt TokenType) startsTerm() bool {
	return uint32(termStarts)&(uint32(1)<<tt) != 0
}
