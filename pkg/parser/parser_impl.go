package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/sandrolain/gorhyme/pkg/types"
)

// DefaultMaxDepth is the nesting limit used when none is configured.
const DefaultMaxDepth = 100

// Parser implements a recursive descent parser for rh templates.
// It uses Pratt's "Top Down Operator Precedence" algorithm for the infix
// operators.
type Parser struct {
	lexer   *Lexer
	current Token
	prev    Token
	opts    CompileOptions
	depth   int
}

// NewParser creates a new parser for the given input string.
func NewParser(input string, opts ...CompileOption) *Parser {
	options := CompileOptions{
		MaxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(&options)
	}

	p := &Parser{
		lexer: NewLexer(input),
		opts:  options,
	}

	// Read the first token
	p.advance()

	return p
}

// Parse parses the entire template and returns the query.
func (p *Parser) Parse() (*types.Query, error) {
	if p.current.Type == TokenError {
		return nil, p.lexer.Error()
	}

	if p.current.Type == TokenEOF {
		return nil, p.error(types.ErrUnexpectedEnd, "empty expression")
	}

	node, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}

	if p.current.Type != TokenEOF {
		return nil, p.error(types.ErrSyntaxError, fmt.Sprintf("unexpected token: %s", p.current.Value))
	}

	return types.NewQuery(node, p.lexer.src), nil
}

// ParsePath parses the input as a single path expression.
func (p *Parser) ParsePath() (*types.ASTNode, error) {
	if p.current.Type == TokenError {
		return nil, p.lexer.Error()
	}
	var node *types.ASTNode
	var err error
	switch p.current.Type {
	case TokenName, TokenBoolean, TokenNull, TokenVar:
		node, err = p.parsePath()
	case TokenEOF:
		return nil, p.error(types.ErrMalformedPath, "empty path")
	default:
		return nil, p.error(types.ErrMalformedPath, fmt.Sprintf("path cannot start with %s", p.current.Type))
	}
	if err != nil {
		return nil, err
	}
	if p.current.Type != TokenEOF {
		return nil, p.error(types.ErrMalformedPath, fmt.Sprintf("unexpected token in path: %s", p.current.Value))
	}
	return node, nil
}

// Operator precedence table (binding power)
// Higher values bind more tightly
var precedence = map[TokenType]int{
	TokenPlus: 50, // +
	TokenDiv:  60, // /
}

var infixKinds = map[TokenType]string{
	TokenPlus: types.OpPlus,
	TokenDiv:  types.OpDiv,
}

// getPrecedence returns the precedence of a token type.
func (p *Parser) getPrecedence(tt TokenType) int {
	if prec, ok := precedence[tt]; ok {
		return prec
	}
	return 0
}

// advance moves to the next token.
func (p *Parser) advance() {
	segment := p.current.Type == TokenDot
	p.prev = p.current
	p.current = p.lexer.Next(segment)
}

// expect checks if the current token matches the expected type and advances.
func (p *Parser) expect(tt TokenType) error {
	if p.current.Type != tt {
		if p.current.Type == TokenError {
			return p.lexer.Error()
		}
		if p.current.Type == TokenEOF {
			return p.error(types.ErrUnexpectedEnd, fmt.Sprintf("expected %s before end of input", tt))
		}
		return p.error(types.ErrExpectedToken, fmt.Sprintf("expected %s but got %s", tt, p.current.Type))
	}
	p.advance()
	return nil
}

// error creates a parser error at the current token.
func (p *Parser) error(code types.ErrorCode, message string) error {
	return &types.Error{
		Code:     code,
		Message:  message,
		Position: p.current.Position,
		Token:    p.current.Value,
	}
}

func (p *Parser) errorAt(code types.ErrorCode, message string, pos int) error {
	return types.NewError(code, message, pos)
}

func (p *Parser) enter() error {
	p.depth++
	if p.opts.MaxDepth > 0 && p.depth > p.opts.MaxDepth {
		return p.error(types.ErrTooDeep, fmt.Sprintf("expression nested deeper than %d", p.opts.MaxDepth))
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
}

// parseExpression parses an expression with operator precedence.
// rbp is the right binding power (minimum precedence).
func (p *Parser) parseExpression(rbp int) (*types.ASTNode, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseApplication()
	if err != nil {
		return nil, err
	}

	for rbp < p.getPrecedence(p.current.Type) {
		op := p.current
		p.advance()
		right, err := p.parseExpression(p.getPrecedence(op.Type))
		if err != nil {
			return nil, err
		}
		left = types.NewOp(infixKinds[op.Type], left, right)
		left.Position = op.Position
	}

	return left, nil
}

// parseApplication parses a term optionally followed by argument terms.
// Only built-in operator names and udf references can be applied.
func (p *Parser) parseApplication() (*types.ASTNode, error) {
	head, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	name, callable := calleeName(head)
	if !callable {
		return head, nil
	}
	udf := strings.HasPrefix(name, "udf.")
	if !udf && !p.current.Type.startsTerm() {
		// a bare builtin name is an ordinary field
		return head, nil
	}

	var args []*types.ASTNode
	for p.current.Type.startsTerm() {
		arg, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	if udf {
		n := types.NewApply(name, args...)
		n.Position = head.Position
		return n, nil
	}
	return p.makeCall(name, args, head.Position)
}

var builtins = map[string]int{
	types.AggSum:   1,
	types.AggCount: 1,
	types.AggArray: 1,
	types.AggJoin:  1,
	types.OpPlus:   2,
	types.OpDiv:    2,
	types.OpFDiv:   2,
	"merge":        2,
	"get":          -1,
}

// calleeName reports whether n can head an application.
func calleeName(n *types.ASTNode) (string, bool) {
	if n.Type != types.NodePath || len(n.Steps) == 0 {
		return "", false
	}
	names := make([]string, len(n.Steps))
	for i, s := range n.Steps {
		if s.Kind != types.SegField {
			return "", false
		}
		names[i] = s.Name
	}
	if len(names) == 1 {
		_, ok := builtins[names[0]]
		return names[0], ok
	}
	if names[0] == "udf" {
		return strings.Join(names, "."), true
	}
	return "", false
}

func (p *Parser) makeCall(name string, args []*types.ASTNode, pos int) (*types.ASTNode, error) {
	arity := builtins[name]
	if arity > 0 && len(args) != arity {
		return nil, p.errorAt(types.ErrBadOperator, fmt.Sprintf("%s expects %d argument(s), got %d", name, arity, len(args)), pos)
	}

	var n *types.ASTNode
	switch name {
	case types.AggSum, types.AggCount, types.AggArray, types.AggJoin:
		n = types.NewAggregate(name, args[0])
	case types.OpPlus, types.OpDiv, types.OpFDiv:
		n = types.NewOp(name, args[0], args[1])
	case "merge":
		n = types.NewMerge(args[0], args[1])
	case "get":
		if len(args) < 1 || len(args) > 2 {
			return nil, p.errorAt(types.ErrBadOperator, fmt.Sprintf("get expects 1 or 2 arguments, got %d", len(args)), pos)
		}
		var steps []types.Segment
		if len(args) == 2 {
			steps = []types.Segment{types.Dyn(args[1])}
		}
		n = types.NewGet(args[0], steps...)
	}
	n.Position = pos
	return n, nil
}

// parseTerm parses a single term: a path, a slot reference, a literal,
// a parenthesized expression, an object or an array.
func (p *Parser) parseTerm() (*types.ASTNode, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	token := p.current

	switch token.Type {
	case TokenString:
		return p.parseString()
	case TokenNumber:
		return p.parseNumber()
	case TokenBoolean:
		return p.parseBoolean()
	case TokenNull:
		node := types.NewLiteral(nil)
		node.Position = token.Position
		p.advance()
		return node, nil
	case TokenName, TokenVar:
		return p.parsePath()
	case TokenSlot:
		return p.parseSlot()
	case TokenParenOpen:
		return p.parseGrouping()
	case TokenBracketOpen:
		return p.parseArrayConstructor()
	case TokenBraceOpen:
		return p.parseObjectConstructor()
	case TokenError:
		return nil, p.lexer.Error()
	case TokenEOF:
		return nil, p.error(types.ErrUnexpectedEnd, "unexpected end of expression")
	default:
		return nil, p.error(types.ErrSyntaxError, fmt.Sprintf("unexpected token: %s", token.Type))
	}
}

// parsePath parses a path starting at the current token.
func (p *Parser) parsePath() (*types.ASTNode, error) {
	pos := p.current.Position
	first, err := p.parseSegment()
	if err != nil {
		return nil, err
	}
	steps, err := p.parseSteps([]types.Segment{first})
	if err != nil {
		return nil, err
	}
	node := types.NewPath(steps...)
	node.Position = pos
	return node, nil
}

// parseSteps parses ('.' segment)* and appends the segments to steps.
func (p *Parser) parseSteps(steps []types.Segment) ([]types.Segment, error) {
	for p.current.Type == TokenDot {
		p.advance() // Skip '.'
		seg, err := p.parseSegment()
		if err != nil {
			return nil, err
		}
		steps = append(steps, seg)
	}
	return steps, nil
}

// parseSegment parses one path segment.
func (p *Parser) parseSegment() (types.Segment, error) {
	token := p.current
	switch token.Type {
	case TokenName, TokenBoolean, TokenNull, TokenNumber:
		p.advance()
		return types.Field(token.Value), nil
	case TokenString:
		s, err := unescapeString(token.Value)
		if err != nil {
			return types.Segment{}, p.error(types.ErrStringNotClosed, fmt.Sprintf("invalid string literal: %v", err))
		}
		p.advance()
		return types.Field(s), nil
	case TokenVar:
		p.advance()
		return types.Var(token.Value), nil
	case TokenParenOpen:
		p.advance() // Skip '('
		expr, err := p.parseExpression(0)
		if err != nil {
			return types.Segment{}, err
		}
		if err := p.expect(TokenParenClose); err != nil {
			return types.Segment{}, err
		}
		return types.Dyn(expr), nil
	case TokenError:
		return types.Segment{}, p.lexer.Error()
	default:
		return types.Segment{}, p.error(types.ErrMalformedPath, fmt.Sprintf("expected path segment but got %s", token.Type))
	}
}

// parseSlot parses a template slot, optionally followed by a path into
// the slot's result.
func (p *Parser) parseSlot() (*types.ASTNode, error) {
	token := p.current
	n, err := strconv.Atoi(token.Value)
	if err != nil || n < 1 || n > len(p.opts.Slots) || p.opts.Slots[n-1] == nil {
		return nil, p.error(types.ErrBadSlot, fmt.Sprintf("slot $%s does not refer to a built query", token.Value))
	}
	p.advance()

	query := p.opts.Slots[n-1]
	if p.current.Type != TokenDot {
		return query, nil
	}
	steps, err := p.parseSteps(nil)
	if err != nil {
		return nil, err
	}
	node := types.NewGet(query, steps...)
	node.Position = token.Position
	return node, nil
}

// parseGrouping parses a parenthesized expression.
func (p *Parser) parseGrouping() (*types.ASTNode, error) {
	p.advance() // Skip '('

	expr, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenParenClose); err != nil {
		return nil, err
	}
	if p.current.Type == TokenDot {
		return nil, p.error(types.ErrMalformedPath, "path cannot start with a parenthesized expression")
	}
	return expr, nil
}

// parseArrayConstructor parses an array constructor [...].
func (p *Parser) parseArrayConstructor() (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance() // Skip '['

	var elems []*types.ASTNode
	for p.current.Type != TokenBracketClose {
		expr, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		elems = append(elems, expr)

		if p.current.Type == TokenBracketClose {
			break
		}
		if err := p.expect(TokenComma); err != nil {
			return nil, err
		}
	}
	p.advance() // Skip ']'

	node := types.NewArray(elems...)
	node.Position = pos
	return node, nil
}

// parseObjectConstructor parses an object constructor {...}.
func (p *Parser) parseObjectConstructor() (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance() // Skip '{'

	var entries []types.Entry
	for p.current.Type != TokenBraceClose {
		key, err := p.parseKey()
		if err != nil {
			return nil, err
		}

		if err := p.expect(TokenColon); err != nil {
			return nil, err
		}

		value, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		entries = append(entries, types.Entry{Key: key, Value: value})

		if p.current.Type == TokenBraceClose {
			break
		}
		if err := p.expect(TokenComma); err != nil {
			return nil, err
		}
	}
	p.advance() // Skip '}'

	node := types.NewObject(entries...)
	node.Position = pos
	return node, nil
}

// parseKey parses an object key. A bare name is a literal key, a quoted
// key follows the rule for surface keys, anything else is an expression.
func (p *Parser) parseKey() (*types.ASTNode, error) {
	token := p.current
	switch token.Type {
	case TokenString:
		s, err := unescapeString(token.Value)
		if err != nil {
			return nil, p.error(types.ErrStringNotClosed, fmt.Sprintf("invalid string literal: %v", err))
		}
		p.advance()
		key, err := KeyNode(s)
		if err != nil {
			return nil, err
		}
		return key, nil
	case TokenName:
		key, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if key.Type == types.NodePath && len(key.Steps) == 1 && key.Steps[0].Kind == types.SegField {
			lit := types.NewLiteral(key.Steps[0].Name)
			lit.Position = token.Position
			return lit, nil
		}
		return key, nil
	}
	return p.parseExpression(0)
}

// parseString parses a string literal.
func (p *Parser) parseString() (*types.ASTNode, error) {
	unescaped, err := unescapeString(p.current.Value)
	if err != nil {
		return nil, p.error(types.ErrStringNotClosed, fmt.Sprintf("invalid string literal: %v", err))
	}

	node := types.NewLiteral(unescaped)
	node.Position = p.current.Position
	p.advance()
	return node, nil
}

// parseNumber parses a number literal.
func (p *Parser) parseNumber() (*types.ASTNode, error) {
	val, err := strconv.ParseFloat(p.current.Value, 64)
	if err != nil || math.IsInf(val, 0) {
		return nil, p.error(types.ErrNumberOutOfRange, fmt.Sprintf("invalid number: %s", p.current.Value))
	}

	node := types.NewLiteral(val)
	node.Position = p.current.Position
	p.advance()
	return node, nil
}

// parseBoolean parses a boolean literal.
func (p *Parser) parseBoolean() (*types.ASTNode, error) {
	node := types.NewLiteral(p.current.Value == "true")
	node.Position = p.current.Position
	p.advance()
	return node, nil
}

// unescapeString processes escape sequences in a string literal.
// Handles standard escapes (\n, \t, etc.) and Unicode escapes (\uXXXX).
// Also handles UTF-16 surrogate pairs for characters outside the BMP.
func unescapeString(s string) (string, error) {
	if !strings.Contains(s, "\\") {
		return s, nil // Fast path: no escapes
	}

	var result strings.Builder
	result.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			result.WriteByte(s[i])
			continue
		}

		i++ // Skip backslash
		if i >= len(s) {
			return "", fmt.Errorf("invalid escape sequence at end of string")
		}

		switch s[i] {
		case 'n':
			result.WriteByte('\n')
		case 't':
			result.WriteByte('\t')
		case 'r':
			result.WriteByte('\r')
		case 'b':
			result.WriteByte('\b')
		case 'f':
			result.WriteByte('\f')
		case '\\', '"', '\'', '/':
			result.WriteByte(s[i])
		case 'u':
			if i+4 >= len(s) {
				return "", fmt.Errorf("invalid \\u escape: not enough characters")
			}
			hex := s[i+1 : i+5]
			codePoint, err := strconv.ParseUint(hex, 16, 16)
			if err != nil {
				return "", fmt.Errorf("invalid \\u escape: %s", hex)
			}
			i += 4
			r := rune(codePoint)

			// high surrogate followed by a low surrogate
			if r >= 0xD800 && r <= 0xDBFF && i+6 < len(s) && s[i+1] == '\\' && s[i+2] == 'u' {
				low, err := strconv.ParseUint(s[i+3:i+7], 16, 16)
				if err == nil && low >= 0xDC00 && low <= 0xDFFF {
					result.WriteRune(utf16.DecodeRune(r, rune(low)))
					i += 6
					continue
				}
			}
			result.WriteRune(r)
		default:
			return "", fmt.Errorf("invalid escape sequence: \\%c", s[i])
		}
	}

	return result.String(), nil
}
