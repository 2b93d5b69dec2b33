package dice

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// keywords is every word the notation understands. Letter runs are split
// into these by longest prefix, so "keeplowest" reads as "keep lowest" and
// "max" is never mistaken for "ma" followed by the multiply letter x.
var keywords = []string{
	"sum", "min", "max", "average", "median",
	"keep", "drop", "lowest", "highest",
	"explode", "reroll", "always", "times", "on", "or", "more", "less",
	"emphasis", "furthest", "from", "high", "low",
	"d", "k", "e", "r", "x",
}

func init() {
	sort.SliceStable(keywords, func(i, j int) bool {
		return len(keywords[i]) > len(keywords[j])
	})
}

// Lexer tokenizes a dice notation string.
type Lexer struct {
	input  string
	pos    int
	depth  int
	fold   cases.Caser
	tokens []Token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, fold: cases.Fold()}
}

// Tokenize scans the entire input and returns all tokens, terminated by
// a TokenEOF. Parentheses must balance.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			break
		}
		if err := l.scan(); err != nil {
			return nil, err
		}
	}
	if l.depth != 0 {
		return nil, l.errorf(len(l.input), len(l.input), "unbalanced parentheses: %d left open", l.depth)
	}
	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos, End: l.pos})
	return l.tokens, nil
}

// scan appends the token(s) starting at the current position.
func (l *Lexer) scan() error {
	ch, size := utf8.DecodeRuneInString(l.input[l.pos:])

	if ch >= '0' && ch <= '9' {
		return l.readNumber()
	}
	if isWordLetter(ch) {
		return l.readWord()
	}

	start := l.pos
	emit := func(tt TokenType) {
		l.pos += size
		l.tokens = append(l.tokens, Token{Type: tt, Value: l.input[start:l.pos], Pos: start, End: l.pos, Depth: l.depth})
	}

	switch ch {
	case '(':
		emit(TokenLParen)
		l.depth++
	case ')':
		if l.depth == 0 {
			return l.errorf(start, start+size, "unbalanced parentheses: unexpected ')'")
		}
		l.depth--
		emit(TokenRParen)
	case ',':
		emit(TokenComma)
	case '%':
		emit(TokenPercent)
	case '+':
		emit(TokenPlus)
	case '-':
		emit(TokenMinus)
	case '*', '×', '⋅':
		emit(TokenMultiply)
	case '/', '÷':
		emit(TokenDivide)
	default:
		return l.errorf(start, start+size, "unexpected character %q", string(ch))
	}
	return nil
}

// readNumber reads a non-negative integer literal.
func (l *Lexer) readNumber() error {
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
		l.pos++
	}

	raw := l.input[start:l.pos]
	n, err := strconv.Atoi(raw)
	if err != nil {
		return l.errorf(start, l.pos, "number %s is out of range", raw)
	}
	l.tokens = append(l.tokens, Token{Type: TokenNumber, Value: raw, IntVal: n, Pos: start, End: l.pos, Depth: l.depth})
	return nil
}

// readWord reads a run of letters and splits it into keywords.
func (l *Lexer) readWord() error {
	start := l.pos
	for l.pos < len(l.input) {
		ch, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !isWordLetter(ch) {
			break
		}
		l.pos += size
	}

	word := l.fold.String(l.input[start:l.pos])
	for offset := 0; offset < len(word); {
		kw := matchKeyword(word[offset:])
		if kw == "" {
			return l.errorf(start+offset, l.pos, "unknown word %q", l.input[start+offset:l.pos])
		}
		tt := TokenWord
		if kw == "x" {
			tt = TokenMultiply
		}
		l.tokens = append(l.tokens, Token{
			Type:  tt,
			Value: kw,
			Pos:   start + offset,
			End:   start + offset + len(kw),
			Depth: l.depth,
		})
		offset += len(kw)
	}
	return nil
}

func matchKeyword(s string) string {
	for _, kw := range keywords {
		if strings.HasPrefix(s, kw) {
			return kw
		}
	}
	return ""
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		ch, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(ch) {
			return
		}
		l.pos += size
	}
}

func (l *Lexer) errorf(start, end int, format string, args ...any) error {
	if end > len(l.input) {
		end = len(l.input)
	}
	return &InvalidExpressionError{
		Input:    l.input,
		Fragment: l.input[start:end],
		Pos:      start,
		Reason:   fmt.Sprintf(format, args...),
	}
}

func isWordLetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
