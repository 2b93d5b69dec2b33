// Package dice compiles tabletop dice notation such as "4d6k3 + 2" or
// "(d6,d8,d10)average" into an expression tree that can be rolled and
// printed back in canonical form.
package dice

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Literals
	TokenNumber  TokenType = iota // integer literal
	TokenWord                     // keyword or die letter (d, k, keep, explode, ...)
	TokenPercent                  // % (percentile die faces)

	// Grouping
	TokenLParen // (
	TokenRParen // )
	TokenComma  // ,

	// Arithmetic
	TokenPlus     // +
	TokenMinus    // -
	TokenMultiply // * × ⋅ x
	TokenDivide   // / ÷

	// Special
	TokenEOF // end of notation
)

// Token represents a single lexical token.
type Token struct {
	Type   TokenType
	Value  string // raw text; case-folded for TokenWord
	IntVal int    // parsed value (for TokenNumber)
	Pos    int    // byte offset in source
	End    int    // byte offset just past the token
	Depth  int    // parenthesis nesting level the token sits at
}

// IsOperator reports whether the token is one of the four arithmetic operators.
func (t Token) IsOperator() bool {
	switch t.Type {
	case TokenPlus, TokenMinus, TokenMultiply, TokenDivide:
		return true
	}
	return false
}

// String returns a debug-friendly representation of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenNumber:
		return "NUMBER"
	case TokenWord:
		return "WORD"
	case TokenPercent:
		return "PERCENT"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	case TokenComma:
		return "COMMA"
	case TokenPlus:
		return "PLUS"
	case TokenMinus:
		return "MINUS"
	case TokenMultiply:
		return "MULTIPLY"
	case TokenDivide:
		return "DIVIDE"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Symbol returns the canonical printed form of an arithmetic operator.
func (t TokenType) Symbol() string {
	switch t {
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenMultiply:
		return "*"
	case TokenDivide:
		return "/"
	default:
		return "?"
	}
}
