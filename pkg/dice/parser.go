package dice

import (
	"fmt"
)

const (
	// DefaultMaxLength is the longest notation Compile accepts.
	DefaultMaxLength = 1000

	// DefaultMaxDice is the largest die count a single "NdS" spec may request.
	DefaultMaxDice = 10000

	// percentSides is the face count of d%.
	percentSides = 100

	// percentSetSides is the face count of d% written inside a bracketed
	// dice list such as (d6,d%). Kept distinct from percentSides on purpose.
	percentSetSides = 1000
)

// Options tunes a Compiler.
type Options struct {
	// MaxLength caps the notation length. Zero means DefaultMaxLength.
	MaxLength int

	// MaxDice caps the count of a single dice spec. Zero means DefaultMaxDice.
	MaxDice int

	// LenientSets turns an element of a parenthesized expression list that
	// fails to compile into the literal 0 instead of failing the whole
	// notation. Only for callers that depend on that older behaviour.
	LenientSets bool
}

// Compiler turns dice notation into expression trees. A Compiler is
// stateless once built and may be shared between goroutines.
type Compiler struct {
	opts Options
}

// NewCompiler creates a compiler with the given options.
func NewCompiler(opts Options) *Compiler {
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	if opts.MaxDice <= 0 {
		opts.MaxDice = DefaultMaxDice
	}
	return &Compiler{opts: opts}
}

var defaultCompiler = NewCompiler(Options{})

// Compile compiles notation with the default options.
func Compile(input string) (Node, error) {
	return defaultCompiler.Compile(input)
}

// Compile compiles a complete notation string into an expression tree.
// Every failure is an *InvalidExpressionError.
func (c *Compiler) Compile(input string) (Node, error) {
	if len(input) > c.opts.MaxLength {
		return nil, &InvalidExpressionError{
			Input:  input,
			Reason: fmt.Sprintf("expression exceeds maximum length of %d characters", c.opts.MaxLength),
		}
	}

	tokens, err := NewLexer(input).Tokenize()
	if err != nil {
		return nil, err
	}

	p := &parser{opts: c.opts, input: input}
	return p.compile(tokens[:len(tokens)-1], 0)
}

// parser holds the state of one Compile call.
type parser struct {
	opts  Options
	input string
}

// segment is one entry of the flat operand/operator sequence produced by
// splitting the tokens of one nesting level.
type segment struct {
	isOp   bool
	op     TokenType
	tokens []Token
	node   Node // operand tree, set once classified
}

func (s segment) span() (int, int) {
	return s.tokens[0].Pos, s.tokens[len(s.tokens)-1].End
}

// compile compiles the tokens of a full expression whose top level sits
// at the given parenthesis depth.
func (p *parser) compile(tokens []Token, depth int) (Node, error) {
	if len(tokens) == 0 {
		return nil, p.errorf(nil, "empty expression")
	}
	return p.reduce(split(tokens, depth), depth)
}

// split cuts tokens into operands and operators at the given depth.
// Operators nested deeper in parentheses stay inside their operand.
func split(tokens []Token, depth int) []segment {
	var segs []segment
	var current []Token
	flush := func() {
		if len(current) > 0 {
			segs = append(segs, segment{tokens: current})
			current = nil
		}
	}

	for _, tok := range tokens {
		if tok.Depth == depth && tok.IsOperator() {
			flush()
			segs = append(segs, segment{isOp: true, op: tok.Type, tokens: []Token{tok}})
			continue
		}
		current = append(current, tok)
	}
	flush()
	return segs
}

// reduce folds the segment sequence into one tree: multiply and divide
// first, then plus and minus, each pass left to right.
func (p *parser) reduce(segs []segment, depth int) (Node, error) {
	passes := [][2]TokenType{
		{TokenMultiply, TokenDivide},
		{TokenPlus, TokenMinus},
	}

	for _, ops := range passes {
		for i := 0; i < len(segs); i++ {
			s := segs[i]
			if !s.isOp || (s.op != ops[0] && s.op != ops[1]) {
				continue
			}
			if i == 0 || i == len(segs)-1 || segs[i-1].isOp || segs[i+1].isOp {
				return nil, p.errorf(s.tokens, "operator %q is missing an operand", s.tokens[0].Value)
			}

			left, err := p.resolve(&segs[i-1], depth)
			if err != nil {
				return nil, err
			}
			right, err := p.resolve(&segs[i+1], depth)
			if err != nil {
				return nil, err
			}

			merged := segment{
				tokens: joinTokens(segs[i-1].tokens, segs[i+1].tokens),
				node:   &BinaryNode{Op: s.op, Left: left, Right: right},
			}
			rest := append([]segment{merged}, segs[i+2:]...)
			segs = append(segs[:i-1], rest...)
			// the merged operand now sits at i-1; look at i again
			i--
		}
	}

	if len(segs) != 1 || segs[0].isOp {
		return nil, p.errorf(nil, "expression is not a valid infix expression")
	}
	return p.resolve(&segs[0], depth)
}

// joinTokens returns a two-token slice spanning from the first token of
// left to the last token of right, enough for error spans.
func joinTokens(left, right []Token) []Token {
	return []Token{left[0], right[len(right)-1]}
}

// resolve classifies an operand segment, once.
func (p *parser) resolve(s *segment, depth int) (Node, error) {
	if s.node != nil {
		return s.node, nil
	}
	node, err := p.operand(s.tokens, depth)
	if err != nil {
		return nil, err
	}
	s.node = node
	return node, nil
}

// setSource is the group an optional modifier applies to: either a dice
// set or a general expression set.
type setSource struct {
	dice  *DiceSetNode
	exprs *ExpressionSetNode
}

func (s setSource) node() Node {
	if s.dice != nil {
		return s.dice
	}
	return s.exprs
}

// expressions views the source as an expression set; a dice set becomes
// one item per die.
func (s setSource) expressions() *ExpressionSetNode {
	if s.dice == nil {
		return s.exprs
	}
	items := make([]Node, len(s.dice.Dice))
	for i, d := range s.dice.Dice {
		items[i] = d
	}
	return &ExpressionSetNode{Items: items}
}

// operand classifies the tokens of a single operand: a literal, a dice
// spec or a parenthesized group, followed by an optional modifier.
func (p *parser) operand(tokens []Token, depth int) (Node, error) {
	first := tokens[0]
	if len(tokens) == 1 && first.Type == TokenNumber {
		return &NumberNode{Value: first.IntVal}, nil
	}

	var src setSource
	var suffix []Token

	if first.Type == TokenLParen {
		closing := matchingParen(tokens)
		group, err := p.group(tokens[:closing+1], depth+1)
		if err != nil {
			return nil, err
		}
		src = group
		suffix = tokens[closing+1:]
	} else {
		set, rest, err := p.dieSpec(tokens)
		if err != nil {
			return nil, err
		}
		src = setSource{dice: set}
		suffix = rest
	}

	return p.modifier(src, tokens, suffix)
}

// matchingParen returns the index of the parenthesis closing tokens[0].
func matchingParen(tokens []Token) int {
	for i := 1; i < len(tokens); i++ {
		if tokens[i].Type == TokenRParen && tokens[i].Depth == tokens[0].Depth {
			return i
		}
	}
	// the lexer guarantees balance
	return len(tokens) - 1
}

// group parses "(...)" as a dice set when every element is a bare die
// such as d6 or d%, and as an expression set otherwise.
func (p *parser) group(tokens []Token, depth int) (setSource, error) {
	inner := tokens[1 : len(tokens)-1]
	if len(inner) == 0 {
		return setSource{}, p.errorf(tokens, "empty parentheses")
	}

	var elems [][]Token
	var current []Token
	for _, tok := range inner {
		if tok.Type == TokenComma && tok.Depth == depth {
			elems = append(elems, current)
			current = nil
			continue
		}
		current = append(current, tok)
	}
	elems = append(elems, current)

	for _, elem := range elems {
		if len(elem) == 0 {
			return setSource{}, p.errorf(tokens, "empty element in list")
		}
	}

	if dice, ok := bareDice(elems); ok {
		for _, d := range dice {
			if d.Sides < 2 {
				return setSource{}, p.errorf(tokens, "a die needs at least 2 sides, got %d", d.Sides)
			}
		}
		return setSource{dice: &DiceSetNode{Dice: dice}}, nil
	}

	items := make([]Node, 0, len(elems))
	for _, elem := range elems {
		node, err := p.compile(elem, depth)
		if err != nil {
			if !p.opts.LenientSets {
				return setSource{}, err
			}
			node = &NumberNode{Value: 0}
		}
		items = append(items, node)
	}
	return setSource{exprs: &ExpressionSetNode{Items: items}}, nil
}

// bareDice reports whether every element is exactly "d<sides>" or "d%".
func bareDice(elems [][]Token) ([]*DieNode, bool) {
	dice := make([]*DieNode, 0, len(elems))
	for _, elem := range elems {
		if len(elem) != 2 || !isWord(elem[0], "d") {
			return nil, false
		}
		switch elem[1].Type {
		case TokenNumber:
			dice = append(dice, &DieNode{Sides: elem[1].IntVal})
		case TokenPercent:
			dice = append(dice, &DieNode{Sides: percentSetSides})
		default:
			return nil, false
		}
	}
	return dice, true
}

// dieSpec parses "[count]d(sides|%)" and returns the remaining tokens.
func (p *parser) dieSpec(tokens []Token) (*DiceSetNode, []Token, error) {
	i := 0
	count := 1
	if tokens[i].Type == TokenNumber {
		count = tokens[i].IntVal
		i++
	}

	if i >= len(tokens) || !isWord(tokens[i], "d") {
		return nil, nil, p.errorf(tokens, "expected a number, a die such as 2d6, or a parenthesized group")
	}
	i++

	if i >= len(tokens) {
		return nil, nil, p.errorf(tokens, "missing die sides after 'd'")
	}
	var sides int
	switch tokens[i].Type {
	case TokenNumber:
		sides = tokens[i].IntVal
	case TokenPercent:
		sides = percentSides
	default:
		return nil, nil, p.errorf(tokens, "missing die sides after 'd'")
	}
	i++

	spec := tokens[:i]
	if count < 1 {
		return nil, nil, p.errorf(spec, "dice count must be at least 1")
	}
	if count > p.opts.MaxDice {
		return nil, nil, p.errorf(spec, "dice count %d exceeds maximum of %d", count, p.opts.MaxDice)
	}
	if sides < 2 {
		return nil, nil, p.errorf(spec, "a die needs at least 2 sides, got %d", sides)
	}

	dice := make([]*DieNode, count)
	for j := range dice {
		dice[j] = &DieNode{Sides: sides}
	}
	return &DiceSetNode{Dice: dice}, tokens[i:], nil
}

// modifier matches the suffix after a dice spec or group against the
// modifier grammar. An empty suffix yields the source itself.
func (p *parser) modifier(src setSource, operand, suffix []Token) (Node, error) {
	m := &modifierParser{parser: p, operand: operand, tokens: suffix}
	if m.done() {
		return src.node(), nil
	}

	tok := m.advance()
	if tok.Type != TokenWord {
		return nil, p.errorf(operand, "unrecognized modifier %q", tok.Value)
	}

	var node Node
	var err error
	switch tok.Value {
	case "sum":
		node = src.node()
	case "min":
		node = &AggregateNode{Func: AggregateMin, Source: src.expressions()}
	case "max":
		node = &AggregateNode{Func: AggregateMax, Source: src.expressions()}
	case "average":
		node = &AggregateNode{Func: AggregateAverage, Source: src.expressions()}
	case "median":
		node = &AggregateNode{Func: AggregateMedian, Source: src.expressions()}
	case "k", "keep":
		lowest := false
		if tok.Value == "keep" {
			lowest = m.direction(false)
		}
		var count int
		count, err = m.count("keep")
		node = &KeepNode{Source: src.expressions(), Count: count, Lowest: lowest}
	case "d", "drop":
		highest := false
		if tok.Value == "drop" {
			highest = !m.direction(true)
		}
		var count int
		count, err = m.count("drop")
		node = &DropNode{Source: src.expressions(), Count: count, Highest: highest}
	case "e", "explode":
		if src.dice == nil {
			return nil, p.errorf(operand, "explode applies only to dice")
		}
		var times, threshold int
		var rel Relation
		times, threshold, rel, err = m.repeat(tok.Value == "e", RelationGreaterOrEqual)
		node = &ExplodeNode{Source: src.dice, Times: times, Threshold: threshold, Relation: rel}
	case "r", "reroll":
		if src.dice == nil {
			return nil, p.errorf(operand, "reroll applies only to dice")
		}
		var times, threshold int
		var rel Relation
		times, threshold, rel, err = m.repeat(tok.Value == "r", RelationLessOrEqual)
		node = &RerollNode{Source: src.dice, Times: times, Threshold: threshold, Relation: rel}
	case "emphasis", "furthest":
		if src.dice == nil {
			return nil, p.errorf(operand, "emphasis applies only to dice")
		}
		em := &EmphasisNode{Source: src.dice}
		if tok.Value == "furthest" {
			if !m.word("from") {
				return nil, p.errorf(operand, "expected 'from' after 'furthest'")
			}
			em.From, err = m.number("furthest from")
			em.HasFrom = true
		}
		em.Variant = m.variant()
		node = em
	default:
		return nil, p.errorf(operand, "unrecognized modifier %q", tok.Value)
	}
	if err != nil {
		return nil, err
	}

	if !m.done() {
		return nil, p.errorf(operand, "unexpected %q after modifier", m.current().Value)
	}
	return node, nil
}

// modifierParser walks the suffix tokens of one operand.
type modifierParser struct {
	parser  *parser
	operand []Token
	tokens  []Token
	pos     int
}

func (m *modifierParser) done() bool {
	return m.pos >= len(m.tokens)
}

func (m *modifierParser) current() Token {
	if m.done() {
		return Token{Type: TokenEOF}
	}
	return m.tokens[m.pos]
}

func (m *modifierParser) advance() Token {
	tok := m.current()
	m.pos++
	return tok
}

// word consumes the current token if it is the keyword kw.
func (m *modifierParser) word(kw string) bool {
	if isWord(m.current(), kw) {
		m.pos++
		return true
	}
	return false
}

// number consumes an integer parameter of the named modifier.
func (m *modifierParser) number(what string) (int, error) {
	tok := m.current()
	if tok.Type != TokenNumber {
		return 0, m.parser.errorf(m.operand, "expected a number after %s", what)
	}
	m.pos++
	return tok.IntVal, nil
}

// count consumes a keep/drop count, which must be at least 1.
func (m *modifierParser) count(what string) (int, error) {
	n, err := m.number(what)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, m.parser.errorf(m.operand, "%s count must be at least 1", what)
	}
	return n, nil
}

// direction consumes an optional lowest/highest word and reports whether
// the lowest results were selected.
func (m *modifierParser) direction(defaultLowest bool) bool {
	switch {
	case m.word("lowest"):
		return true
	case m.word("highest"):
		return false
	default:
		return defaultLowest
	}
}

// repeat parses the parameters of explode and reroll: either the short
// "<N>" form or "(always|<N> times) on <T> [or (more|less)]".
func (m *modifierParser) repeat(short bool, shortRelation Relation) (times, threshold int, rel Relation, err error) {
	if short {
		threshold, err = m.number("the modifier")
		return 0, threshold, shortRelation, err
	}

	if !m.word("always") {
		times, err = m.number("explode or reroll")
		if err != nil {
			return 0, 0, 0, m.parser.errorf(m.operand, "expected 'always' or '<N> times'")
		}
		if !m.word("times") {
			return 0, 0, 0, m.parser.errorf(m.operand, "expected 'times' after %d", times)
		}
	}

	if !m.word("on") {
		return 0, 0, 0, m.parser.errorf(m.operand, "expected 'on <threshold>'")
	}
	threshold, err = m.number("on")
	if err != nil {
		return 0, 0, 0, err
	}

	rel = RelationEqual
	if m.word("or") {
		switch {
		case m.word("more"):
			rel = RelationGreaterOrEqual
		case m.word("less"):
			rel = RelationLessOrEqual
		default:
			return 0, 0, 0, m.parser.errorf(m.operand, "expected 'more' or 'less' after 'or'")
		}
	}
	return times, threshold, rel, nil
}

// variant consumes an optional emphasis tie-break word; reroll by default.
func (m *modifierParser) variant() EmphasisVariant {
	switch {
	case m.word("high"):
		return EmphasisHigh
	case m.word("low"):
		return EmphasisLow
	default:
		m.word("reroll")
		return EmphasisReroll
	}
}

func isWord(tok Token, kw string) bool {
	return tok.Type == TokenWord && tok.Value == kw
}

// errorf builds an InvalidExpressionError spanning tokens.
func (p *parser) errorf(tokens []Token, format string, args ...any) error {
	err := &InvalidExpressionError{
		Input:  p.input,
		Reason: fmt.Sprintf(format, args...),
	}
	if len(tokens) > 0 {
		start, end := tokens[0].Pos, tokens[len(tokens)-1].End
		err.Fragment = p.input[start:end]
		err.Pos = start
	}
	return err
}
