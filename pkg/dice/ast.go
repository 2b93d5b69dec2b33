package dice

// Node is the interface for all expression tree nodes. The set of node
// types is closed: Evaluate and Format switch over every implementation.
type Node interface {
	nodeType() string
}

// NumberNode represents an integer literal.
type NumberNode struct {
	Value int
}

func (n *NumberNode) nodeType() string { return "Number" }

// DieNode represents a single die with Sides faces, rolled as 1..Sides.
type DieNode struct {
	Sides int
}

func (n *DieNode) nodeType() string { return "Die" }

// DiceSetNode represents a non-empty ordered group of dice, e.g. 3d6 or (d4,d8).
type DiceSetNode struct {
	Dice []*DieNode
}

func (n *DiceSetNode) nodeType() string { return "DiceSet" }

// IsPure reports whether every die in the set has the same number of sides.
func (n *DiceSetNode) IsPure() bool {
	for _, d := range n.Dice {
		if d.Sides != n.Dice[0].Sides {
			return false
		}
	}
	return true
}

// ExpressionSetNode represents a non-empty parenthesized list of expressions.
type ExpressionSetNode struct {
	Items []Node
}

func (n *ExpressionSetNode) nodeType() string { return "ExpressionSet" }

// dice returns the items as a dice set when every item is a bare die.
func (n *ExpressionSetNode) dice() (*DiceSetNode, bool) {
	dice := make([]*DieNode, 0, len(n.Items))
	for _, item := range n.Items {
		d, ok := item.(*DieNode)
		if !ok {
			return nil, false
		}
		dice = append(dice, d)
	}
	return &DiceSetNode{Dice: dice}, len(dice) > 0
}

// BinaryNode represents an arithmetic operation (a + b, a - b, a * b, a / b).
type BinaryNode struct {
	Op    TokenType
	Left  Node
	Right Node
}

func (n *BinaryNode) nodeType() string { return "Binary" }

// KeepNode sums the Count highest (or lowest) results of Source.
type KeepNode struct {
	Source *ExpressionSetNode
	Count  int
	Lowest bool
}

func (n *KeepNode) nodeType() string { return "Keep" }

// DropNode discards the Count lowest (or highest) results of Source and sums the rest.
type DropNode struct {
	Source  *ExpressionSetNode
	Count   int
	Highest bool
}

func (n *DropNode) nodeType() string { return "Drop" }

// ExplodeNode rolls another die, adding it to the total, while the latest
// roll stands in Relation to Threshold. Times of 0 means no bound.
type ExplodeNode struct {
	Source    *DiceSetNode
	Times     int
	Threshold int
	Relation  Relation
}

func (n *ExplodeNode) nodeType() string { return "Explode" }

// RerollNode replaces a die's result while it stands in Relation to
// Threshold. Times of 0 means no bound.
type RerollNode struct {
	Source    *DiceSetNode
	Times     int
	Threshold int
	Relation  Relation
}

func (n *RerollNode) nodeType() string { return "Reroll" }

// EmphasisNode rolls each die twice and keeps the result furthest from a
// reference point: From when HasFrom is set, otherwise half the die's sides.
type EmphasisNode struct {
	Source  *DiceSetNode
	Variant EmphasisVariant
	From    int
	HasFrom bool
}

func (n *EmphasisNode) nodeType() string { return "Emphasis" }

// AggregateNode reduces the results of Source to a single statistic.
type AggregateNode struct {
	Func   Aggregate
	Source *ExpressionSetNode
}

func (n *AggregateNode) nodeType() string { return "Aggregate" }

// Relation compares a roll against a threshold.
type Relation int

const (
	RelationEqual Relation = iota
	RelationLessOrEqual
	RelationGreaterOrEqual
)

// Holds reports whether value stands in the relation to threshold.
func (r Relation) Holds(value, threshold int) bool {
	switch r {
	case RelationLessOrEqual:
		return value <= threshold
	case RelationGreaterOrEqual:
		return value >= threshold
	default:
		return value == threshold
	}
}

func (r Relation) String() string {
	switch r {
	case RelationEqual:
		return "Equal"
	case RelationLessOrEqual:
		return "LessOrEqual"
	case RelationGreaterOrEqual:
		return "GreaterOrEqual"
	default:
		return "Unknown"
	}
}

// EmphasisVariant decides how an emphasis tie is broken.
type EmphasisVariant int

const (
	EmphasisReroll EmphasisVariant = iota // roll the die again
	EmphasisHigh                          // take the higher result
	EmphasisLow                           // take the lower result
)

func (v EmphasisVariant) String() string {
	switch v {
	case EmphasisReroll:
		return "reroll"
	case EmphasisHigh:
		return "high"
	case EmphasisLow:
		return "low"
	default:
		return "unknown"
	}
}

// Aggregate is a statistic computed over already rolled values.
type Aggregate int

const (
	AggregateSum Aggregate = iota
	AggregateMin
	AggregateMax
	AggregateAverage
	AggregateMedian
)

func (a Aggregate) String() string {
	switch a {
	case AggregateSum:
		return "sum"
	case AggregateMin:
		return "min"
	case AggregateMax:
		return "max"
	case AggregateAverage:
		return "average"
	case AggregateMedian:
		return "median"
	default:
		return "unknown"
	}
}
