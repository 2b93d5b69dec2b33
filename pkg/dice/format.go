package dice

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders the canonical notation of an expression tree. The output
// depends only on the tree, never on earlier evaluations, and compiles
// back to an equivalent tree.
func Format(node Node) string {
	switch n := node.(type) {
	case *NumberNode:
		return strconv.Itoa(n.Value)
	case *DieNode:
		return "d" + strconv.Itoa(n.Sides)
	case *DiceSetNode:
		return formatDiceSet(n)
	case *ExpressionSetNode:
		return formatExpressionSet(n)
	case *BinaryNode:
		return Format(n.Left) + " " + n.Op.Symbol() + " " + Format(n.Right)
	case *KeepNode:
		return formatSelect(n.Source, "keep", "k", n.Count, n.Lowest, "lowest")
	case *DropNode:
		return formatSelect(n.Source, "drop", "d", n.Count, n.Highest, "highest")
	case *ExplodeNode:
		return formatRepeat(n.Source, "explode", "e", RelationGreaterOrEqual, n.Times, n.Threshold, n.Relation)
	case *RerollNode:
		return formatRepeat(n.Source, "reroll", "r", RelationLessOrEqual, n.Times, n.Threshold, n.Relation)
	case *EmphasisNode:
		return formatEmphasis(n)
	case *AggregateNode:
		expr := Format(n.Source)
		if !grouped(expr) {
			expr += " "
		}
		return expr + n.Func.String()
	default:
		return fmt.Sprintf("<%T>", node)
	}
}

// formatDiceSet prints "NdS" for uniform sets and "(dA, dB)" otherwise.
func formatDiceSet(n *DiceSetNode) string {
	if n.IsPure() {
		sides := strconv.Itoa(n.Dice[0].Sides)
		if len(n.Dice) == 1 {
			return "d" + sides
		}
		return strconv.Itoa(len(n.Dice)) + "d" + sides
	}

	parts := make([]string, len(n.Dice))
	for i, d := range n.Dice {
		parts[i] = Format(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatExpressionSet(n *ExpressionSetNode) string {
	if set, ok := n.dice(); ok {
		return formatDiceSet(set)
	}

	parts := make([]string, len(n.Items))
	for i, item := range n.Items {
		parts[i] = Format(item)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// formatSelect prints keep and drop. The short suffix is used for the
// default direction over an ungrouped source; the inverted direction is
// always spelled out.
func formatSelect(src *ExpressionSetNode, word, short string, count int, inverted bool, invertedWord string) string {
	expr := Format(src)
	n := strconv.Itoa(count)
	switch {
	case inverted:
		return expr + " " + word + " " + invertedWord + " " + n
	case grouped(expr):
		return expr + " " + word + " " + n
	default:
		return expr + short + n
	}
}

// formatRepeat prints explode and reroll.
func formatRepeat(src *DiceSetNode, word, short string, shortRel Relation, times, threshold int, rel Relation) string {
	expr := Format(src)
	if times == 0 && rel == shortRel && !grouped(expr) {
		return expr + short + strconv.Itoa(threshold)
	}

	var b strings.Builder
	b.WriteString(expr)
	b.WriteString(" " + word)
	if times == 0 {
		b.WriteString(" always")
	} else {
		fmt.Fprintf(&b, " %d times", times)
	}
	fmt.Fprintf(&b, " on %d", threshold)
	switch rel {
	case RelationGreaterOrEqual:
		b.WriteString(" or more")
	case RelationLessOrEqual:
		b.WriteString(" or less")
	}
	return b.String()
}

func formatEmphasis(n *EmphasisNode) string {
	expr := Format(n.Source)
	if n.HasFrom {
		expr += " furthest from " + strconv.Itoa(n.From)
	} else {
		expr += " emphasis"
	}
	switch n.Variant {
	case EmphasisHigh:
		expr += " high"
	case EmphasisLow:
		expr += " low"
	}
	return expr
}

func grouped(expr string) bool {
	return strings.HasPrefix(expr, "(")
}
