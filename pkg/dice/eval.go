package dice

import (
	"fmt"
	"sort"

	"github.com/lemonberrylabs/dicenotation/pkg/rolllog"
)

// DefaultRollLimit bounds the atomic rolls one Roller performs.
const DefaultRollLimit = 100000

// Source draws random integers in [0, n). *math/rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
}

// Recorder receives every atomic die outcome. *rolllog.Log satisfies it.
type Recorder interface {
	Record(sides, result int)
}

// Roller is the evaluation context threaded through Evaluate: where rolls
// come from, where they are recorded, and how many are allowed. A Roller
// belongs to one evaluation at a time; use one per goroutine.
type Roller struct {
	src   Source
	rec   Recorder
	limit int
	rolls int
}

// RollerOption configures a Roller.
type RollerOption func(*Roller)

// WithRollLimit caps the number of atomic rolls. Values below 1 disable the cap.
func WithRollLimit(n int) RollerOption {
	return func(r *Roller) {
		r.limit = n
	}
}

// NewRoller creates a roller drawing from src and reporting to rec. rec may be nil.
func NewRoller(src Source, rec Recorder, opts ...RollerOption) *Roller {
	r := &Roller{src: src, rec: rec, limit: DefaultRollLimit}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rolls returns how many dice the roller has rolled so far.
func (r *Roller) Rolls() int {
	return r.rolls
}

// roll draws one face of a die with the given sides and records it.
func (r *Roller) roll(sides int) (int, error) {
	if r.limit > 0 && r.rolls >= r.limit {
		return 0, NewRollLimitError(r.limit)
	}
	r.rolls++
	result := r.src.Intn(sides) + 1
	if r.rec != nil {
		r.rec.Record(sides, result)
	}
	return result, nil
}

// Evaluate rolls the expression tree and returns its total. Every die
// visited is reported to the roller's recorder in evaluation order.
func Evaluate(node Node, r *Roller) (int, error) {
	switch n := node.(type) {
	case *NumberNode:
		return n.Value, nil
	case *DieNode:
		return r.roll(n.Sides)
	case *DiceSetNode:
		return evalDiceSet(n, r)
	case *ExpressionSetNode:
		return evalExpressionSet(n, r)
	case *BinaryNode:
		return evalBinary(n, r)
	case *KeepNode:
		return evalKeep(n, r)
	case *DropNode:
		return evalDrop(n, r)
	case *ExplodeNode:
		return evalExplode(n, r)
	case *RerollNode:
		return evalReroll(n, r)
	case *EmphasisNode:
		return evalEmphasis(n, r)
	case *AggregateNode:
		return evalAggregate(n, r)
	default:
		return 0, fmt.Errorf("unsupported expression node type: %T", node)
	}
}

func evalDiceSet(n *DiceSetNode, r *Roller) (int, error) {
	sum := 0
	for _, d := range n.Dice {
		v, err := r.roll(d.Sides)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum, nil
}

func evalExpressionSet(n *ExpressionSetNode, r *Roller) (int, error) {
	values, err := evalItems(n, r)
	if err != nil {
		return 0, err
	}
	return sum(values), nil
}

// evalItems evaluates every item of the set in order.
func evalItems(n *ExpressionSetNode, r *Roller) ([]int, error) {
	values := make([]int, len(n.Items))
	for i, item := range n.Items {
		v, err := Evaluate(item, r)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func evalBinary(n *BinaryNode, r *Roller) (int, error) {
	left, err := Evaluate(n.Left, r)
	if err != nil {
		return 0, err
	}
	right, err := Evaluate(n.Right, r)
	if err != nil {
		return 0, err
	}

	switch n.Op {
	case TokenPlus:
		return left + right, nil
	case TokenMinus:
		return left - right, nil
	case TokenMultiply:
		return left * right, nil
	case TokenDivide:
		if right == 0 {
			return 0, NewZeroDivisionError(left)
		}
		// Go integer division truncates toward zero
		return left / right, nil
	default:
		return 0, fmt.Errorf("unknown binary operator: %s", n.Op)
	}
}

// sortedItems evaluates the set and returns its values in ascending order.
func sortedItems(n *ExpressionSetNode, r *Roller) ([]int, error) {
	values, err := evalItems(n, r)
	if err != nil {
		return nil, err
	}
	sort.Ints(values)
	return values, nil
}

func evalKeep(n *KeepNode, r *Roller) (int, error) {
	values, err := sortedItems(n.Source, r)
	if err != nil {
		return 0, err
	}
	if n.Count >= len(values) {
		return sum(values), nil
	}
	if n.Lowest {
		return sum(values[:n.Count]), nil
	}
	return sum(values[len(values)-n.Count:]), nil
}

func evalDrop(n *DropNode, r *Roller) (int, error) {
	values, err := sortedItems(n.Source, r)
	if err != nil {
		return 0, err
	}
	if n.Count >= len(values) {
		return 0, nil
	}
	if n.Highest {
		return sum(values[:len(values)-n.Count]), nil
	}
	return sum(values[n.Count:]), nil
}

// repeats reports whether another roll follows result. counter is the
// number of extra rolls made so far; a bound of times allows times+1.
func repeats(result, counter, times, threshold int, rel Relation) bool {
	return rel.Holds(result, threshold) && (times == 0 || counter <= times)
}

func evalExplode(n *ExplodeNode, r *Roller) (int, error) {
	total := 0
	for _, d := range n.Source.Dice {
		result, err := r.roll(d.Sides)
		if err != nil {
			return 0, err
		}
		total += result
		for counter := 0; repeats(result, counter, n.Times, n.Threshold, n.Relation); counter++ {
			result, err = r.roll(d.Sides)
			if err != nil {
				return 0, err
			}
			total += result
		}
	}
	return total, nil
}

func evalReroll(n *RerollNode, r *Roller) (int, error) {
	total := 0
	for _, d := range n.Source.Dice {
		result, err := r.roll(d.Sides)
		if err != nil {
			return 0, err
		}
		for counter := 0; repeats(result, counter, n.Times, n.Threshold, n.Relation); counter++ {
			result, err = r.roll(d.Sides)
			if err != nil {
				return 0, err
			}
		}
		total += result
	}
	return total, nil
}

func evalEmphasis(n *EmphasisNode, r *Roller) (int, error) {
	total := 0
	for _, d := range n.Source.Dice {
		ref := d.Sides / 2
		if n.HasFrom {
			ref = n.From
		}
		for {
			a, err := r.roll(d.Sides)
			if err != nil {
				return 0, err
			}
			b, err := r.roll(d.Sides)
			if err != nil {
				return 0, err
			}

			da, db := abs(a-ref), abs(b-ref)
			if da > db {
				total += a
				break
			}
			if db > da {
				total += b
				break
			}
			if n.Variant == EmphasisHigh {
				total += max(a, b)
				break
			}
			if n.Variant == EmphasisLow {
				total += min(a, b)
				break
			}
			// tie under the reroll variant: roll this die again
		}
	}
	return total, nil
}

func evalAggregate(n *AggregateNode, r *Roller) (int, error) {
	values, err := evalItems(n.Source, r)
	if err != nil {
		return 0, err
	}

	switch n.Func {
	case AggregateSum:
		return sum(values), nil
	case AggregateMin:
		return minOf(values), nil
	case AggregateMax:
		return maxOf(values), nil
	case AggregateAverage:
		return sum(values) / len(values), nil
	case AggregateMedian:
		sort.Ints(values)
		return values[len(values)/2], nil
	default:
		return 0, fmt.Errorf("unknown aggregate: %s", n.Func)
	}
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

func minOf(values []int) int {
	m := values[0]
	for _, v := range values[1:] {
		m = min(m, v)
	}
	return m
}

func maxOf(values []int) int {
	m := values[0]
	for _, v := range values[1:] {
		m = max(m, v)
	}
	return m
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Outcome is the result of rolling an expression once.
type Outcome struct {
	Total int
	Dice  []rolllog.Entry
}

// Roll evaluates node once against src with a fresh roll log and returns
// the total together with every die rolled.
func Roll(node Node, src Source, opts ...RollerOption) (Outcome, error) {
	log := rolllog.New()
	total, err := Evaluate(node, NewRoller(src, log, opts...))
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Total: total, Dice: log.Snapshot()}, nil
}
