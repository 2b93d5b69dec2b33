package dice

import (
	"errors"
	"strings"
	"testing"
)

func mustCompile(t *testing.T, input string) Node {
	t.Helper()
	node, err := Compile(input)
	if err != nil {
		t.Fatalf("compile %q: %v", input, err)
	}
	return node
}

func TestCompileNumber(t *testing.T) {
	n, ok := mustCompile(t, "42").(*NumberNode)
	if !ok {
		t.Fatal("expected NumberNode")
	}
	if n.Value != 42 {
		t.Errorf("got %d, want 42", n.Value)
	}
}

func TestCompileDiceSet(t *testing.T) {
	tests := []struct {
		input string
		sides []int
	}{
		{"d6", []int{6}},
		{"3d6", []int{6, 6, 6}},
		{"D20", []int{20}},
		{"d%", []int{100}},
		{"2d%", []int{100, 100}},
		{"(d4,d6,d8)", []int{4, 6, 8}},
		{"(d6, d%)", []int{6, 1000}},
		{"( d6 , d6 )", []int{6, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			set, ok := mustCompile(t, tt.input).(*DiceSetNode)
			if !ok {
				t.Fatal("expected DiceSetNode")
			}
			if len(set.Dice) != len(tt.sides) {
				t.Fatalf("got %d dice, want %d", len(set.Dice), len(tt.sides))
			}
			for i, d := range set.Dice {
				if d.Sides != tt.sides[i] {
					t.Errorf("die %d: got %d sides, want %d", i, d.Sides, tt.sides[i])
				}
			}
		})
	}
}

func TestCompileDistinctDice(t *testing.T) {
	set := mustCompile(t, "3d6").(*DiceSetNode)
	if set.Dice[0] == set.Dice[1] || set.Dice[1] == set.Dice[2] {
		t.Error("dice of a set must not share nodes")
	}
}

func TestCompilePrecedence(t *testing.T) {
	// 2 + 3 * 4 => 2 + (3 * 4)
	bin, ok := mustCompile(t, "2 + 3 * 4").(*BinaryNode)
	if !ok {
		t.Fatal("expected BinaryNode")
	}
	if bin.Op != TokenPlus {
		t.Errorf("root op: got %s, want PLUS", bin.Op)
	}
	right, ok := bin.Right.(*BinaryNode)
	if !ok || right.Op != TokenMultiply {
		t.Errorf("right side should be a multiplication, got %#v", bin.Right)
	}

	// 12 / 3 * 2 => (12 / 3) * 2
	bin = mustCompile(t, "12 / 3 * 2").(*BinaryNode)
	if bin.Op != TokenMultiply {
		t.Errorf("root op: got %s, want MULTIPLY", bin.Op)
	}
	left, ok := bin.Left.(*BinaryNode)
	if !ok || left.Op != TokenDivide {
		t.Errorf("left side should be a division, got %#v", bin.Left)
	}
}

func TestCompileModifiers(t *testing.T) {
	tests := []struct {
		input string
		check func(t *testing.T, n Node)
	}{
		{"4d6k3", func(t *testing.T, n Node) {
			k := n.(*KeepNode)
			if k.Count != 3 || k.Lowest || len(k.Source.Items) != 4 {
				t.Errorf("got %+v", k)
			}
		}},
		{"4d6 keep lowest 2", func(t *testing.T, n Node) {
			k := n.(*KeepNode)
			if k.Count != 2 || !k.Lowest {
				t.Errorf("got %+v", k)
			}
		}},
		{"4d6 keep highest 2", func(t *testing.T, n Node) {
			if n.(*KeepNode).Lowest {
				t.Error("expected highest")
			}
		}},
		{"4d6d1", func(t *testing.T, n Node) {
			d := n.(*DropNode)
			if d.Count != 1 || d.Highest {
				t.Errorf("got %+v", d)
			}
		}},
		{"4d6 drop highest 1", func(t *testing.T, n Node) {
			if !n.(*DropNode).Highest {
				t.Error("expected highest")
			}
		}},
		{"4d6 drop lowest 1", func(t *testing.T, n Node) {
			if n.(*DropNode).Highest {
				t.Error("expected lowest")
			}
		}},
		{"d6e6", func(t *testing.T, n Node) {
			e := n.(*ExplodeNode)
			if e.Times != 0 || e.Threshold != 6 || e.Relation != RelationGreaterOrEqual {
				t.Errorf("got %+v", e)
			}
		}},
		{"d6 explode 3 times on 6", func(t *testing.T, n Node) {
			e := n.(*ExplodeNode)
			if e.Times != 3 || e.Threshold != 6 || e.Relation != RelationEqual {
				t.Errorf("got %+v", e)
			}
		}},
		{"d6 explode always on 5 or less", func(t *testing.T, n Node) {
			e := n.(*ExplodeNode)
			if e.Times != 0 || e.Relation != RelationLessOrEqual {
				t.Errorf("got %+v", e)
			}
		}},
		{"d6r1", func(t *testing.T, n Node) {
			r := n.(*RerollNode)
			if r.Times != 0 || r.Threshold != 1 || r.Relation != RelationLessOrEqual {
				t.Errorf("got %+v", r)
			}
		}},
		{"2d10 reroll 2 times on 3 or more", func(t *testing.T, n Node) {
			r := n.(*RerollNode)
			if r.Times != 2 || r.Threshold != 3 || r.Relation != RelationGreaterOrEqual || len(r.Source.Dice) != 2 {
				t.Errorf("got %+v", r)
			}
		}},
		{"d20 emphasis", func(t *testing.T, n Node) {
			e := n.(*EmphasisNode)
			if e.HasFrom || e.Variant != EmphasisReroll {
				t.Errorf("got %+v", e)
			}
		}},
		{"d20 emphasis high", func(t *testing.T, n Node) {
			if n.(*EmphasisNode).Variant != EmphasisHigh {
				t.Error("expected high")
			}
		}},
		{"d20 furthest from 5 low", func(t *testing.T, n Node) {
			e := n.(*EmphasisNode)
			if !e.HasFrom || e.From != 5 || e.Variant != EmphasisLow {
				t.Errorf("got %+v", e)
			}
		}},
		{"(d6,d8,d10)average", func(t *testing.T, n Node) {
			a := n.(*AggregateNode)
			if a.Func != AggregateAverage || len(a.Source.Items) != 3 {
				t.Errorf("got %+v", a)
			}
		}},
		{"3d6 median", func(t *testing.T, n Node) {
			if n.(*AggregateNode).Func != AggregateMedian {
				t.Error("expected median")
			}
		}},
		{"(1, 2)max", func(t *testing.T, n Node) {
			if n.(*AggregateNode).Func != AggregateMax {
				t.Error("expected max")
			}
		}},
		{"3d6 sum", func(t *testing.T, n Node) {
			if _, ok := n.(*DiceSetNode); !ok {
				t.Errorf("got %T, want *DiceSetNode", n)
			}
		}},
		{"(d6, 2) sum", func(t *testing.T, n Node) {
			if _, ok := n.(*ExpressionSetNode); !ok {
				t.Errorf("got %T, want *ExpressionSetNode", n)
			}
		}},
		{"4D6 KEEPLOWEST 3", func(t *testing.T, n Node) {
			if !n.(*KeepNode).Lowest {
				t.Error("expected lowest")
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tt.check(t, mustCompile(t, tt.input))
		})
	}
}

func TestCompileExpressionSet(t *testing.T) {
	set, ok := mustCompile(t, "(2d6, d4 + 1, (3))").(*ExpressionSetNode)
	if !ok {
		t.Fatal("expected ExpressionSetNode")
	}
	if len(set.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(set.Items))
	}
	if _, ok := set.Items[0].(*DiceSetNode); !ok {
		t.Errorf("item 0: got %T, want *DiceSetNode", set.Items[0])
	}
	if _, ok := set.Items[1].(*BinaryNode); !ok {
		t.Errorf("item 1: got %T, want *BinaryNode", set.Items[1])
	}
	if _, ok := set.Items[2].(*ExpressionSetNode); !ok {
		t.Errorf("item 2: got %T, want *ExpressionSetNode", set.Items[2])
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"trailing operator", "2 +"},
		{"leading operator", "* 3"},
		{"adjacent operators", "2 + * 3"},
		{"missing sides", "d"},
		{"one sided die", "d1"},
		{"zero dice", "0d6"},
		{"two numbers", "3 4"},
		{"keep zero", "4d6k0"},
		{"keep long zero", "4d6 keep 0"},
		{"drop zero", "4d6d0"},
		{"keep without count", "4d6k"},
		{"unknown word", "d6 foo"},
		{"trailing after modifier", "d6 sum 3"},
		{"trailing after keep", "4d6k3 lowest"},
		{"empty element", "(d6,)"},
		{"empty parentheses", "()"},
		{"unclosed", "(d6"},
		{"unopened", "d6)"},
		{"explode on expressions", "(2, 3)e6"},
		{"reroll on expressions", "(d6, 2)r1"},
		{"emphasis on expressions", "(d6, 1) emphasis"},
		{"explode missing always", "d6 explode on 6"},
		{"explode missing on", "d6 explode always 6"},
		{"explode missing times", "d6 explode 3 on 6"},
		{"explode dangling or", "d6 explode always on 6 or"},
		{"furthest missing from", "d20 furthest 5"},
		{"bad character", "d6 # 2"},
		{"too many dice", "10001d6"},
		{"nested failure", "d6 + (d6, 2 +)"},
		{"bad die in set", "(d6, d1)"},
		{"suffix starts with number", "d6 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Compile(tt.input)
			if err == nil {
				t.Fatalf("expected error, got %s", Format(node))
			}
			if node != nil {
				t.Error("expected no tree alongside the error")
			}
			if !IsInvalidExpression(err) {
				t.Errorf("got %T, want *InvalidExpressionError", err)
			}
		})
	}
}

func TestCompileErrorFragment(t *testing.T) {
	_, err := Compile("d6 + 2d1")
	var ie *InvalidExpressionError
	if !errors.As(err, &ie) {
		t.Fatalf("got %v, want *InvalidExpressionError", err)
	}
	if ie.Fragment != "2d1" {
		t.Errorf("got fragment %q, want %q", ie.Fragment, "2d1")
	}
	if ie.Pos != 5 {
		t.Errorf("got position %d, want 5", ie.Pos)
	}
	if !strings.Contains(ie.Error(), "2d1") {
		t.Errorf("error message %q does not name the fragment", ie.Error())
	}
}

func TestCompileMaxLength(t *testing.T) {
	input := strings.Repeat("1+", 600) + "1"
	if _, err := Compile(input); err == nil {
		t.Fatal("expected length error")
	}

	c := NewCompiler(Options{MaxLength: 5000})
	if _, err := c.Compile(input); err != nil {
		t.Fatalf("raised limit: %v", err)
	}
}

func TestCompileMaxDice(t *testing.T) {
	c := NewCompiler(Options{MaxDice: 10})
	if _, err := c.Compile("10d6"); err != nil {
		t.Fatalf("10d6: %v", err)
	}
	if _, err := c.Compile("11d6"); err == nil {
		t.Fatal("expected error for 11d6")
	}
}

func TestCompileLenientSets(t *testing.T) {
	c := NewCompiler(Options{LenientSets: true})
	node, err := c.Compile("(d6, 2 +)")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	set := node.(*ExpressionSetNode)
	if n, ok := set.Items[1].(*NumberNode); !ok || n.Value != 0 {
		t.Errorf("failing element: got %#v, want literal 0", set.Items[1])
	}

	if _, err := Compile("(d6, 2 +)"); err == nil {
		t.Error("default compiler should propagate element errors")
	}
}
