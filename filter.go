package aauth

import (
	"fmt"
	"strings"

	"github.com/oarkflow/aauth/utils"
)

// Predicate is one element of a compiled row filter: a leaf Condition or a
// nested parenthesized Filter group.
type Predicate interface {
	isPredicate()
}

// Condition is a leaf comparison of a column against a literal.
type Condition struct {
	Column string
	Op     Op
	Value  any
}

func (Condition) isPredicate() {}

// Filter is a parenthesized predicate group. Join decides how its parts
// combine; a nested Filter behaves as one atomic unit relative to its
// siblings regardless of the enclosing connective.
type Filter struct {
	Join  Connective
	Parts []Predicate
}

func (*Filter) isPredicate() {}

// Add appends a predicate to the group.
func (f *Filter) Add(p Predicate) *Filter {
	f.Parts = append(f.Parts, p)
	return f
}

// Compile turns a validated rule tree into a row filter. The whole tree is
// wrapped in one outer group and attached with AND semantics, matching the
// top-level call of the recursive compiler.
func Compile(rule *Rule) *Filter {
	outer := &Filter{Join: ConnAnd}
	if rule != nil {
		outer.Add(compileRule(rule, ConnAnd))
	}
	return outer
}

// CompileList compiles sibling rules that attach to their caller with
// parentOperator. Threading the parent connective explicitly is what keeps
// precedence intact: every child of a group is attached with the group's own
// connective, and the group as a whole attaches to its caller with the
// caller's.
func CompileList(rules []*Rule, parentOperator Connective) *Filter {
	group := &Filter{Join: parentOperator}
	for _, rule := range rules {
		group.Add(compileRule(rule, parentOperator))
	}
	return group
}

func compileRule(rule *Rule, parentOperator Connective) Predicate {
	if rule.IsGroup() {
		// children attach to the sub-group with the group's connective,
		// never with parentOperator; the sub-group itself is the unit the
		// caller attaches.
		return CompileList(rule.Children, rule.Connective)
	}
	return Condition{Column: rule.Attribute, Op: rule.Op, Value: rule.Value}
}

// AndFilters combines non-empty filters into one AND group. Used to compose
// the hierarchy predicate with a role's ABAC filter when both govern the same
// entity.
func AndFilters(filters ...*Filter) *Filter {
	combined := &Filter{Join: ConnAnd}
	for _, f := range filters {
		if f == nil || len(f.Parts) == 0 {
			continue
		}
		combined.Add(f)
	}
	return combined
}

// ToSQL renders the filter as a WHERE fragment with squealx-style named
// parameters. table, when non-empty, prefixes every column. An empty group
// renders to its logical identity so composition stays correct: true under
// AND, false under OR.
func (f *Filter) ToSQL(table string) (string, map[string]any) {
	args := map[string]any{}
	n := 0
	clause := renderFilter(f, table, args, &n)
	return clause, args
}

func renderFilter(f *Filter, table string, args map[string]any, n *int) string {
	if len(f.Parts) == 0 {
		if f.Join == ConnOr {
			return "(1 = 0)"
		}
		return "(1 = 1)"
	}
	sep := " AND "
	if f.Join == ConnOr {
		sep = " OR "
	}
	rendered := make([]string, 0, len(f.Parts))
	for _, part := range f.Parts {
		switch p := part.(type) {
		case Condition:
			name := fmt.Sprintf("fp%d", *n)
			*n++
			args[name] = p.Value
			rendered = append(rendered, fmt.Sprintf("%s %s :%s", qualify(table, p.Column), sqlOp(p.Op), name))
		case *Filter:
			rendered = append(rendered, renderFilter(p, table, args, n))
		}
	}
	return "(" + strings.Join(rendered, sep) + ")"
}

func sqlOp(op Op) string {
	if op == OpLike {
		return "LIKE"
	}
	return string(op)
}

func qualify(table, column string) string {
	if table == "" || strings.Contains(column, ".") {
		return column
	}
	return table + "." + column
}

// Matches evaluates the filter against an attribute row in memory. The memory
// stores and tests use it; SQL stores render ToSQL instead. Missing columns
// fail their condition rather than erroring.
func (f *Filter) Matches(row map[string]any) bool {
	if len(f.Parts) == 0 {
		return f.Join != ConnOr
	}
	for _, part := range f.Parts {
		var ok bool
		switch p := part.(type) {
		case Condition:
			ok = p.matches(row)
		case *Filter:
			ok = p.Matches(row)
		}
		if f.Join == ConnOr {
			if ok {
				return true
			}
		} else if !ok {
			return false
		}
	}
	return f.Join != ConnOr
}

func (c Condition) matches(row map[string]any) bool {
	val, ok := row[c.Column]
	if !ok {
		// dot-qualified attribute against a flat row: fall back to the
		// column part.
		if idx := strings.LastIndex(c.Column, "."); idx >= 0 {
			val, ok = row[c.Column[idx+1:]]
		}
	}
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return compareValues(val, c.Value) == 0
	case OpNeq:
		return compareValues(val, c.Value) != 0
	case OpGt:
		return compareValues(val, c.Value) > 0
	case OpLt:
		return compareValues(val, c.Value) < 0
	case OpGte:
		return compareValues(val, c.Value) >= 0
	case OpLte:
		return compareValues(val, c.Value) <= 0
	case OpLike:
		return utils.MatchLike(fmt.Sprint(val), fmt.Sprint(c.Value))
	}
	return false
}

// compareValues orders two scalars: numerically when both coerce to numbers,
// lexically otherwise. Returns -1, 0 or 1; incomparable pairs order by their
// string forms, which keeps = and != sane for mixed types.
func compareValues(a, b any) int {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	return strings.Compare(as, bs)
}
