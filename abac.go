package aauth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// Connective joins sibling rules inside a group.
type Connective string

const (
	ConnAnd Connective = "&&"
	ConnOr  Connective = "||"
)

// Op is a comparison operator of a condition rule.
type Op string

const (
	OpEq   Op = "="
	OpNeq  Op = "!="
	OpGt   Op = ">"
	OpLt   Op = "<"
	OpGte  Op = ">="
	OpLte  Op = "<="
	OpLike Op = "like"
)

// DefaultMaxRuleDepth caps rule tree nesting unless overridden by config.
const DefaultMaxRuleDepth = 10

var conditionOps = map[Op]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpLt: true, OpGte: true, OpLte: true, OpLike: true,
}

// attribute names: identifier, optionally dot-qualified (table.column).
var attributePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Rule is one node of an ABAC rule tree: either a group joining child rules
// with a connective, or a leaf condition comparing an attribute against a
// literal. The JSON form matches the stored shape:
//
//	{"&&": [ {"=": {"attribute": "age", "value": 19}}, ... ]}
type Rule struct {
	Connective Connective
	Children   []*Rule

	Op        Op
	Attribute string
	Value     any
}

// IsGroup reports whether the rule is a connective group.
func (r *Rule) IsGroup() bool { return r.Connective != "" }

// And builds a group rule joining children with &&.
func And(children ...*Rule) *Rule {
	return &Rule{Connective: ConnAnd, Children: children}
}

// Or builds a group rule joining children with ||.
func Or(children ...*Rule) *Rule {
	return &Rule{Connective: ConnOr, Children: children}
}

// Cond builds a leaf condition rule.
func Cond(op Op, attribute string, value any) *Rule {
	return &Rule{Op: op, Attribute: attribute, Value: value}
}

func Eq(attribute string, value any) *Rule   { return Cond(OpEq, attribute, value) }
func Neq(attribute string, value any) *Rule  { return Cond(OpNeq, attribute, value) }
func Gt(attribute string, value any) *Rule   { return Cond(OpGt, attribute, value) }
func Lt(attribute string, value any) *Rule   { return Cond(OpLt, attribute, value) }
func Gte(attribute string, value any) *Rule  { return Cond(OpGte, attribute, value) }
func Lte(attribute string, value any) *Rule  { return Cond(OpLte, attribute, value) }
func Like(attribute string, value any) *Rule { return Cond(OpLike, attribute, value) }

// MarshalJSON renders the node as a single-key object keyed by its connective
// or operator.
func (r *Rule) MarshalJSON() ([]byte, error) {
	if r.IsGroup() {
		return json.Marshal(map[string][]*Rule{string(r.Connective): r.Children})
	}
	return json.Marshal(map[string]map[string]any{
		string(r.Op): {"attribute": r.Attribute, "value": r.Value},
	})
}

// UnmarshalJSON decodes the single-key object form. Structural problems
// (several keys, non-object leaves) fail here; semantic problems (unknown
// operator, bad attribute) are left to Validate so that callers get a
// ValidationError with the full picture.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("aauth: rule node must have exactly one key, got %d", len(raw))
	}
	for key, body := range raw {
		if key == string(ConnAnd) || key == string(ConnOr) {
			var children []*Rule
			if err := json.Unmarshal(body, &children); err != nil {
				return err
			}
			r.Connective = Connective(key)
			r.Children = children
			return nil
		}
		var cond struct {
			Attribute string          `json:"attribute"`
			Value     json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(body, &cond); err != nil {
			return err
		}
		var val any
		if len(cond.Value) > 0 {
			dec := json.NewDecoder(bytes.NewReader(cond.Value))
			dec.UseNumber()
			if err := dec.Decode(&val); err != nil {
				return err
			}
			val = normalizeJSONValue(val)
		}
		r.Op = Op(key)
		r.Attribute = cond.Attribute
		r.Value = val
	}
	return nil
}

// ParseRule decodes a stored rule tree from JSON without validating it.
func ParseRule(data []byte) (*Rule, error) {
	rule := &Rule{}
	if err := json.Unmarshal(data, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// ValidateRule checks a rule tree before it is stored: recognized operators,
// identifier-shaped attribute names, scalar literals, non-empty groups, and
// bounded nesting. maxDepth <= 0 falls back to DefaultMaxRuleDepth. Malformed
// trees fail fast here so query compilation never sees one.
func ValidateRule(rule *Rule, maxDepth int) error {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxRuleDepth
	}
	return validateRule(rule, maxDepth, 1)
}

func validateRule(rule *Rule, maxDepth, depth int) error {
	if rule == nil {
		return validationErrorf("nil rule node")
	}
	if depth > maxDepth {
		return validationErrorf("nesting exceeds %d levels", maxDepth)
	}
	if rule.IsGroup() {
		if rule.Connective != ConnAnd && rule.Connective != ConnOr {
			return validationErrorf("unknown connective %q", rule.Connective)
		}
		if rule.Op != "" {
			return validationErrorf("group node carries operator %q", rule.Op)
		}
		if len(rule.Children) == 0 {
			return validationErrorf("empty %q group", rule.Connective)
		}
		for _, child := range rule.Children {
			if err := validateRule(child, maxDepth, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if !conditionOps[rule.Op] {
		return validationErrorf("unknown operator %q", rule.Op)
	}
	if !attributePattern.MatchString(rule.Attribute) {
		return validationErrorf("bad attribute name %q", rule.Attribute)
	}
	switch rule.Value.(type) {
	case string, bool, int, int32, int64, float32, float64, json.Number:
		return nil
	case nil:
		return validationErrorf("condition on %q has no value", rule.Attribute)
	default:
		return validationErrorf("condition on %q has non-scalar value", rule.Attribute)
	}
}
