package aauth

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseRuleStoredForm(t *testing.T) {
	raw := []byte(`{"&&": [
		{"=": {"attribute": "status", "value": "open"}},
		{"||": [
			{">": {"attribute": "age", "value": 18}},
			{"like": {"attribute": "name", "value": "J%"}}
		]}
	]}`)
	rule, err := ParseRule(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !rule.IsGroup() || rule.Connective != ConnAnd || len(rule.Children) != 2 {
		t.Fatalf("unexpected root: %+v", rule)
	}
	leaf := rule.Children[0]
	if leaf.Op != OpEq || leaf.Attribute != "status" || leaf.Value != "open" {
		t.Fatalf("unexpected leaf: %+v", leaf)
	}
	inner := rule.Children[1]
	if inner.Connective != ConnOr || len(inner.Children) != 2 {
		t.Fatalf("unexpected inner group: %+v", inner)
	}
	if inner.Children[0].Value != int64(18) {
		t.Fatalf("number value = %v (%T), want int64 18", inner.Children[0].Value, inner.Children[0].Value)
	}

	if err := ValidateRule(rule, 0); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestRuleJSONRoundTrip(t *testing.T) {
	rule := And(Eq("status", "open"), Or(Gt("age", 18), Like("name", "J%")))
	raw, err := json.Marshal(rule)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := ParseRule(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if back.Connective != ConnAnd || len(back.Children) != 2 {
		t.Fatalf("round trip lost structure: %+v", back)
	}
	if back.Children[1].Children[0].Op != OpGt {
		t.Fatalf("round trip lost nested op")
	}
}

func TestParseRuleRejectsMultiKeyNode(t *testing.T) {
	raw := []byte(`{"=": {"attribute": "a", "value": 1}, ">": {"attribute": "b", "value": 2}}`)
	if _, err := ParseRule(raw); err == nil {
		t.Fatalf("expected error for multi-key node")
	}
}

func TestValidateRuleRejections(t *testing.T) {
	cases := []struct {
		name string
		rule *Rule
	}{
		{"nil rule", nil},
		{"unknown operator", Cond("~", "age", 1)},
		{"injection attribute", Eq("age; DROP TABLE users", 1)},
		{"empty group", And()},
		{"missing value", Cond(OpEq, "age", nil)},
		{"non-scalar value", Eq("age", []any{1, 2})},
		{"group with operator", &Rule{Connective: ConnAnd, Children: []*Rule{Eq("a", 1)}, Op: OpEq}},
	}
	for _, c := range cases {
		err := ValidateRule(c.rule, 0)
		if err == nil {
			t.Fatalf("%s: expected validation error", c.name)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: error type %T, want *ValidationError", c.name, err)
		}
	}
}

func TestValidateRuleDepthCap(t *testing.T) {
	rule := Eq("a", 1)
	for i := 0; i < 11; i++ {
		rule = And(rule)
	}
	if err := ValidateRule(rule, 0); err == nil {
		t.Fatalf("expected depth error at default cap")
	}
	if err := ValidateRule(rule, 20); err != nil {
		t.Fatalf("raised cap should accept: %v", err)
	}
}

func TestValidateRuleDotQualifiedAttribute(t *testing.T) {
	if err := ValidateRule(Eq("patients.age", 19), 0); err != nil {
		t.Fatalf("dot-qualified attribute should pass: %v", err)
	}
}
