package aauth

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Param is one named permission constraint. The stored value decides the
// constraint kind: a number is an upper bound, a list is a membership set, a
// bool must match exactly. Anything else is ignored at check time.
type Param struct {
	Name  string
	Value any
}

// Params is an ordered list of permission constraints. Order matters: Can
// validates its positional arguments against the constraints in declaration
// order. The JSON form is a plain object; decoding preserves key order, which
// encoding/json maps would lose.
type Params []Param

// Get returns the value stored under name.
func (p Params) Get(name string) (any, bool) {
	for _, it := range p {
		if it.Name == name {
			return it.Value, true
		}
	}
	return nil, false
}

// MarshalJSON renders the constraints as a JSON object in declaration order.
func (p Params) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, it := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(it.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(it.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object token by token so that the original key
// order survives.
func (p *Params) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*p = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("aauth: parameters must be a JSON object")
	}
	out := Params{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("aauth: parameter name must be a string")
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return err
		}
		out = append(out, Param{Name: key, Value: normalizeJSONValue(val)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

// normalizeJSONValue rewrites json.Number leaves into int64 or float64 so
// constraint checks work on ordinary Go numbers.
func normalizeJSONValue(v any) any {
	switch vv := v.(type) {
	case json.Number:
		if i, err := vv.Int64(); err == nil {
			return i
		}
		if f, err := vv.Float64(); err == nil {
			return f
		}
		return vv.String()
	case []any:
		for i := range vv {
			vv[i] = normalizeJSONValue(vv[i])
		}
		return vv
	case map[string]any:
		for k := range vv {
			vv[k] = normalizeJSONValue(vv[k])
		}
		return vv
	default:
		return v
	}
}

// validate checks the positional arguments against the constraints in
// declaration order. A missing argument skips its constraint; an
// unrecognized constraint kind is permissive.
func (p Params) validate(args []any) bool {
	for i, constraint := range p {
		if i >= len(args) {
			continue
		}
		arg := args[i]
		switch bound := constraint.Value.(type) {
		case int, int64, float64:
			argNum, argOK := asFloat(arg)
			boundNum, _ := asFloat(bound)
			if !argOK {
				return false
			}
			if argNum > boundNum {
				return false
			}
		case []any:
			if !containsValue(bound, arg) {
				return false
			}
		case bool:
			argBool, ok := arg.(bool)
			if !ok || argBool != bound {
				return false
			}
		}
	}
	return true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func containsValue(set []any, v any) bool {
	for _, it := range set {
		if it == v {
			return true
		}
		a, aok := asFloat(it)
		b, bok := asFloat(v)
		if aok && bok && a == b {
			return true
		}
	}
	return false
}
