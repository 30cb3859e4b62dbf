package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Node wraps an arbitrary decoded JSON value and offers total, panic-free
// accessors. A missing key yields an empty Node.
type Node struct {
	v any
}

func NodeOf(v any) Node {
	return Node{v: v}
}

func (n Node) Raw() any {
	return n.v
}

func (n Node) IsZero() bool {
	return n.v == nil
}

// Get follows a dotted path. Numeric segments index into lists.
func (n Node) Get(path string) Node {
	current := n.v
	for _, segment := range strings.Split(path, ".") {
		switch value := current.(type) {
		case map[string]any:
			current = value[segment]
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(value) {
				return Node{}
			}
			current = value[index]
		default:
			return Node{}
		}
	}
	return Node{v: current}
}

func (n Node) Has(key string) bool {
	object, ok := n.v.(map[string]any)
	if !ok {
		return false
	}
	_, found := object[key]
	return found
}

func (n Node) IsObject() bool {
	_, ok := n.v.(map[string]any)
	return ok
}

// Text returns a non-blank string value
func (n Node) Text() (string, bool) {
	s, ok := n.v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Int accepts JSON numbers with no fractional part
func (n Node) Int() (int64, bool) {
	switch value := n.v.(type) {
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return i, true
		}
		if f, err := value.Float64(); err == nil {
			return wholeFloat(f)
		}
	case float64:
		return wholeFloat(value)
	case int:
		return int64(value), true
	case int64:
		return value, true
	}
	return 0, false
}

// IntOrDigits is Int that also accepts a string of decimal digits
func (n Node) IntOrDigits() (int64, bool) {
	if i, ok := n.Int(); ok {
		return i, true
	}
	s, ok := n.Text()
	if !ok {
		return 0, false
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

func (n Node) List() []Node {
	items, ok := n.v.([]any)
	if !ok {
		return nil
	}
	nodes := make([]Node, len(items))
	for i, item := range items {
		nodes[i] = Node{v: item}
	}
	return nodes
}

func wholeFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
