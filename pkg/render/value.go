// Package render turns CloudTrail request parameters into readable text.
//
// Parameters are decoded into an ordered tree so that the key order of the
// original record survives into the rendered alert.
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind of a decoded value
type Kind int

const (
	Null Kind = iota
	Scalar
	Object
	Array
)

// Value is an order-preserving JSON value
type Value struct {
	Kind  Kind
	Text  string
	Pairs []Pair
	Items []Value
}

// Pair is one member of an object
type Pair struct {
	Key   string
	Value Value
}

// Parse decodes raw JSON into a Value. Empty input and JSON null both yield
// a Null value. String scalars that themselves hold a JSON object or array
// (policy documents, for instance) are expanded in place.
func Parse(raw json.RawMessage) (Value, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Value{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := decode(dec)
	if err != nil {
		return Value{}, fmt.Errorf("failed to decode parameters: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, fmt.Errorf("failed to decode parameters: trailing data")
	}
	return v, nil
}

func decode(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			v := Value{Kind: Object}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return Value{}, fmt.Errorf("unexpected object key %v", kt)
				}
				member, err := decode(dec)
				if err != nil {
					return Value{}, err
				}
				v.Pairs = append(v.Pairs, Pair{Key: key, Value: member})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return v, nil
		case '[':
			v := Value{Kind: Array}
			for dec.More() {
				item, err := decode(dec)
				if err != nil {
					return Value{}, err
				}
				v.Items = append(v.Items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return v, nil
		}
		return Value{}, fmt.Errorf("unexpected delimiter %v", t)
	case nil:
		return Value{Kind: Null}, nil
	case string:
		if embedded, ok := expandEmbedded(t); ok {
			return embedded, nil
		}
		return Value{Kind: Scalar, Text: t}, nil
	case json.Number:
		return Value{Kind: Scalar, Text: t.String()}, nil
	case bool:
		if t {
			return Value{Kind: Scalar, Text: "true"}, nil
		}
		return Value{Kind: Scalar, Text: "false"}, nil
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func expandEmbedded(s string) (Value, bool) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 {
		return Value{}, false
	}
	first, last := trimmed[0], trimmed[len(trimmed)-1]
	if !(first == '{' && last == '}') && !(first == '[' && last == ']') {
		return Value{}, false
	}
	v, err := Parse(json.RawMessage(trimmed))
	if err != nil {
		return Value{}, false
	}
	return v, true
}
