package render

import (
	"strings"

	"github.com/mosajjal/iamwatch/pkg/models"
)

const indentUnit = "  "

// Fields renders the top-level members of v as one Param each. Nested values
// are flattened onto a single line. A non-object v yields a single Param
// with an empty key, and Null yields nil.
func Fields(v Value) []models.Param {
	switch v.Kind {
	case Null:
		return nil
	case Object:
		params := make([]models.Param, 0, len(v.Pairs))
		for _, p := range v.Pairs {
			params = append(params, models.Param{Key: p.Key, Value: Inline(p.Value)})
		}
		return params
	default:
		return []models.Param{{Value: Inline(v)}}
	}
}

// Inline renders v on one line: objects as "k: v, k: v", arrays of scalars
// as "a, b", arrays of objects separated by "; ".
func Inline(v Value) string {
	switch v.Kind {
	case Null:
		return "null"
	case Scalar:
		return v.Text
	case Object:
		parts := make([]string, 0, len(v.Pairs))
		for _, p := range v.Pairs {
			parts = append(parts, p.Key+": "+Inline(p.Value))
		}
		return strings.Join(parts, ", ")
	case Array:
		sep := ", "
		parts := make([]string, 0, len(v.Items))
		for _, item := range v.Items {
			if item.Kind == Object || item.Kind == Array {
				sep = "; "
			}
			parts = append(parts, Inline(item))
		}
		return strings.Join(parts, sep)
	}
	return ""
}

// Block renders v as an indented, punctuation-free text block with one line
// per key. Nested objects are indented below their key; arrays of objects
// become "- " items.
func Block(v Value) string {
	var b strings.Builder
	switch v.Kind {
	case Null:
		return ""
	case Object:
		writeObject(&b, v, 0)
	case Array:
		writeArray(&b, v, 0)
	default:
		b.WriteString(v.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeObject(b *strings.Builder, v Value, depth int) {
	for _, p := range v.Pairs {
		writeMember(b, strings.Repeat(indentUnit, depth), p, depth)
	}
}

func writeMember(b *strings.Builder, prefix string, p Pair, depth int) {
	b.WriteString(prefix)
	b.WriteString(p.Key)
	b.WriteString(":")
	switch {
	case p.Value.Kind == Object && len(p.Value.Pairs) > 0:
		b.WriteString("\n")
		writeObject(b, p.Value, depth+1)
	case p.Value.Kind == Array && hasComposite(p.Value):
		b.WriteString("\n")
		writeArray(b, p.Value, depth+1)
	default:
		if s := Inline(p.Value); s != "" {
			b.WriteString(" ")
			b.WriteString(s)
		}
		b.WriteString("\n")
	}
}

func writeArray(b *strings.Builder, v Value, depth int) {
	indent := strings.Repeat(indentUnit, depth)
	if !hasComposite(v) {
		b.WriteString(indent)
		b.WriteString(Inline(v))
		b.WriteString("\n")
		return
	}
	for _, item := range v.Items {
		if item.Kind != Object || len(item.Pairs) == 0 {
			b.WriteString(indent + "- " + Inline(item) + "\n")
			continue
		}
		// first member shares the dash line, the rest align under it
		writeMember(b, indent+"- ", item.Pairs[0], depth+1)
		for _, p := range item.Pairs[1:] {
			writeMember(b, indent+indentUnit, p, depth+1)
		}
	}
}

func hasComposite(v Value) bool {
	for _, item := range v.Items {
		if item.Kind == Object || item.Kind == Array {
			return true
		}
	}
	return false
}
