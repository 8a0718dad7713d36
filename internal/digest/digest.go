package digest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/net/html"
)

// Hash folds s into a signed 32-bit value.
//
// Each UTF-16 code unit u updates the accumulator as h = (h << 5) - h + u
// (h*31 + u). Arithmetic wraps at 32 bits after every step, so strings
// containing characters outside the BMP contribute both surrogate halves.
// The empty string hashes to 0.
func Hash(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(u)
	}
	return h
}

// Canonical serializes a decoded JSON value into a deterministic string.
//
// Object keys are emitted in sorted order, arrays keep their order, and
// strings are JSON-quoted. Values that are not plain decoded JSON (structs,
// typed maps) are round-tripped through encoding/json first.
func Canonical(v any) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

// DecodeJSON decodes raw into plain JSON values, keeping numbers as
// [json.Number] so they serialize back in their original form.
func DecodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return v, nil
}

// CanonicalJSON decodes raw and returns its [Canonical] form.
// Numbers keep their original textual representation.
func CanonicalJSON(raw []byte) (string, error) {
	v, err := DecodeJSON(raw)
	if err != nil {
		return "", err
	}
	return Canonical(v), nil
}

// HashJSON is shorthand for Hash(CanonicalJSON(raw)).
func HashJSON(raw []byte) (int32, error) {
	s, err := CanonicalJSON(raw)
	if err != nil {
		return 0, err
	}
	return Hash(s), nil
}

// HashHTML is shorthand for Hash(VisibleText(fragment)).
func HashHTML(fragment []byte) (int32, error) {
	s, err := VisibleText(fragment)
	if err != nil {
		return 0, err
	}
	return Hash(s), nil
}

func writeCanonical(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case json.Number:
		b.WriteString(t.String())
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	case string:
		writeString(b, t)
	case []any:
		b.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, elem)
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeString(b, k)
			b.WriteByte(':')
			writeCanonical(b, t[k])
		}
		b.WriteByte('}')
	case json.RawMessage:
		s, err := CanonicalJSON(t)
		if err != nil {
			writeString(b, string(t))
			return
		}
		b.WriteString(s)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			writeString(b, fmt.Sprint(t))
			return
		}
		s, err := CanonicalJSON(data)
		if err != nil {
			writeString(b, string(data))
			return
		}
		b.WriteString(s)
	}
}

func writeString(b *strings.Builder, s string) {
	data, _ := json.Marshal(s)
	b.Write(data)
}

// VisibleText returns the text a user would see in an HTML fragment plus
// its attribute values, in document order.
//
// Text nodes have their whitespace collapsed; attributes are rendered as
// key=value. Content of script and style elements is skipped. Parts are
// joined with newlines.
func VisibleText(fragment []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(fragment))

	var parts []string
	hidden := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", fmt.Errorf("tokenize html: %w", err)
			}
			return strings.Join(parts, "\n"), nil

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if isHiddenElement(tok.Data) {
				if tt == html.StartTagToken {
					hidden++
				}
				continue
			}
			for _, a := range tok.Attr {
				parts = append(parts, a.Key+"="+a.Val)
			}

		case html.EndTagToken:
			tok := z.Token()
			if isHiddenElement(tok.Data) && hidden > 0 {
				hidden--
			}

		case html.TextToken:
			if hidden > 0 {
				continue
			}
			text := strings.Join(strings.Fields(string(z.Text())), " ")
			if text != "" {
				parts = append(parts, text)
			}
		}
	}
}

func isHiddenElement(tag string) bool {
	return tag == "script" || tag == "style" || tag == "template"
}
