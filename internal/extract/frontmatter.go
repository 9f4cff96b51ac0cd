package extract

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// fence describes one supported front matter delimiter.
type fence struct {
	open   string
	close  []string
	decode func([]byte) (any, error)
}

var fences = []fence{
	{open: "---", close: []string{"---", "..."}, decode: decodeYAML},
	{open: "+++", close: []string{"+++"}, decode: decodeTOML},
}

// splitFrontMatter looks for a fenced block starting on the first line of
// text. It returns the block body, the remaining document, and the decoder
// for the block. ok is false when text does not open with a closed fence.
func splitFrontMatter(text []byte) (block, body []byte, f fence, ok bool) {
	first, rest, found := cutLine(text)
	if !found {
		return nil, text, fence{}, false
	}
	for _, candidate := range fences {
		if string(bytes.TrimRight(first, " \t\r")) != candidate.open {
			continue
		}
		offset := 0
		for offset <= len(rest) {
			line, after, more := cutLine(rest[offset:])
			trimmed := string(bytes.TrimRight(line, " \t\r"))
			for _, c := range candidate.close {
				if trimmed == c {
					return rest[:offset], after, candidate, true
				}
			}
			if !more {
				break
			}
			offset = len(rest) - len(after)
		}
		return nil, text, fence{}, false
	}
	return nil, text, fence{}, false
}

// cutLine splits off the first line. found reports whether a newline was
// present; a final unterminated line is still returned as line.
func cutLine(b []byte) (line, rest []byte, found bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return b, nil, false
	}
	return b[:i], b[i+1:], true
}

func decodeYAML(block []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(block, &v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

func decodeTOML(block []byte) (any, error) {
	var v map[string]any
	if err := toml.Unmarshal(block, &v); err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, nil
	}
	return v, nil
}

// normalize converts YAML maps with non-string keys into string-keyed maps
// so the value can be serialized as JSON.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}
