// Package extract derives document metadata from raw file bytes: front
// matter, a title from the first level-1 heading, and a MIME type guessed
// from the path.
//
// Extraction never fails. Undecodable input yields an empty Result and
// malformed front matter is recorded as {"error": "..."} in Metadata.
package extract

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"gitlab.com/golang-commonmark/markdown"
)

var bom = []byte("\xef\xbb\xbf")

// Result is the outcome of extracting one document.
type Result struct {
	// Metadata is the front matter serialized as JSON, or nil when the
	// document has none.
	Metadata json.RawMessage

	// Title is the rendered text of the first level-1 heading, or nil.
	Title *string
}

// Empty reports whether neither metadata nor a title was found.
func (r Result) Empty() bool {
	return r.Metadata == nil && r.Title == nil
}

var md = markdown.New(markdown.Typographer(false), markdown.Linkify(false))

// Extract parses front matter and a title out of data.
func Extract(data []byte) Result {
	if !utf8.Valid(data) {
		return Result{}
	}
	text := bytes.TrimPrefix(data, bom)

	var res Result
	block, body, f, ok := splitFrontMatter(text)
	if ok {
		res.Metadata = frontMatterJSON(block, f)
	}
	res.Title = title(body)
	return res
}

func frontMatterJSON(block []byte, f fence) json.RawMessage {
	v, err := f.decode(block)
	if err != nil {
		return errorDocument(err)
	}
	if v == nil {
		return nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return errorDocument(err)
	}
	return out
}

func errorDocument(err error) json.RawMessage {
	out, _ := json.Marshal(map[string]string{"error": err.Error()})
	return out
}

// title returns the first top-level heading of rank 1.
func title(body []byte) *string {
	tokens := md.Parse(body)
	for i, tok := range tokens {
		h, ok := tok.(*markdown.HeadingOpen)
		if !ok || h.HLevel != 1 || h.Lvl != 0 {
			continue
		}
		if i+1 >= len(tokens) {
			return nil
		}
		inline, ok := tokens[i+1].(*markdown.Inline)
		if !ok {
			return nil
		}
		var sb strings.Builder
		renderText(&sb, inline.Children)
		s := strings.TrimSpace(sb.String())
		return &s
	}
	return nil
}

// renderText writes the plain text of inline tokens, dropping markup.
func renderText(sb *strings.Builder, tokens []markdown.Token) {
	for _, tok := range tokens {
		switch t := tok.(type) {
		case *markdown.Text:
			sb.WriteString(t.Content)
		case *markdown.CodeInline:
			sb.WriteString(t.Content)
		case *markdown.Softbreak, *markdown.Hardbreak:
			sb.WriteByte(' ')
		case *markdown.Image:
			renderText(sb, t.Tokens)
		}
	}
}
