package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResponseKind discriminates the payload shapes an agent can return.
type ResponseKind int

const (
	// KindText is a plain string payload.
	KindText ResponseKind = iota
	// KindStructured is a JSON object payload.
	KindStructured
	// KindSequence is a JSON array payload.
	KindSequence
)

// Response holds one agent reply in whichever shape the agent produced it.
// Exactly one of the value fields is populated, selected by Kind.
type Response struct {
	Kind       ResponseKind
	Text       string
	Structured map[string]interface{}
	Sequence   []interface{}
}

// TextResponse wraps a plain string reply.
func TextResponse(s string) Response {
	return Response{Kind: KindText, Text: s}
}

// Decode converts a raw agent reply into a Response. Bodies that parse as
// JSON objects or arrays keep their structure; everything else is carried
// as text.
func Decode(raw []byte) Response {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return TextResponse("")
	}
	var v interface{}
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return TextResponse(trimmed)
	}
	return FromValue(v)
}

// FromValue converts an already-decoded JSON value into a Response.
func FromValue(v interface{}) Response {
	switch t := v.(type) {
	case map[string]interface{}:
		return Response{Kind: KindStructured, Structured: t}
	case []interface{}:
		return Response{Kind: KindSequence, Sequence: t}
	case string:
		return TextResponse(t)
	case nil:
		return TextResponse("")
	default:
		return TextResponse(fmt.Sprintf("%v", t))
	}
}

// Extract flattens a Response into report text. It never fails: structured
// replies are searched for the conventional content keys, sequences are
// joined, and anything else is stringified.
func (r Response) Extract() string {
	switch r.Kind {
	case KindStructured:
		for _, key := range []string{"response", "text", "content"} {
			if s, ok := r.Structured[key].(string); ok && s != "" {
				return s
			}
		}
		return stringify(r.Structured)
	case KindSequence:
		parts := make([]string, 0, len(r.Sequence))
		for _, item := range r.Sequence {
			parts = append(parts, itemText(item))
		}
		return strings.Join(parts, "\n\n")
	default:
		return r.Text
	}
}

// Empty reports whether the extracted text is blank.
func (r Response) Empty() bool {
	return strings.TrimSpace(r.Extract()) == ""
}

func itemText(item interface{}) string {
	switch t := item.(type) {
	case string:
		return t
	case map[string]interface{}:
		for _, key := range []string{"response", "text", "content"} {
			if s, ok := t[key].(string); ok && s != "" {
				return s
			}
		}
		return stringify(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func stringify(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
