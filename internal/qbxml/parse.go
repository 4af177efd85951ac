// Package qbxml turns raw connector answers into a node tree and reads
// values out of it by dotted path.
//
// Trees come from mxj: elements become map[string]any, repeated elements
// become []any, attributes are keyed with a leading "-" and element text
// next to attributes is keyed "#text". No values are cast; every leaf is a
// string.
package qbxml

import (
	"errors"
	"fmt"
	"strings"

	"github.com/clbanning/mxj/v2"
	"golang.org/x/net/html/charset"
)

// ErrMalformed is returned when an answer is not a qbXML message set.
var ErrMalformed = errors.New("malformed qbXML answer")

func init() {
	// Connector answers may declare a Windows code page.
	mxj.XmlCharsetReader = charset.NewReaderLabel
}

// Answer is a parsed connector answer.
type Answer map[string]any

// Parse parses raw into an Answer. The document must be well-formed and
// carry a QBXML/QBXMLMsgsRs element.
func Parse(raw string) (Answer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty answer", ErrMalformed)
	}
	m, err := mxj.NewMapXml([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	a := Answer(m)
	if _, ok := a.MessageSet(); !ok {
		return nil, fmt.Errorf("%w: missing QBXML.QBXMLMsgsRs", ErrMalformed)
	}
	return a, nil
}

// MessageSet returns the QBXMLMsgsRs element.
func (a Answer) MessageSet() (map[string]any, bool) {
	root, ok := a["QBXML"].(map[string]any)
	if !ok {
		return nil, false
	}
	rs, ok := root["QBXMLMsgsRs"].(map[string]any)
	return rs, ok
}

// HasResponse reports whether the message set contains the given
// response element, such as "InvoiceQueryRs".
func (a Answer) HasResponse(key string) bool {
	rs, ok := a.MessageSet()
	if !ok {
		return false
	}
	_, ok = rs[key]
	return ok
}

// Status is the status attribute set of one response element.
type Status struct {
	Code     string
	Severity string
	Message  string
}

// OK reports success, including the "no matching records" code 1.
func (s Status) OK() bool { return s.Code == "" || s.Code == "0" || s.Code == "1" }

// ResponseStatus reads the status attributes of a response element.
func (a Answer) ResponseStatus(key string) Status {
	rs, _ := a.MessageSet()
	el, ok := First(rs[key]).(map[string]any)
	if !ok {
		return Status{}
	}
	return Status{
		Code:     Text(el["-statusCode"]),
		Severity: Text(el["-statusSeverity"]),
		Message:  Text(el["-statusMessage"]),
	}
}

// Records returns the record elements named recordKey under response key.
// A single element yields a one-item list; an absent one yields nil. An
// error means the tree has the wrong shape along the way.
func (a Answer) Records(key, recordKey string) ([]map[string]any, error) {
	rs, ok := a.MessageSet()
	if !ok {
		return nil, fmt.Errorf("%w: missing QBXML.QBXMLMsgsRs", ErrMalformed)
	}
	container, ok := rs[key]
	if !ok {
		return nil, nil
	}
	var el map[string]any
	switch c := First(container).(type) {
	case map[string]any:
		el = c
	case string:
		// <InvoiceQueryRs/> or text-only: no records.
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s is not an element", ErrMalformed, key)
	}

	raw, ok := el[recordKey]
	if !ok {
		return nil, nil
	}
	items, isList := raw.([]any)
	if !isList {
		items = []any{raw}
	}
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		switch rec := item.(type) {
		case map[string]any:
			out = append(out, rec)
		case string:
			// An empty <InvoiceRet/> carries no fields.
			out = append(out, map[string]any{})
		default:
			return nil, fmt.Errorf("%w: %s.%s[%d] is not an element", ErrMalformed, key, recordKey, i)
		}
	}
	return out, nil
}

// Lookup walks a dotted path through node, taking the first occurrence of
// repeated elements, and returns the text found there.
func Lookup(node map[string]any, path string) (string, bool) {
	var cur any = node
	for _, part := range strings.Split(path, ".") {
		m, ok := First(cur).(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = m[part]
		if !ok {
			return "", false
		}
	}
	switch v := First(cur).(type) {
	case string:
		return v, true
	case map[string]any:
		if t, ok := v["#text"].(string); ok {
			return t, true
		}
	}
	return "", false
}

// First returns the first element of a repeated node, or v itself.
func First(v any) any {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	return v
}

// Text returns v as text, or "" when v is not a text node.
func Text(v any) string {
	switch t := First(v).(type) {
	case string:
		return t
	case map[string]any:
		s, _ := t["#text"].(string)
		return s
	}
	return ""
}
