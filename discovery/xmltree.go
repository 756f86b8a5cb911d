package discovery

import (
	"encoding/xml"
	"io"
	"strings"
)

// element is a minimal parsed XML tree node, addressed by local name only
// (the namespace prefix is discarded). spec.md §9 calls the WS-Discovery
// envelopes "tiny and predictable" and a full namespace-validating XML
// stack "overkill"; this tree is the minimal namespace-tolerant parser it
// recommends instead, tolerant of arbitrary element ordering and unknown
// elements.
type element struct {
	Name     string
	Attrs    []xml.Attr
	Children []*element
	Text     string
}

// parseXML reads an entire XML document into an element tree rooted at
// the document's single top-level element.
func parseXML(r io.Reader) (*element, error) {
	dec := xml.NewDecoder(r)
	var stack []*element
	var root *element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{Name: t.Name.Local, Attrs: t.Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			} else {
				root = el
			}
			stack = append(stack, el)
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}
	return root, nil
}

// find returns the first descendant (including el itself) whose local
// name matches localName, depth-first.
func (el *element) find(localName string) *element {
	if el == nil {
		return nil
	}
	if el.Name == localName {
		return el
	}
	for _, c := range el.Children {
		if found := c.find(localName); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every descendant (including el itself) whose local name
// matches localName.
func (el *element) findAll(localName string) []*element {
	if el == nil {
		return nil
	}
	var out []*element
	if el.Name == localName {
		out = append(out, el)
	}
	for _, c := range el.Children {
		out = append(out, c.findAll(localName)...)
	}
	return out
}

// trimmedText returns el's text content with surrounding whitespace
// removed, or "" if el is nil.
func (el *element) trimmedText() string {
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text)
}
