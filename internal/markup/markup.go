// Package markup isolates and navigates the XML embedded in EDGAR
// submission text files.
package markup

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

const (
	openMarker  = "<XML>"
	closeMarker = "</XML>"

	// "<XML>" plus the newline that always follows it in submission files.
	bodyOffset = len(openMarker) + 1
)

// ErrMalformed matches every *MalformedError via errors.Is.
var ErrMalformed = errors.New("markup: malformed")

// MalformedError reports markup that could not be parsed or lacks an
// expected element. What names the element path or marker involved.
type MalformedError struct {
	What string
	Err  error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed markup at %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("malformed markup: missing %s", e.What)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// ExtractXML returns the text between the first <XML> block's opening
// line and its closing </XML> marker.
func ExtractXML(doc string) (string, error) {
	i := strings.Index(doc, openMarker)
	if i < 0 {
		return "", &MalformedError{What: openMarker}
	}
	start := i + bodyOffset
	if start > len(doc) {
		return "", &MalformedError{What: closeMarker}
	}
	end := strings.Index(doc[start:], closeMarker)
	if end < 0 {
		return "", &MalformedError{What: closeMarker}
	}
	return doc[start : start+end], nil
}

// Parse parses an XML fragment into a document tree.
func Parse(fragment string) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, &MalformedError{What: "document", Err: err}
	}
	return doc, nil
}

// Child returns the first element child of n with the given local name.
func Child(n *xmlquery.Node, name string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			return c
		}
	}
	return nil
}

// Children returns every element child of n with the given local name, in
// document order.
func Children(n *xmlquery.Node, name string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			out = append(out, c)
		}
	}
	return out
}

// Path follows a chain of child elements from n.
func Path(n *xmlquery.Node, names ...string) (*xmlquery.Node, error) {
	cur := n
	for i, name := range names {
		cur = Child(cur, name)
		if cur == nil {
			return nil, &MalformedError{What: strings.Join(names[:i+1], ".")}
		}
	}
	return cur, nil
}

// Text returns the trimmed text content at the end of a child path.
func Text(n *xmlquery.Node, names ...string) (string, error) {
	node, err := Path(n, names...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(node.InnerText()), nil
}

// Find returns the first element named name anywhere below n, or nil.
func Find(n *xmlquery.Node, name string) *xmlquery.Node {
	return xmlquery.FindOne(n, "//"+name)
}
