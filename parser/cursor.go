package parser

import (
	"io"
	"strings"

	xpp "github.com/mmcdole/goxpp"
)

type eventKind int

const (
	eventEOF eventKind = iota
	eventStart
	eventEnd
	eventText
)

type event struct {
	kind eventKind
	name string
	text string
}

// cursor walks an XML document as a flat sequence of start, end and text
// events. Element names keep their namespace prefix ("content:encoded").
type cursor struct {
	p     *xpp.XMLPullParser
	names []string
}

func newCursor(r io.Reader) *cursor {
	return &cursor{
		// Non-strict so that HTML entities like &nbsp; don't abort the walk.
		p: xpp.NewXMLPullParser(r, false, passthroughCharset),
	}
}

// The input is already decoded text, whatever the XML declaration says.
func passthroughCharset(_ string, input io.Reader) (io.Reader, error) {
	return input, nil
}

func (c *cursor) next() (event, error) {
	for {
		ev, err := c.p.Next()
		if err != nil {
			return event{}, err
		}

		switch ev {
		case xpp.StartTag:
			name := c.qualifiedName()
			c.names = append(c.names, name)
			return event{kind: eventStart, name: name}, nil
		case xpp.EndTag:
			// The decoder keeps elements balanced, so an end tag always
			// closes the innermost open element.
			var name string
			if n := len(c.names); n > 0 {
				name = c.names[n-1]
				c.names = c.names[:n-1]
			}
			return event{kind: eventEnd, name: name}, nil
		case xpp.Text:
			return event{kind: eventText, text: c.p.Text}, nil
		case xpp.EndDocument:
			return event{kind: eventEOF}, nil
		}
	}
}

func (c *cursor) qualifiedName() string {
	space := strings.TrimSpace(c.p.Space)
	if space == "" {
		return c.p.Name
	}
	// Declared namespaces come back as URLs, undeclared ones as the bare prefix.
	prefix := space
	if p, ok := c.p.Spaces[space]; ok {
		prefix = p
	}
	if prefix == "" {
		return c.p.Name
	}
	return prefix + ":" + c.p.Name
}

// skipSubtree consumes everything up to and including the end tag of the
// element whose start tag was read last.
func (c *cursor) skipSubtree() error {
	for depth := 1; depth > 0; {
		ev, err := c.next()
		if err != nil {
			return err
		}
		switch ev.kind {
		case eventStart:
			depth++
		case eventEnd:
			depth--
		case eventEOF:
			return io.ErrUnexpectedEOF
		}
	}
	return nil
}

// readText returns the trimmed character data of the element whose start
// tag was read last and consumes its end tag. An element without text
// yields "". Nested markup is skipped. The non-strict decoder renames a
// mismatched end tag after the open element, so the first end event at
// this depth always closes it.
func (c *cursor) readText() (string, error) {
	var sb strings.Builder
	for {
		ev, err := c.next()
		if err != nil {
			return "", err
		}
		switch ev.kind {
		case eventText:
			sb.WriteString(ev.text)
		case eventStart:
			if err := c.skipSubtree(); err != nil {
				return "", err
			}
		case eventEnd:
			return strings.TrimSpace(sb.String()), nil
		case eventEOF:
			return "", io.ErrUnexpectedEOF
		}
	}
}

// children calls fn with the name of every direct child element of the
// element whose start tag was read last, until its end tag. fn must consume
// the child completely.
func (c *cursor) children(fn func(name string) error) error {
	for {
		ev, err := c.next()
		if err != nil {
			return err
		}
		switch ev.kind {
		case eventStart:
			if err := fn(ev.name); err != nil {
				return err
			}
		case eventEnd:
			return nil
		case eventEOF:
			return io.ErrUnexpectedEOF
		}
	}
}

// optional is element text that remembers whether the element was present.
type optional struct {
	value string
	ok    bool
}

func (c *cursor) readOptional(dst *optional) error {
	text, err := c.readText()
	if err != nil {
		return err
	}
	*dst = optional{value: text, ok: true}
	return nil
}
