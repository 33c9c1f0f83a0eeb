package xliff

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/l10nkit/xclocsync/atomicfile"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParseFile reads and parses an XLIFF file.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", atomicfile.ErrRead, path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse parses XLIFF data. UTF-8 input and BOM-marked UTF-16 input (as
// written by MarshalUTF16) are both accepted.
func Parse(data []byte) (*Document, error) {
	// BOMOverride transcodes UTF-16 to UTF-8 when a BOM is present and
	// strips a UTF-8 BOM otherwise.
	r := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	dec := xml.NewDecoder(r)
	dec.Strict = true
	dec.CharsetReader = charsetReader

	var root *Element
	for {
		// RawToken keeps namespace prefixes as written ("xml:space"),
		// which is what Marshal needs to reproduce them.
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil {
				return nil, fmt.Errorf("%w: more than one root element", ErrMalformed)
			}
			root, err = readElement(dec, t)
			if err != nil {
				return nil, err
			}
		case xml.EndElement:
			return nil, fmt.Errorf("%w: unexpected </%s>", ErrMalformed, qualify(t.Name))
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, fmt.Errorf("%w: text outside the root element", ErrMalformed)
			}
		}
	}

	if root == nil {
		return nil, ErrNoRoot
	}
	return buildDocument(root)
}

// charsetReader accepts UTF-16 declarations; the bytes were already
// transcoded to UTF-8 before the decoder sees them.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "utf-16", "utf-16le", "utf-16be", "utf16":
		return input, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", label)
}

// readElement reads an element already opened by start, up to and
// including its matching end tag.
func readElement(dec *xml.Decoder, start xml.StartElement) (*Element, error) {
	el := &Element{Name: qualify(start.Name)}
	for _, a := range start.Attr {
		el.Attrs = append(el.Attrs, Attr{Name: qualify(a.Name), Value: a.Value})
	}

	var text strings.Builder
	for {
		tok, err := dec.RawToken()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("%w: inside <%s>: %w", ErrMalformed, el.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := readElement(dec, t)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		case xml.EndElement:
			// RawToken does not check nesting, so do it here.
			if name := qualify(t.Name); name != el.Name {
				return nil, fmt.Errorf("%w: <%s> closed by </%s>", ErrMalformed, el.Name, name)
			}
			el.Text = text.String()
			return el, nil
		case xml.CharData:
			text.Write(t)
		}
	}
}

func qualify(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// innerText concatenates all character data below e. Inline markup inside
// source/target/note is flattened.
func innerText(e *Element) string {
	if len(e.Children) == 0 {
		return e.Text
	}
	var b strings.Builder
	b.WriteString(e.Text)
	for _, c := range e.Children {
		b.WriteString(innerText(c))
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Typed tree construction
// ---------------------------------------------------------------------------

func buildDocument(root *Element) (*Document, error) {
	doc := &Document{Root: root.Name, Attrs: root.Attrs}
	for _, c := range root.Children {
		if c.Name != "file" {
			doc.Extra = append(doc.Extra, c)
			continue
		}
		f, err := buildFile(c)
		if err != nil {
			return nil, err
		}
		doc.Files = append(doc.Files, f)
	}
	return doc, nil
}

func buildFile(e *Element) (*File, error) {
	f := &File{Attrs: e.Attrs}
	var body *Element
	for _, c := range e.Children {
		switch {
		case c.Name == "header" && f.Header == nil:
			f.Header = c
		case c.Name == "body" && body == nil:
			body = c
		default:
			f.Extra = append(f.Extra, c)
		}
	}
	if body == nil {
		return nil, fmt.Errorf("%w: <file original=%q> has no <body>", ErrStructure, f.Original())
	}

	for _, c := range body.Children {
		if c.Name != "trans-unit" {
			f.BodyExtra = append(f.BodyExtra, c)
			continue
		}
		f.Units = append(f.Units, buildUnit(c))
	}
	return f, nil
}

func buildUnit(e *Element) *Unit {
	u := &Unit{Attrs: e.Attrs}
	for _, c := range e.Children {
		switch {
		case c.Name == "source" && u.source == nil:
			s := innerText(c)
			u.source = &s
			u.SourceAttrs = c.Attrs
		case c.Name == "target" && u.target == nil:
			s := innerText(c)
			u.target = &s
			u.TargetAttrs = c.Attrs
		case c.Name == "note" && u.note == nil:
			s := innerText(c)
			u.note = &s
			u.NoteAttrs = c.Attrs
		default:
			u.Extra = append(u.Extra, c)
		}
	}
	return u
}
