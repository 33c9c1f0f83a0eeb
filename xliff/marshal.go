package xliff

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/l10nkit/xclocsync/atomicfile"
	"golang.org/x/text/encoding/unicode"
)

// FileMode is the permission used for written XLIFF files.
const FileMode fs.FileMode = 0644

// Marshal renders the document as UTF-8 with two-space indentation. This
// is the form handed to the translation repository on export.
func (d *Document) Marshal() []byte {
	return []byte(d.render("  ", "UTF-8"))
}

// MarshalUTF16 renders the document pretty-printed with four-space
// indentation and encodes it as big-endian UTF-16 with a BOM. This is the
// form xcodebuild -importLocalizations is fed.
func (d *Document) MarshalUTF16() ([]byte, error) {
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	out, err := enc.Bytes([]byte(d.render("    ", "UTF-16")))
	if err != nil {
		return nil, fmt.Errorf("encoding UTF-16: %w", err)
	}
	return out, nil
}

// WriteFile atomically writes the UTF-8 form to path.
func (d *Document) WriteFile(path string) error {
	return atomicfile.WriteFile(path, d.Marshal(), FileMode)
}

// WriteFileUTF16 atomically writes the UTF-16 form to path.
func (d *Document) WriteFileUTF16(path string) error {
	data, err := d.MarshalUTF16()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", atomicfile.ErrWrite, path, err)
	}
	return atomicfile.WriteFile(path, data, FileMode)
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

var (
	// \r would be normalised away by any XML reader, so it is kept as a
	// character reference.
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#13;")
	attrEscaper = strings.NewReplacer(
		"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\n", "&#10;", "\r", "&#13;", "\t", "&#9;",
	)
)

type printer struct {
	b      strings.Builder
	indent string
}

func (d *Document) render(indent, encoding string) string {
	p := &printer{indent: indent}
	p.b.WriteString(`<?xml version="1.0" encoding="` + encoding + `"?>` + "\n")

	root := d.Root
	if root == "" {
		root = "xliff"
	}
	p.open(0, root, d.Attrs)
	for _, f := range d.Files {
		p.file(1, f)
	}
	for _, e := range d.Extra {
		p.element(1, e)
	}
	p.close(0, root)
	return p.b.String()
}

func (p *printer) file(depth int, f *File) {
	p.open(depth, "file", f.Attrs)
	if f.Header != nil {
		p.element(depth+1, f.Header)
	}
	p.open(depth+1, "body", nil)
	for _, u := range f.Units {
		p.unit(depth+2, u)
	}
	for _, e := range f.BodyExtra {
		p.element(depth+2, e)
	}
	p.close(depth+1, "body")
	for _, e := range f.Extra {
		p.element(depth+1, e)
	}
	p.close(depth, "file")
}

func (p *printer) unit(depth int, u *Unit) {
	p.open(depth, "trans-unit", u.Attrs)
	if u.source != nil {
		p.leaf(depth+1, "source", u.SourceAttrs, *u.source)
	}
	if u.target != nil {
		p.leaf(depth+1, "target", u.TargetAttrs, *u.target)
	}
	if u.note != nil {
		p.leaf(depth+1, "note", u.NoteAttrs, *u.note)
	}
	for _, e := range u.Extra {
		p.element(depth+1, e)
	}
	p.close(depth, "trans-unit")
}

func (p *printer) element(depth int, e *Element) {
	if len(e.Children) == 0 {
		p.leaf(depth, e.Name, e.Attrs, e.Text)
		return
	}
	p.open(depth, e.Name, e.Attrs)
	for _, c := range e.Children {
		p.element(depth+1, c)
	}
	p.close(depth, e.Name)
}

func (p *printer) leaf(depth int, name string, attrs Attrs, text string) {
	p.pad(depth)
	p.startTag(name, attrs)
	if text == "" {
		p.b.WriteString("/>\n")
		return
	}
	p.b.WriteString(">")
	p.b.WriteString(textEscaper.Replace(text))
	p.b.WriteString("</" + name + ">\n")
}

func (p *printer) open(depth int, name string, attrs Attrs) {
	p.pad(depth)
	p.startTag(name, attrs)
	p.b.WriteString(">\n")
}

func (p *printer) close(depth int, name string) {
	p.pad(depth)
	p.b.WriteString("</" + name + ">\n")
}

func (p *printer) startTag(name string, attrs Attrs) {
	p.b.WriteString("<" + name)
	for _, a := range attrs {
		p.b.WriteString(" " + a.Name + `="` + attrEscaper.Replace(a.Value) + `"`)
	}
}

func (p *printer) pad(depth int) {
	p.b.WriteString(strings.Repeat(p.indent, depth))
}
