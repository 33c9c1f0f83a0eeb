// Package xliff implements reading and writing of the XLIFF 1.2 files that
// Xcode produces with -exportLocalizations and consumes with
// -importLocalizations.
//
// A Document is a typed tree: files, each with a body of trans-units.
// Elements the tool does not interpret (<header>, <context-group>, …) are
// kept as generic Elements and written back in place, so a parse/marshal
// round trip preserves every unit id, source, target and note.
package xliff

import (
	"errors"
	"fmt"
)

// Error kinds reported by the codec.
var (
	// ErrMalformed means the artifact is not well-formed XML.
	ErrMalformed = errors.New("malformed xliff")
	// ErrNoRoot means the artifact has no document element.
	ErrNoRoot = errors.New("xliff has no root element")
	// ErrStructure means an expected path (file/body) is missing.
	ErrStructure = errors.New("unexpected xliff structure")
	// ErrMissingSource means a trans-unit has no <source>.
	ErrMissingSource = errors.New("trans-unit has no source")
)

// ---------------------------------------------------------------------------
// Attributes
// ---------------------------------------------------------------------------

// Attr is an attribute with its qualified name as written ("xml:space").
type Attr struct {
	Name  string
	Value string
}

// Attrs is an ordered attribute list. Order is preserved on write.
type Attrs []Attr

// Get returns the value of the named attribute.
func (a Attrs) Get(name string) (string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Set updates the named attribute, appending it when absent.
func (a *Attrs) Set(name, value string) {
	for i := range *a {
		if (*a)[i].Name == name {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attr{Name: name, Value: value})
}

// Remove deletes the named attribute and reports whether it was present.
func (a *Attrs) Remove(name string) bool {
	for i := range *a {
		if (*a)[i].Name == name {
			*a = append((*a)[:i], (*a)[i+1:]...)
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Data model
// ---------------------------------------------------------------------------

// Element is an uninterpreted XML element kept for round-tripping.
// Text holds the element's own character data; mixed content is not
// preserved.
type Element struct {
	Name     string
	Attrs    Attrs
	Text     string
	Children []*Element
}

// Document is one locale's XLIFF file.
type Document struct {
	// Root is the document element name, normally "xliff".
	Root  string
	Attrs Attrs
	Files []*File
	// Extra holds non-<file> children of the root.
	Extra []*Element
}

// File is a <file> group: all units extracted from one source file.
type File struct {
	Attrs  Attrs
	Header *Element
	Units  []*Unit
	// BodyExtra holds non-trans-unit children of <body>.
	BodyExtra []*Element
	// Extra holds children of <file> other than <header> and <body>.
	Extra []*Element
}

// Unit is a <trans-unit>.
type Unit struct {
	Attrs  Attrs
	source *string
	target *string
	note   *string

	// Attributes of the first <source>, <target> and <note>.
	SourceAttrs Attrs
	TargetAttrs Attrs
	NoteAttrs   Attrs

	// Extra holds unit children other than the first source/target/note.
	Extra []*Element
}

// NewUnit returns a unit with the given id and source text.
func NewUnit(id, source string) *Unit {
	u := &Unit{}
	u.Attrs.Set("id", id)
	u.source = &source
	return u
}

// ---------------------------------------------------------------------------
// Document operations
// ---------------------------------------------------------------------------

// UnitCount returns the number of trans-units across all files.
func (d *Document) UnitCount() int {
	n := 0
	for _, f := range d.Files {
		n += len(f.Units)
	}
	return n
}

// DetachFile removes f from the document and reports whether it was present.
func (d *Document) DetachFile(f *File) bool {
	for i, cur := range d.Files {
		if cur == f {
			d.Files = append(d.Files[:i], d.Files[i+1:]...)
			return true
		}
	}
	return false
}

// PruneEmptyFiles removes every file that has no trans-units left and
// returns how many were removed.
func (d *Document) PruneEmptyFiles() int {
	kept := d.Files[:0]
	for _, f := range d.Files {
		if len(f.Units) > 0 {
			kept = append(kept, f)
		}
	}
	removed := len(d.Files) - len(kept)
	for i := len(kept); i < len(d.Files); i++ {
		d.Files[i] = nil
	}
	d.Files = kept
	return removed
}

// ---------------------------------------------------------------------------
// File operations
// ---------------------------------------------------------------------------

// Original returns the source path the file was extracted from.
func (f *File) Original() string {
	v, _ := f.Attrs.Get("original")
	return v
}

// TargetLanguage returns the target-language attribute.
func (f *File) TargetLanguage() (string, bool) {
	return f.Attrs.Get("target-language")
}

// SetTargetLanguage sets the target-language attribute.
func (f *File) SetTargetLanguage(lang string) {
	f.Attrs.Set("target-language", lang)
}

// DetachUnit removes u from the file and reports whether it was present.
func (f *File) DetachUnit(u *Unit) bool {
	for i, cur := range f.Units {
		if cur == u {
			f.Units = append(f.Units[:i], f.Units[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveUnits detaches every unit for which drop returns true and returns
// how many were removed.
func (f *File) RemoveUnits(drop func(*Unit) bool) int {
	kept := f.Units[:0]
	for _, u := range f.Units {
		if !drop(u) {
			kept = append(kept, u)
		}
	}
	removed := len(f.Units) - len(kept)
	for i := len(kept); i < len(f.Units); i++ {
		f.Units[i] = nil
	}
	f.Units = kept
	return removed
}

// ---------------------------------------------------------------------------
// Unit operations
// ---------------------------------------------------------------------------

// ID returns the unit id, or "" when the attribute is absent.
func (u *Unit) ID() string {
	v, _ := u.Attrs.Get("id")
	return v
}

// Source returns the source text and whether a <source> element exists.
func (u *Unit) Source() (string, bool) {
	if u.source == nil {
		return "", false
	}
	return *u.source, true
}

// SourceText returns the source text or ErrMissingSource.
func (u *Unit) SourceText() (string, error) {
	if u.source == nil {
		return "", fmt.Errorf("%w: id %q", ErrMissingSource, u.ID())
	}
	return *u.source, nil
}

// Target returns the target text and whether a <target> element exists.
func (u *Unit) Target() (string, bool) {
	if u.target == nil {
		return "", false
	}
	return *u.target, true
}

// SetTarget sets the target text, inserting a <target> directly after
// <source> when absent.
func (u *Unit) SetTarget(text string) {
	u.target = &text
}

// RemoveTarget deletes the <target> element.
func (u *Unit) RemoveTarget() {
	u.target = nil
	u.TargetAttrs = nil
}

// Note returns the first note's text and whether a <note> exists.
func (u *Unit) Note() (string, bool) {
	if u.note == nil {
		return "", false
	}
	return *u.note, true
}

// SetNote replaces the first note's text, adding a <note> when absent.
func (u *Unit) SetNote(text string) {
	u.note = &text
}
