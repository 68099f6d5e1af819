package editor

import (
	"github.com/pagecrop/pagecrop/backend-go/internal/page"
)

// FieldInput is the state of one numeric text field bound to the selected
// page. The first focus selects the whole text so typing replaces it.
type FieldInput struct {
	field  page.Field
	editor *Editor

	text      string
	focused   bool
	selectAll bool
}

// NewFieldInput binds a text field to field of ed's selected page.
func NewFieldInput(ed *Editor, f page.Field) *FieldInput {
	in := &FieldInput{field: f, editor: ed}
	in.Reset()
	return in
}

// Field returns the bound field.
func (in *FieldInput) Field() page.Field {
	return in.field
}

// Text is what the field currently shows.
func (in *FieldInput) Text() string {
	return in.text
}

// SelectAll reports whether the whole text is selected.
func (in *FieldInput) SelectAll() bool {
	return in.selectAll
}

// Focus selects all text when the field gains focus.
func (in *FieldInput) Focus() {
	if in.focused {
		return
	}
	in.focused = true
	in.selectAll = true
}

// Type inserts s, replacing the text if it was all selected.
func (in *FieldInput) Type(s string) {
	if in.selectAll {
		in.text = ""
		in.selectAll = false
	}
	in.text += s
}

// Backspace deletes the last character or the selection.
func (in *FieldInput) Backspace() {
	if in.selectAll {
		in.text = ""
		in.selectAll = false
		return
	}
	if n := len(in.text); n > 0 {
		in.text = in.text[:n-1]
	}
}

// Commit applies the text to the page and shows the resulting value, which
// may differ when the edit was clamped.
func (in *FieldInput) Commit() error {
	_, _, err := in.editor.Edit(in.field, in.text)
	in.Reset()
	return err
}

// Blur commits and drops focus.
func (in *FieldInput) Blur() error {
	err := in.Commit()
	in.focused = false
	in.selectAll = false
	return err
}

// Key handles navigation keys. It reports whether the key was consumed.
func (in *FieldInput) Key(key string) (bool, error) {
	switch key {
	case "Enter":
		return true, in.Commit()
	case "Escape":
		in.Reset()
		return true, nil
	case "ArrowUp":
		return true, in.step(1)
	case "ArrowDown":
		return true, in.step(-1)
	}
	return false, nil
}

// Reset shows the selected page's current value.
func (in *FieldInput) Reset() {
	b, ok := in.editor.Selected()
	if !ok {
		in.text = ""
		return
	}
	in.text = Format(b.Value(in.field), in.editor.engine.Precision)
}

func (in *FieldInput) step(dir int) error {
	_, _, err := in.editor.Step(in.field, dir)
	in.Reset()
	return err
}
