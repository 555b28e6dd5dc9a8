package annotation

// FieldText is a document field decoded to code points so that span offsets
// index it directly.
type FieldText []rune

// NewFieldText decodes s.
func NewFieldText(s string) FieldText {
	return FieldText(s)
}

// Len returns the field length in code points.
func (t FieldText) Len() int {
	return len(t)
}

// InRange reports whether [start, end) lies within the field.
func (t FieldText) InRange(start, end int) bool {
	return start >= 0 && start <= end && end <= len(t)
}

// Slice returns the text in [start, end).  ok is false when the range does
// not lie within the field.
func (t FieldText) Slice(start, end int) (s string, ok bool) {
	if !t.InRange(start, end) {
		return "", false
	}
	return string(t[start:end]), true
}

// Aligned reports whether sp.Text equals the field slice it claims to cover.
func (t FieldText) Aligned(sp Span) bool {
	s, ok := t.Slice(sp.Start, sp.End)
	return ok && s == sp.Text
}

//Personal.AI order the ending
