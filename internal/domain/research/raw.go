package research

// OutputKind tags the variant held by a RawOutput.
type OutputKind int

const (
	kindUnset OutputKind = iota
	KindText
	KindStructured
)

func (k OutputKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindStructured:
		return "structured"
	default:
		return "unset"
	}
}

// RawOutput is what the orchestrator hands to the normalizer: either model
// text or an already structured mapping. The zero value holds neither and is
// rejected by Normalize.
type RawOutput struct {
	kind       OutputKind
	text       string
	structured map[string]any
}

// Text wraps model text.
func Text(s string) RawOutput {
	return RawOutput{kind: KindText, text: s}
}

// Structured wraps a mapping produced without going through text.
func Structured(m map[string]any) RawOutput {
	return RawOutput{kind: KindStructured, structured: m}
}

// Kind reports the variant.
func (r RawOutput) Kind() OutputKind { return r.kind }

// TextValue returns the text variant.
func (r RawOutput) TextValue() (string, bool) {
	return r.text, r.kind == KindText
}

// StructuredValue returns the mapping variant.
func (r RawOutput) StructuredValue() (map[string]any, bool) {
	return r.structured, r.kind == KindStructured
}
