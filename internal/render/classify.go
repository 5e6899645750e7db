// Package render turns assistant markdown into an ordered sequence of typed blocks.
//
// Fenced code blocks whose language tag names a structured payload (currently
// "aqi") are decoded into widgets; everything else keeps standard markdown
// semantics. Parsing is pure: the same content always yields the same Document.
package render

// PayloadKind identifies a structured payload embedded in a fenced code block.
type PayloadKind string

const (
	// KindNone marks an ordinary code block.
	KindNone PayloadKind = ""
	// KindAQI marks an air-quality and weather snapshot.
	KindAQI PayloadKind = "aqi"
)

// payloadTags maps fence language tags to payload kinds. Read-only after init.
var payloadTags = map[string]PayloadKind{
	"aqi": KindAQI,
}

// Classify returns the payload kind for a fence language tag. Unknown and empty
// tags are plain code. The match is exact and case-sensitive.
func Classify(lang string) PayloadKind {
	if kind, ok := payloadTags[lang]; ok {
		return kind
	}
	return KindNone
}

// IsPayload reports whether the kind is a structured payload.
func (k PayloadKind) IsPayload() bool {
	return k != KindNone
}
