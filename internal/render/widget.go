package render

import (
	"strings"

	"prana-chat/internal/logger"
)

// Widget is a decoded structured payload ready for specialised display.
type Widget interface {
	Kind() PayloadKind
}

// Resolution is the outcome of decoding a payload block: either a widget or
// the raw text to show as plain code.
type Resolution struct {
	Widget Widget
	Raw    string
}

// Decoded reports whether a widget was produced.
func (r Resolution) Decoded() bool {
	return r.Widget != nil
}

type decodeFunc func(raw string) (Widget, error)

// decoders is the payload registry. Read-only after init.
var decoders = map[PayloadKind]decodeFunc{
	KindAQI: decodeAQI,
}

// Resolve decodes raw as the given payload kind. Any failure yields a fallback
// carrying raw unchanged; errors never escape.
func Resolve(kind PayloadKind, raw string) Resolution {
	decode, ok := decoders[kind]
	if !ok {
		return Resolution{Raw: raw}
	}

	w, err := decode(strings.TrimSuffix(raw, "\n"))
	if err != nil {
		logger.Debug("payload fell back to plain code", "kind", kind, "error", err)
		return Resolution{Raw: raw}
	}
	return Resolution{Widget: w, Raw: raw}
}
