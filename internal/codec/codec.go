// Package codec turns whatever the data channel hands us into text.
//
// The channel may deliver a payload as a string, as raw bytes, or wrapped in
// an envelope that carries the real payload under a data or payload field,
// depending on the runtime and negotiation path. Decode tries those shapes in
// a fixed order and never fails: anything it cannot make sense of becomes "".
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
)

const maxDepth = 8

// Carrier is implemented by envelopes that wrap the real payload.
type Carrier interface {
	Unwrap() any
}

type Decoder struct {
	Log *zap.Logger
}

var std = Decoder{}

// Decode is Decoder.Decode without diagnostics.
func Decode(payload any) string {
	return std.Decode(payload)
}

func (d Decoder) Decode(payload any) (text string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger().Warn("payload decode panicked",
				zap.Any("panic", r),
				zap.String("payload_type", fmt.Sprintf("%T", payload)))
			text = ""
		}
	}()
	return d.decode(payload, 0)
}

func (d Decoder) decode(payload any, depth int) string {
	if depth > maxDepth {
		d.logger().Warn("payload nested too deep", zap.Int("max_depth", maxDepth))
		return ""
	}

	switch p := payload.(type) {
	case nil:
		return ""
	case string:
		return p
	case []byte:
		return d.utf8(p)
	case json.RawMessage:
		return d.utf8(p)
	case *[]byte:
		if p == nil {
			return ""
		}
		return d.utf8(*p)
	case *bytes.Buffer:
		if p == nil {
			return ""
		}
		return d.utf8(p.Bytes())
	case Carrier:
		return d.decode(p.Unwrap(), depth+1)
	case byteViewer:
		return d.utf8(p.Bytes())
	case map[string]any:
		if v, ok := wrapped(p); ok {
			return d.decode(v, depth+1)
		}
		return d.stringify(p)
	case map[string]json.RawMessage:
		if v, ok := wrapped(p); ok {
			return d.decode(v, depth+1)
		}
		return d.stringify(p)
	case map[string][]byte:
		if v, ok := wrapped(p); ok {
			return d.decode(v, depth+1)
		}
		return d.stringify(p)
	case map[string]string:
		if v, ok := wrapped(p); ok {
			return d.decode(v, depth+1)
		}
		return d.stringify(p)
	case fmt.Stringer:
		return p.String()
	default:
		if b, ok := byteArray(p); ok {
			return d.utf8(b)
		}
		return d.stringify(p)
	}
}

// byteViewer covers buffers that expose their contents without copying.
type byteViewer interface {
	Bytes() []byte
}

var wrapperKeys = [...]string{"data", "payload"}

// wrapped picks the wrapped value of an envelope map: data first, then
// payload, skipping empty fields. ok is false when m has neither key; when
// both keys are present but empty the value is nil.
func wrapped[V any](m map[string]V) (v any, ok bool) {
	for _, k := range wrapperKeys {
		x, found := m[k]
		if !found {
			continue
		}
		ok = true
		if !empty(x) {
			return x, true
		}
	}
	return nil, ok
}

func empty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []byte:
		return len(x) == 0
	case json.RawMessage:
		return len(x) == 0 || string(x) == "null"
	default:
		return false
	}
}

// byteArray copies a fixed-length byte array, or a pointer to one, into a
// slice. It is the only place the decoder looks at values by kind.
func byteArray(v any) ([]byte, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() || rv.Elem().Kind() != reflect.Array {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Array || rv.Type().Elem().Kind() != reflect.Uint8 {
		return nil, false
	}
	b := make([]byte, rv.Len())
	reflect.Copy(reflect.ValueOf(b), rv)
	return b, true
}

// utf8 decodes b the way a browser TextDecoder does: a leading BOM is
// dropped and invalid sequences become U+FFFD.
func (d Decoder) utf8(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(b)
	if err != nil {
		d.logger().Warn("binary payload is not decodable as utf-8", zap.Error(err), zap.Int("len", len(b)))
		return ""
	}
	return string(out)
}

// stringify is the last resort for shapes we do not know. Structured values
// are rendered as JSON so the protocol layer still has a chance with them.
func (d Decoder) stringify(v any) string {
	switch v.(type) {
	case map[string]any, []any, map[string]json.RawMessage, map[string][]byte, map[string]string:
		b, err := json.Marshal(v)
		if err != nil {
			d.logger().Debug("payload not json-encodable", zap.Error(err))
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}

func (d Decoder) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}
