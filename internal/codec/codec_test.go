package codec

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type envelope struct{ inner any }

func (e envelope) Unwrap() any { return e.inner }

type selfWrapping struct{}

func (s selfWrapping) Unwrap() any { return s }

type panicky struct{}

func (panicky) Unwrap() any { panic("boom") }

type view struct{ b []byte }

func (v view) Bytes() []byte { return v.b }

type named struct{ n string }

func (n named) String() string { return "named:" + n.n }

func TestDecode_RoundTripsText(t *testing.T) {
	const text = `{"type":"scenario_start","scenario":"Knock knock — who's there? 🎭"}`
	raw := []byte(text)
	buf := bytes.NewBufferString(text)
	var fixed [len(text)]byte
	copy(fixed[:], text)

	cases := []struct {
		name    string
		payload any
	}{
		{name: "string", payload: text},
		{name: "bytes", payload: raw},
		{name: "bytes pointer", payload: &raw},
		{name: "raw json", payload: json.RawMessage(text)},
		{name: "buffer", payload: buf},
		{name: "carrier", payload: envelope{inner: raw}},
		{name: "nested carrier", payload: envelope{inner: envelope{inner: text}}},
		{name: "map data", payload: map[string]any{"data": raw}},
		{name: "map payload", payload: map[string]any{"payload": text}},
		{name: "map in carrier", payload: envelope{inner: map[string]any{"payload": raw}}},
		{name: "typed map raw json", payload: map[string]json.RawMessage{"data": json.RawMessage(text)}},
		{name: "typed map bytes", payload: map[string][]byte{"payload": raw}},
		{name: "typed map string", payload: map[string]string{"payload": text}},
		{name: "nil data falls through", payload: map[string]any{"data": nil, "payload": text}},
		{name: "null raw data falls through", payload: map[string]json.RawMessage{"data": json.RawMessage("null"), "payload": json.RawMessage(text)}},
		{name: "fixed array", payload: fixed},
		{name: "fixed array pointer", payload: &fixed},
		{name: "byte view", payload: view{b: raw}},
		{name: "bom stripped", payload: append([]byte{0xEF, 0xBB, 0xBF}, raw...)},
	}

	d := Decoder{Log: zaptest.NewLogger(t)}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, text, d.Decode(tc.payload))
		})
	}
}

func TestDecode_DataBeatsPayload(t *testing.T) {
	got := Decode(map[string]any{"payload": "second", "data": "first"})
	assert.Equal(t, "first", got)
}

func TestDecode_EmptyAndUnrecognized(t *testing.T) {
	var nilBytes *[]byte
	var nilBuf *bytes.Buffer

	cases := []struct {
		name    string
		payload any
	}{
		{name: "nil", payload: nil},
		{name: "empty string", payload: ""},
		{name: "empty bytes", payload: []byte{}},
		{name: "nil bytes pointer", payload: nilBytes},
		{name: "nil buffer", payload: nilBuf},
		{name: "wrapper around nil", payload: map[string]any{"data": nil}},
		{name: "typed wrapper all empty", payload: map[string]string{"data": "", "payload": ""}},
		{name: "nil array pointer", payload: (*[4]byte)(nil)},
		{name: "self wrapping", payload: selfWrapping{}},
		{name: "panicking carrier", payload: panicky{}},
	}

	d := Decoder{Log: zaptest.NewLogger(t)}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, "", d.Decode(tc.payload))
			})
		})
	}
}

func TestDecode_InvalidUTF8IsReplaced(t *testing.T) {
	got := Decode([]byte{'o', 'k', 0xff})
	assert.Equal(t, "ok�", got)
}

func TestDecode_BestEffortStringify(t *testing.T) {
	assert.Equal(t, "42", Decode(42))
	assert.Equal(t, "true", Decode(true))
	assert.Equal(t, "named:x", Decode(named{n: "x"}))
	assert.JSONEq(t, `{"type":"game_completed"}`, Decode(map[string]any{"type": "game_completed"}))
	assert.JSONEq(t, `{"type":"game_completed"}`, Decode(map[string]string{"type": "game_completed"}))
	assert.Equal(t, "[1 2]", Decode([2]int{1, 2}))
}
