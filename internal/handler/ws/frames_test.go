package ws

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestParseInboundValidMessage(t *testing.T) {
	f, err := parseInbound([]byte(`{"type":"message","content":"hello"}`))
	if err != nil {
		t.Fatalf("parseInbound err: %v", err)
	}
	if f.Type != "message" || f.Content == nil || *f.Content != "hello" {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestParseInboundValidPing(t *testing.T) {
	f, err := parseInbound([]byte(`{"type":"ping"}`))
	if err != nil {
		t.Fatalf("parseInbound err: %v", err)
	}
	if f.Type != "ping" {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestParseInboundOversized(t *testing.T) {
	content := bytes.Repeat([]byte("a"), MaxFrameBytes+1)
	raw, _ := json.Marshal(map[string]string{"type": "message", "content": string(content)})

	if _, err := parseInbound(raw); err != errPayloadTooLarge {
		t.Fatalf("err = %v, want errPayloadTooLarge", err)
	}
}

func TestParseInboundMalformed(t *testing.T) {
	if _, err := parseInbound([]byte(`{not json`)); err != errInvalidJSON {
		t.Fatalf("err = %v, want errInvalidJSON", err)
	}
}

func TestParseInboundSchemaViolations(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"unknown type", `{"type":"subscribe"}`},
		{"missing type", `{"content":"hi"}`},
		{"message without content", `{"type":"message"}`},
		{"message with empty content", `{"type":"message","content":""}`},
		{"ping with content", `{"type":"ping","content":"x"}`},
	}
	for _, tc := range cases {
		if _, err := parseInbound([]byte(tc.raw)); err != errInvalidSchema {
			t.Fatalf("%s: err = %v, want errInvalidSchema", tc.name, err)
		}
	}
}

func TestParseInboundContentTooLong(t *testing.T) {
	long := string(bytes.Repeat([]byte("a"), maxContentLen+1))
	raw, _ := json.Marshal(map[string]string{"type": "message", "content": long})

	if _, err := parseInbound(raw); err != errInvalidSchema {
		t.Fatalf("err = %v, want errInvalidSchema", err)
	}
}

func TestParseInboundContentAtLimit(t *testing.T) {
	limit := string(bytes.Repeat([]byte("a"), maxContentLen))
	raw, _ := json.Marshal(map[string]string{"type": "message", "content": limit})

	if _, err := parseInbound(raw); err != nil {
		t.Fatalf("content at limit rejected: %v", err)
	}
}

func TestHistoryFrameNeverNil(t *testing.T) {
	data, err := json.Marshal(newHistoryFrame("s1", nil))
	if err != nil {
		t.Fatalf("marshal err: %v", err)
	}
	if !bytes.Contains(data, []byte(`"history":[]`)) {
		t.Fatalf("empty history must serialize as [], got %s", data)
	}
}
