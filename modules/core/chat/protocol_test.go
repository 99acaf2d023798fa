package chat

import (
	"errors"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    EnvelopeType
		wantErr bool
	}{
		{"stream", `{"type":"stream","message":{"id":"m1","kind":"assistant","content":"hi"}}`, EnvelopeStream, false},
		{"final", `{"type":"final","session":{"id":"s1","title":"t"}}`, EnvelopeFinal, false},
		{"error", `{"type":"error","content":"boom"}`, EnvelopeError, false},
		{"malformed", `{"type":`, "", true},
		{"stream without message", `{"type":"stream"}`, "", true},
		{"final without id", `{"type":"final","session":{}}`, "", true},
		{"unknown type", `{"type":"partial"}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, ErrProtocol) {
					t.Fatalf("error = %v, want ErrProtocol", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.Type != tt.want {
				t.Errorf("Type = %s, want %s", env.Type, tt.want)
			}
		})
	}
}

func TestDecodeEnvelopeEmptyErrorContent(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"error"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Content == "" {
		t.Errorf("empty error content should get a default message")
	}
}
