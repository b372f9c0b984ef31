package logger

import (
	"strings"
	"testing"
)

func TestLooksLikeJID(t *testing.T) {
	cases := map[string]bool{
		"1234567890@s.whatsapp.net": true,
		"12345-67890@g.us":          true,
		"status@broadcast":          true,
		"plain text":                false,
		"user@example.com":          false,
		"":                          false,
	}
	for value, want := range cases {
		if got := looksLikeJID(value); got != want {
			t.Fatalf("%q: want %v got %v", value, want, got)
		}
	}
}

func TestHashValueStableAndShort(t *testing.T) {
	a := hashValue("1234567890@s.whatsapp.net")
	b := hashValue("1234567890@s.whatsapp.net")
	if a != b {
		t.Fatalf("hash must be stable: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "hash:") || len(a) > len("hash:")+12 {
		t.Fatalf("unexpected hash shape: %q", a)
	}
	if a == hashValue("other@s.whatsapp.net") {
		t.Fatalf("distinct values should hash differently")
	}
	if hashValue("") != "" {
		t.Fatalf("empty value stays empty")
	}
}

func TestIsRedactKey(t *testing.T) {
	for _, key := range []string{"api_key", "openai_api_key", "password", "client_secret", "auth_token"} {
		if !isRedactKey(key) {
			t.Fatalf("%q should be redacted", key)
		}
	}
	for _, key := range []string{"chat_name", "count", "model"} {
		if isRedactKey(key) {
			t.Fatalf("%q should not be redacted", key)
		}
	}
}
