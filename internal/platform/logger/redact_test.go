package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsMasksCredentials(t *testing.T) {
	got := sanitizeKVs([]interface{}{
		"api_key", "sk-123",
		"X-Subscription-Token", "brave-abc",
		"model", "Qwen/Qwen3-32B-fast",
		"header", "Bearer abc.def",
	})
	want := []interface{}{
		"api_key", redacted,
		"X-Subscription-Token", redacted,
		"model", "Qwen/Qwen3-32B-fast",
		"header", redacted,
	}
	if len(got) != len(want) {
		t.Fatalf("len: want=%d got=%d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kv[%d]: want=%v got=%v", i, want[i], got[i])
		}
	}
}

func TestSanitizeKVsHashesIdentifiers(t *testing.T) {
	got := sanitizeKVs([]interface{}{"user_id", "42"})
	s, ok := got[1].(string)
	if !ok || !strings.HasPrefix(s, "hash:") || len(s) != len("hash:")+12 {
		t.Fatalf("user_id: want hashed value got=%v", got[1])
	}
}

func TestSanitizeKVsNestedMap(t *testing.T) {
	got := sanitizeKVs([]interface{}{"payload", map[string]interface{}{"authorization": "x", "q": "berlin"}})
	m, ok := got[1].(map[string]interface{})
	if !ok {
		t.Fatalf("payload: want map got=%T", got[1])
	}
	if m["authorization"] != redacted {
		t.Fatalf("authorization: want=%q got=%v", redacted, m["authorization"])
	}
	if m["q"] != "berlin" {
		t.Fatalf("q: want=%q got=%v", "berlin", m["q"])
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	got := sanitizeKVs([]interface{}{"model", "m", "dangling"})
	if len(got) != 3 || got[2] != "dangling" {
		t.Fatalf("odd kv: got=%v", got)
	}
}
