package pair

import (
	"strings"
	"testing"
)

func TestConversationID_Commutative(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"bob", "alice"},
		{"u100", "u099"},
		{"z", "a"},
		{"same", "same"},
	}

	for _, p := range pairs {
		got := ConversationID(p[0], p[1])
		rev := ConversationID(p[1], p[0])
		if got != rev {
			t.Errorf("ConversationID(%q, %q) = %q, reversed = %q", p[0], p[1], got, rev)
		}
	}
}

func TestConversationID_Ordering(t *testing.T) {
	id := ConversationID("zoe", "adam")

	if id != "adam_zoe" {
		t.Errorf("Expected 'adam_zoe', got %q", id)
	}

	// 结果必须恰好包含一个分隔符，切分后为字典序排列的两段
	if strings.Count(id, Separator) != 1 {
		t.Errorf("Expected exactly one separator in %q", id)
	}

	a, b, ok := Participants(id)
	if !ok {
		t.Fatalf("Participants(%q) failed", id)
	}
	if a > b {
		t.Errorf("Participants not ordered: %q > %q", a, b)
	}
}

func TestStreakID_MatchesConversationID(t *testing.T) {
	if StreakID("alice", "bob") != ConversationID("alice", "bob") {
		t.Error("StreakID should use the same derivation as ConversationID")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		userId  string
		wantErr bool
	}{
		{"valid", "user-123", false},
		{"empty", "", true},
		{"contains separator", "user_123", true},
		{"only separator", "_", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.userId)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.userId, err, tt.wantErr)
			}
		})
	}
}

func TestOther(t *testing.T) {
	id := ConversationID("alice", "bob")

	if got := Other(id, "alice"); got != "bob" {
		t.Errorf("Expected 'bob', got %q", got)
	}
	if got := Other(id, "bob"); got != "alice" {
		t.Errorf("Expected 'alice', got %q", got)
	}
	if got := Other(id, "carol"); got != "" {
		t.Errorf("Expected empty for non-participant, got %q", got)
	}
	if got := Other("not-a-pair", "alice"); got != "" {
		t.Errorf("Expected empty for malformed pair id, got %q", got)
	}
}

func TestContains(t *testing.T) {
	id := ConversationID("alice", "bob")

	if !Contains(id, "alice") || !Contains(id, "bob") {
		t.Error("Expected both participants to be contained")
	}
	if Contains(id, "carol") {
		t.Error("Expected non-participant to not be contained")
	}
}
