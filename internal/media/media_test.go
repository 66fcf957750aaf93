package media

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestRoomAndIdentityNames(t *testing.T) {
	if got := RoomName("abc123"); got != "call_abc123" {
		t.Errorf("RoomName = %q", got)
	}
	if got := CallerIdentity("abc123"); got != "caller_abc123" {
		t.Errorf("CallerIdentity = %q", got)
	}
	if got := AgentIdentity("abc123"); got != "agent_abc123" {
		t.Errorf("AgentIdentity = %q", got)
	}
	if got := HumanIdentity("abc123"); got != "human_abc123" {
		t.Errorf("HumanIdentity = %q", got)
	}
}

func TestTokenMinter_Mint(t *testing.T) {
	m, err := NewTokenMinter("api-key", "api-secret")
	if err != nil {
		t.Fatalf("NewTokenMinter: %v", err)
	}

	signed, err := m.CallerToken("abc123")
	if err != nil {
		t.Fatalf("CallerToken: %v", err)
	}

	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(signed, &claims, func(tok *jwt.Token) (any, error) {
		return []byte("api-secret"), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("token should be valid")
	}

	if claims.Issuer != "api-key" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
	if claims.Subject != "caller_abc123" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if claims.Grant.Room != "call_abc123" {
		t.Errorf("grant room = %q", claims.Grant.Room)
	}
	if !claims.Grant.RoomJoin || !claims.Grant.CanPublish || !claims.Grant.CanSubscribe {
		t.Errorf("grant = %+v, want full access", claims.Grant)
	}
}

func TestNewTokenMinter_Validation(t *testing.T) {
	if _, err := NewTokenMinter("", "secret"); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := NewTokenMinter("key", ""); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestRoomMetadataRoundTrip(t *testing.T) {
	meta := EncodeRoomMetadata("abc123")
	if got := CallIDFromMetadata(meta); got != "abc123" {
		t.Errorf("CallIDFromMetadata = %q, want abc123", got)
	}
}

func TestCallIDFromMetadata_Foreign(t *testing.T) {
	tests := []struct {
		name string
		meta string
	}{
		{"empty", ""},
		{"malformed", "{not json"},
		{"untagged", `{"purpose":"conference"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CallIDFromMetadata(tt.meta); got != "" {
				t.Errorf("CallIDFromMetadata(%q) = %q, want empty", tt.meta, got)
			}
		})
	}
}
