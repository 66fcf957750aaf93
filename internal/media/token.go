package media

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long a room access token stays valid. Long enough to
// cover a full support call with margin.
const TokenTTL = 6 * time.Hour

// Grant is the room permission claim embedded in an access token,
// mirroring what the media transport expects under the "video" claim.
type Grant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

// tokenClaims is the full JWT claim set for a room access token.
type tokenClaims struct {
	jwt.RegisteredClaims
	Grant Grant `json:"video"`
}

// TokenMinter issues room-scoped access tokens signed with the transport
// API secret. Both the caller widget and human-agent console exchange
// these tokens directly with the transport; this service only mints them.
type TokenMinter struct {
	apiKey string
	secret []byte
	ttl    time.Duration
}

// NewTokenMinter creates a minter for the given transport API key pair.
func NewTokenMinter(apiKey, apiSecret string) (*TokenMinter, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("media: api key and secret are required")
	}
	return &TokenMinter{apiKey: apiKey, secret: []byte(apiSecret), ttl: TokenTTL}, nil
}

// Mint issues a token granting identity the given permissions in room.
func (m *TokenMinter) Mint(room, identity string, canPublish, canSubscribe bool) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.apiKey,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Grant: Grant{
			Room:         room,
			RoomJoin:     true,
			CanPublish:   canPublish,
			CanSubscribe: canSubscribe,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("media: sign token: %w", err)
	}
	return signed, nil
}

// CallerToken grants a caller full publish/subscribe access to the room.
func (m *TokenMinter) CallerToken(callID string) (string, error) {
	return m.Mint(RoomName(callID), CallerIdentity(callID), true, true)
}

// AgentToken grants the automated agent full access to the room.
func (m *TokenMinter) AgentToken(callID string) (string, error) {
	return m.Mint(RoomName(callID), AgentIdentity(callID), true, true)
}

// HumanToken grants a human agent full access to the room on handoff.
func (m *TokenMinter) HumanToken(callID string) (string, error) {
	return m.Mint(RoomName(callID), HumanIdentity(callID), true, true)
}
