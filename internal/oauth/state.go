package oauth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/mailjohn/internal/cache"
	apperrors "github.com/dropDatabas3/mailjohn/internal/errors"
)

// NonceTTL bounds how long an issued authorization redirect stays
// consumable. Past it the user must request a fresh auth URL.
const NonceTTL = 10 * time.Minute

// StatePayload travels inside the OAuth state parameter. The wire format
// (base64url of this JSON) is an external compatibility surface: provider
// registrations and existing redirect URIs expect it.
type StatePayload struct {
	ConfigID string `json:"configId"`
	IssuedAt int64  `json:"issuedAt"`
	Nonce    string `json:"nonce,omitempty"` // anti-forgery token, Microsoft flow only
}

// EncodeState packs the configuration id (and optional nonce) into the
// state parameter.
func EncodeState(configID, nonce string) (string, error) {
	if strings.TrimSpace(configID) == "" {
		return "", apperrors.ErrOAuthState.WithDetail("configId vacío")
	}
	p := StatePayload{
		ConfigID: configID,
		IssuedAt: time.Now().Unix(),
		Nonce:    nonce,
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", apperrors.ErrInternal.WithCause(err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// DecodeState parses the state parameter as untrusted input: it came back
// through the user agent. Anything short of a well-formed payload with a
// configuration id fails.
func DecodeState(state string) (*StatePayload, error) {
	if strings.TrimSpace(state) == "" {
		return nil, apperrors.ErrOAuthState.WithDetail("state ausente")
	}
	b, err := base64.URLEncoding.DecodeString(state)
	if err != nil {
		return nil, apperrors.ErrOAuthState.WithDetail("state no es base64url").WithCause(err)
	}
	var p StatePayload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, apperrors.ErrOAuthState.WithDetail("state no es JSON válido").WithCause(err)
	}
	if strings.TrimSpace(p.ConfigID) == "" {
		return nil, apperrors.ErrOAuthState.WithDetail("el state no contiene configId")
	}
	return &p, nil
}

// StateStore issues and consumes the anti-forgery nonces the Microsoft
// flow embeds in its state. A nonce is an HS256 JWT bound to one
// configuration; its jti lives in the byte cache for NonceTTL and is
// burned on first consumption, so a replayed redirect fails.
type StateStore struct {
	cache  cache.Cache
	secret []byte
}

// NewStateStore wires the nonce store over the given cache. The secret
// signs the nonce JWTs; it is deployment-local, never shared with the
// provider.
func NewStateStore(c cache.Cache, secret []byte) *StateStore {
	return &StateStore{cache: c, secret: secret}
}

func nonceKey(jti string) string { return "oauth:nonce:" + jti }

// IssueNonce mints the anti-forgery token for configID and registers its
// jti for NonceTTL.
func (s *StateStore) IssueNonce(configID string) (string, error) {
	now := time.Now().UTC()
	jti := uuid.NewString()
	claims := jwtv5.MapClaims{
		"jti": jti,
		"cfg": configID,
		"iat": now.Unix(),
		"exp": now.Add(NonceTTL).Unix(),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := tk.SignedString(s.secret)
	if err != nil {
		return "", apperrors.ErrInternal.WithCause(err)
	}
	s.cache.Set(nonceKey(jti), []byte(configID), NonceTTL)
	return signed, nil
}

// ConsumeNonce validates the token against configID and burns the jti.
// Unknown, expired, foreign or already-consumed nonces all fail.
func (s *StateStore) ConsumeNonce(configID, token string) error {
	if strings.TrimSpace(token) == "" {
		return apperrors.ErrOAuthState.WithDetail("el state no contiene nonce")
	}
	parsed, err := jwtv5.Parse(token, func(t *jwtv5.Token) (any, error) {
		return s.secret, nil
	}, jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return apperrors.ErrOAuthState.WithDetail("nonce inválido o expirado").WithCause(err)
	}
	claims, ok := parsed.Claims.(jwtv5.MapClaims)
	if !ok {
		return apperrors.ErrOAuthState.WithDetail("nonce sin claims")
	}
	jti, _ := claims["jti"].(string)
	cfg, _ := claims["cfg"].(string)
	if jti == "" || cfg != configID {
		return apperrors.ErrOAuthState.WithDetail("el nonce no corresponde a la configuración")
	}
	stored, found := s.cache.Get(nonceKey(jti))
	if !found || string(stored) != configID {
		return apperrors.ErrOAuthState.WithDetail("nonce desconocido o ya consumido")
	}
	s.cache.Delete(nonceKey(jti))
	return nil
}
