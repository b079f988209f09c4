package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm used for both signing and verification.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519 keys. This is the default.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with an HMAC-SHA256 shared secret.
	MethodHS256 SigningMethod = "hs256"
)

const (
	// DefaultAccessTTL is applied when Config.AccessTTL is zero.
	DefaultAccessTTL = time.Hour
	// DefaultRefreshTTL is applied when Config.RefreshTTL is zero.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	minHMACKeyBytes = 32
	maxLeeway       = 2 * time.Minute
)

var (
	// ErrMalformed is returned when a token cannot be parsed or carries invalid claims.
	ErrMalformed = errors.New("token malformed")
	// ErrSignatureInvalid is returned when the signature does not verify under any configured key.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrExpired is returned when a correctly signed token is past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrUnknownKind is returned when the "typ" claim is missing or unrecognized.
	ErrUnknownKind = errors.New("token kind unknown")
	// ErrWrongKind is returned by [Manager.DecodeAs] when the token is of the other kind.
	ErrWrongKind = errors.New("token kind mismatch")
	// ErrNoSigningKey is returned when a verify-only manager is asked to issue a token.
	ErrNoSigningKey = errors.New("signing key not configured")
)

// Config defines token lifetimes, keys, and verification strictness.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte

	// Now overrides the clock used for issuance and expiry checks.
	Now func() time.Time
}

// Subject is the identity embedded into issued tokens.
type Subject struct {
	PrincipalID string
	Role        string
	SessionID   string
}

// Claims is the decoded, verified content of a token.
type Claims struct {
	ID          string
	PrincipalID string
	Role        string
	SessionID   string
	Kind        Kind
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type wireClaims struct {
	Role      string `json:"role"`
	SessionID string `json:"sid,omitempty"`
	Type      string `json:"typ"`
	jwt.RegisteredClaims
}

// Manager issues and verifies access and refresh tokens. It holds no mutable
// state and is safe for concurrent use.
type Manager struct {
	config Config
	method jwt.SigningMethod
	parser *jwt.Parser
}

// NewManager validates cfg and returns a ready [Manager].
//
// NewManager may return an error when lifetimes, leeway, or key material are invalid.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access TTL must be shorter than refresh TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodEd25519
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{config: cfg}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACKeyBytes {
			return nil, fmt.Errorf("hs256 requires a secret of at least %d bytes", minHMACKeyBytes)
		}
		m.method = jwt.SigningMethodHS256
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			if len(cfg.PublicKey) == 0 {
				m.config.PublicKey = priv.Public().(ed25519.PublicKey)
			}
		}
		if len(m.config.PublicKey) > 0 {
			if _, err := parseEdPublicKey(m.config.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(m.config.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		m.method = jwt.SigningMethodEdDSA
	default:
		return nil, errors.New("unsupported signing method")
	}

	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		if _, err := m.keyBytesToVerifyKey(key); err != nil {
			return nil, fmt.Errorf("invalid verify key for kid %q: %w", kid, err)
		}
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(options...)

	return m, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// Algorithm returns the JWS alg header value produced by this manager.
func (m *Manager) Algorithm() string { return m.method.Alg() }

// IssueAccess signs a new access token for sub and returns it with its expiry.
func (m *Manager) IssueAccess(sub Subject) (string, time.Time, error) {
	return m.issue(KindAccess, sub)
}

// IssueRefresh signs a new refresh token for sub and returns it with its expiry.
func (m *Manager) IssueRefresh(sub Subject) (string, time.Time, error) {
	return m.issue(KindRefresh, sub)
}

func (m *Manager) issue(kind Kind, sub Subject) (string, time.Time, error) {
	if sub.PrincipalID == "" {
		return "", time.Time{}, errors.New("subject principal id required")
	}
	if sub.Role == "" {
		return "", time.Time{}, errors.New("subject role required")
	}

	var ttl time.Duration
	switch kind {
	case KindAccess:
		ttl = m.config.AccessTTL
	case KindRefresh:
		ttl = m.config.RefreshTTL
	default:
		return "", time.Time{}, ErrUnknownKind
	}

	now := m.config.Now()
	expiresAt := now.Add(ttl)

	claims := wireClaims{
		Role:      sub.Role,
		SessionID: sub.SessionID,
		Type:      kind.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   sub.PrincipalID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signKey, err := m.getSignKey()
	if err != nil {
		return "", time.Time{}, err
	}

	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing %s token: %w", kind, err)
	}

	// NumericDate truncates to whole seconds; report what the token carries.
	return signed, claims.ExpiresAt.Time, nil
}

// Validate reports whether token is well formed, correctly signed, unexpired,
// and of a known kind. It never panics and has no side effects.
func (m *Manager) Validate(token string) bool {
	_, err := m.Decode(token)
	return err == nil
}

// IsRefresh reports whether token is a valid refresh token.
func (m *Manager) IsRefresh(token string) bool {
	_, err := m.DecodeAs(token, KindRefresh)
	return err == nil
}

// Decode verifies token and returns its claims. The error is one of
// [ErrMalformed], [ErrSignatureInvalid], [ErrExpired] or [ErrUnknownKind]
// (possibly wrapping the parser's own cause).
func (m *Manager) Decode(token string) (*Claims, error) {
	if m == nil || m.parser == nil {
		return nil, ErrMalformed
	}
	if token == "" {
		return nil, ErrMalformed
	}

	parsed, err := m.parser.ParseWithClaims(token, &wireClaims{}, m.keyFunc)
	if err != nil {
		return nil, classify(err)
	}

	wc, ok := parsed.Claims.(*wireClaims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if wc.Subject == "" || wc.Role == "" || wc.IssuedAt == nil || wc.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing required claims", ErrMalformed)
	}

	kind, err := parseKind(wc.Type)
	if err != nil {
		return nil, err
	}

	return &Claims{
		ID:          wc.ID,
		PrincipalID: wc.Subject,
		Role:        wc.Role,
		SessionID:   wc.SessionID,
		Kind:        kind,
		IssuedAt:    wc.IssuedAt.Time,
		ExpiresAt:   wc.ExpiresAt.Time,
	}, nil
}

// DecodeAs is [Manager.Decode] restricted to one kind. A verified token of
// the other kind yields [ErrWrongKind].
func (m *Manager) DecodeAs(token string, want Kind) (*Claims, error) {
	if !want.Valid() {
		return nil, ErrUnknownKind
	}
	claims, err := m.Decode(token)
	if err != nil {
		return nil, err
	}
	if claims.Kind != want {
		return nil, ErrWrongKind
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func (m *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(m.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return m.keyBytesToVerifyKey(key)
	}

	if m.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return m.getVerifyKey()
}

func (m *Manager) getSignKey() (interface{}, error) {
	if len(m.config.PrivateKey) == 0 {
		return nil, ErrNoSigningKey
	}
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) getVerifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func (m *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		if len(key) < minHMACKeyBytes {
			return nil, errors.New("hs256 verify key too short")
		}
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
