package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/andriansyah/digistore/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verified subject of a bearer ID token.
type Identity struct {
	UID   string
	Email string
	Name  string
}

// Verifier checks a bearer ID token against the identity provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// TokenVerifier validates RS256 ID tokens against the provider's
// published signing certificates, resolved by kid and cached for an
// hour.
type TokenVerifier struct {
	Issuer  string
	CertURL string
	HTTP    *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewTokenVerifier(issuer, certURL string) *TokenVerifier {
	return &TokenVerifier{
		Issuer:  issuer,
		CertURL: certURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *TokenVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, apperr.Unauthorized("missing identity token")
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, ok := t.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("token missing kid header")
		}
		return v.keyFor(ctx, kid)
	}, jwt.WithIssuer(v.Issuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, apperr.Unauthorized("invalid or expired identity token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperr.Unauthorized("invalid token claims")
	}

	email, _ := claims["email"].(string)
	if email == "" {
		return nil, apperr.Unauthorized("token carries no email")
	}
	uid, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)

	return &Identity{UID: uid, Email: email, Name: name}, nil
}

func (v *TokenVerifier) keyFor(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := time.Since(v.fetchedAt) < time.Hour
	v.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok = v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown kid %s", kid)
	}
	return key, nil
}

// refreshKeys pulls the provider's kid -> PEM certificate map.
func (v *TokenVerifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.CertURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch signing keys: %w", err)
	}
	defer resp.Body.Close()

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return fmt.Errorf("malformed signing key response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pemData := range certs {
		block, _ := pem.Decode([]byte(pemData))
		if block == nil {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			continue
		}
		if pub, ok := cert.PublicKey.(*rsa.PublicKey); ok {
			keys[kid] = pub
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("no usable signing keys at %s", v.CertURL)
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()
	return nil
}
