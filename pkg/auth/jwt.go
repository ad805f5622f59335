package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims the teller reads from validated tokens.
const (
	claimEVMAddress   = "evm_address"
	claimCapabilities = "capabilities"
)

// JWTValidator checks bearer tokens against an RSA JWKS endpoint. Keys are
// fetched lazily and cached by kid; an unknown kid triggers one refresh
// before the token is rejected.
type JWTValidator struct {
	jwksURL string
	issuer  string

	keysMu sync.RWMutex
	keys   map[string]*rsa.PublicKey

	client *http.Client
}

// jwksDocument mirrors the JSON Web Key Set wire format, reduced to the
// RSA fields the validator consumes.
type jwksDocument struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// NewJWTValidator builds a validator for tokens issued against the given
// JWKS endpoint. An empty issuer disables issuer checking.
func NewJWTValidator(jwksURL, issuer string) *JWTValidator {
	return &JWTValidator{
		jwksURL: jwksURL,
		issuer:  issuer,
		keys:    make(map[string]*rsa.PublicKey),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// IsConfigured reports whether a JWKS endpoint is set.
func (v *JWTValidator) IsConfigured() bool {
	return v.jwksURL != ""
}

// ValidateToken parses and verifies a token and returns its claims.
func (v *JWTValidator) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, v.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}

	if v.issuer != "" {
		iss, ok := claims["iss"].(string)
		if !ok || iss != v.issuer {
			return nil, fmt.Errorf("invalid issuer")
		}
	}

	return claims, nil
}

// ValidateActor validates a JWT token and maps its claims to an Actor.
// The evm_address and capabilities claims are optional; a token without
// them authenticates an actor that can read but not administer.
func (v *JWTValidator) ValidateActor(tokenString string) (*Actor, error) {
	claims, err := v.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	actor := &Actor{}
	if sub, ok := claims["sub"].(string); ok {
		actor.Subject = sub
	}
	if addr, ok := claims[claimEVMAddress].(string); ok {
		if !ValidateEVMAddress(addr) {
			return nil, fmt.Errorf("invalid %s claim", claimEVMAddress)
		}
		actor.EVMAddress = common.HexToAddress(addr)
	}
	if raw, ok := claims[claimCapabilities].([]interface{}); ok {
		for _, c := range raw {
			if name, ok := c.(string); ok {
				actor.Capabilities = append(actor.Capabilities, Capability(name))
			}
		}
	}

	return actor, nil
}

// keyFunc resolves the verification key named by a token header.
func (v *JWTValidator) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, fmt.Errorf("missing kid in token header")
	}

	v.keysMu.RLock()
	key, exists := v.keys[kid]
	v.keysMu.RUnlock()
	if exists {
		return key, nil
	}

	// Unknown kid, most likely a rotated key. Refresh once.
	if err := v.refreshKeys(); err != nil {
		return nil, err
	}

	v.keysMu.RLock()
	key, exists = v.keys[kid]
	v.keysMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("key not found: %s", kid)
	}

	return key, nil
}

// refreshKeys fetches the JWKS document and folds its RSA keys into the
// cache.
func (v *JWTValidator) refreshKeys() error {
	if v.jwksURL == "" {
		return fmt.Errorf("JWKS URL not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode JWKS: %w", err)
	}

	v.keysMu.Lock()
	defer v.keysMu.Unlock()

	for _, key := range doc.Keys {
		if key.Kty != "RSA" {
			continue
		}
		pubKey, err := rsaPublicKey(key.N, key.E)
		if err != nil {
			continue // skip unparseable keys
		}
		v.keys[key.Kid] = pubKey
	}

	return nil
}

// rsaPublicKey assembles an RSA public key from the base64url-encoded JWK
// modulus and exponent fields.
func rsaPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := int(new(big.Int).SetBytes(eBytes).Int64())

	return &rsa.PublicKey{N: n, E: e}, nil
}
