package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Manifest errors.
var (
	// ErrManifestSecretRequired indicates a signing secret was not provided.
	ErrManifestSecretRequired = errors.New("transport: manifest secret is required")

	// ErrManifestInvalid indicates the manifest token is malformed or its
	// signature does not verify.
	ErrManifestInvalid = errors.New("transport: invalid manifest")

	// ErrManifestDigestMismatch indicates the manifest verified but its
	// digest claim does not match the body it was presented alongside —
	// the body was altered, truncated, or swapped in transit.
	ErrManifestDigestMismatch = errors.New("transport: manifest digest does not match result body")
)

// ManifestClaims carries a completed result batch's provenance: who
// produced it and a digest of the exact CSV body it accompanies. This is a
// provenance check, not an authentication system — the engine's Non-goals
// still exclude auth/authz as a feature; nothing here grants access to
// anything, it only lets a host notice a tampered or mismatched payload.
type ManifestClaims struct {
	WorkerID string `json:"worker_id"`
	Digest   string `json:"digest"` // hex-encoded SHA-256 of the CSV body

	jwt.RegisteredClaims
}

// ManifestSigner signs and verifies JWT manifests over completed result
// batches shipped from a worker to a host.
type ManifestSigner struct {
	secret   []byte
	workerID string
}

// NewManifestSigner constructs a signer. secret must be non-empty; workerID
// identifies the worker instance in every manifest it signs.
func NewManifestSigner(secret, workerID string) (*ManifestSigner, error) {
	if secret == "" {
		return nil, ErrManifestSecretRequired
	}
	return &ManifestSigner{secret: []byte(secret), workerID: workerID}, nil
}

// Sign produces a compact JWT (HS256) whose digest claim is the SHA-256 of
// body, hex-encoded.
func (s *ManifestSigner) Sign(body []byte) (string, error) {
	sum := sha256.Sum256(body)
	now := time.Now()
	claims := ManifestClaims{
		WorkerID: s.workerID,
		Digest:   hex.EncodeToString(sum[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   s.workerID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks tokenString's signature and confirms its digest claim
// matches body's own SHA-256 digest.
func (s *ManifestSigner) Verify(tokenString string, body []byte) (*ManifestClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &ManifestClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrManifestInvalid, token.Method)
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}

	claims, ok := parsed.Claims.(*ManifestClaims)
	if !ok || !parsed.Valid {
		return nil, ErrManifestInvalid
	}

	sum := sha256.Sum256(body)
	if claims.Digest != hex.EncodeToString(sum[:]) {
		return nil, ErrManifestDigestMismatch
	}

	return claims, nil
}
