// Package securehash is the canonical form + HMAC layer shared by every
// message exchanged with the payment gateway. Build and verify must run
// through the same Canonicalize, otherwise no signature ever matches.
package securehash

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"net/url"
	"sort"
	"strings"

	"dormitory_backend/internals/helpers/apperr"
)

type Algorithm string

const (
	SHA512 Algorithm = "SHA512"
	SHA256 Algorithm = "SHA256"
)

var ErrUnsupportedAlgorithm = apperr.Validation("unsupported_hash_algorithm", "unsupported hash algorithm")

// ParseAlgorithm accepts "SHA512", "sha-512", "HmacSHA512" and the like.
func ParseAlgorithm(s string) (Algorithm, error) {
	n := strings.ToUpper(strings.TrimSpace(s))
	n = strings.TrimPrefix(n, "HMAC")
	n = strings.ReplaceAll(n, "-", "")
	switch Algorithm(n) {
	case SHA512:
		return SHA512, nil
	case SHA256:
		return SHA256, nil
	}
	return "", ErrUnsupportedAlgorithm.WithField("algorithm").WithDetail("%q", s)
}

func (a Algorithm) newHash() (func() hash.Hash, error) {
	switch a {
	case SHA512:
		return sha512.New, nil
	case SHA256:
		return sha256.New, nil
	}
	return nil, ErrUnsupportedAlgorithm.WithDetail("%q", string(a))
}

// Params is a flat parameter set. A key that is absent is "null"; an empty
// string is a present, empty value and takes part in the signature.
type Params map[string]string

// SetOptional sets key only when v is non-nil.
func (p Params) SetOptional(key string, v *string) {
	if v != nil {
		p[key] = *v
	}
}

// Without returns a copy of p minus the given keys.
func (p Params) Without(keys ...string) Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// FromValues flattens url.Values keeping the first value per key.
func FromValues(v url.Values) Params {
	out := make(Params, len(v))
	for k, vals := range v {
		if len(vals) == 0 {
			continue
		}
		out[k] = vals[0]
	}
	return out
}

// Canonicalize sorts keys by byte order and query-encodes them
// (space as '+'), joined with '&'.
func Canonicalize(p Params) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[k]))
	}
	return b.String()
}

// Sign returns the lowercase hex HMAC of canonical under secret.
func Sign(secret, canonical string, alg Algorithm) (string, error) {
	newHash, err := alg.newHash()
	if err != nil {
		return "", err
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the HMAC and compares it in constant time. Any
// malformed input simply yields false.
func Verify(secret, canonical string, alg Algorithm, received string) bool {
	want, err := hex.DecodeString(strings.TrimSpace(received))
	if err != nil || len(want) == 0 {
		return false
	}
	newHash, err := alg.newHash()
	if err != nil {
		return false
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write([]byte(canonical))
	return hmac.Equal(mac.Sum(nil), want)
}

// JoinOrdered builds the pipe-joined payload used by the query and refund
// APIs, where field order is part of the contract.
func JoinOrdered(values ...string) string {
	return strings.Join(values, "|")
}
