// Package signature implements the keyed-hash scheme shared by the payment
// gateway client and the inbound callback verifier. Both sides compute
// HMAC-SHA256 over the canonical JSON form of the payload with the signature
// field removed, so signer and verifier can never drift.
//
// Canonical form is sorted-key JSON: the payload is decoded into a generic
// value (numbers kept as literals) and re-encoded, which sorts object keys at
// every nesting level.
package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// Field is the payload key carrying the signature itself. It is always
// excluded from the signed byte range.
const Field = "signature"

var errEmptySecret = errors.New("signing secret is required")

// Sign computes the lowercase-hex HMAC-SHA256 signature for payload.
// The payload may be a struct or a map; a top-level "signature" field is
// stripped before hashing.
func Sign(secret []byte, payload any) (string, error) {
	if len(secret) == 0 {
		return "", errEmptySecret
	}
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks the signature embedded in a raw callback body against the
// recomputed value. It never panics: malformed or truncated input, a missing
// signature field, or any recomputation failure all return false (fail closed).
func Verify(secret []byte, body []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	if len(secret) == 0 || len(body) == 0 {
		return false
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var fields map[string]any
	if err := decoder.Decode(&fields); err != nil {
		return false
	}

	provided, _ := fields[Field].(string)
	if provided == "" {
		return false
	}
	delete(fields, Field)

	canonical, err := json.Marshal(fields)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(canonical)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}

// Canonicalize renders payload as sorted-key JSON with the signature field
// removed. Numeric literals survive the round trip unchanged.
func Canonicalize(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return nil, err
	}
	if m, ok := decoded.(map[string]any); ok {
		delete(m, Field)
		decoded = m
	}
	return json.Marshal(decoded)
}
