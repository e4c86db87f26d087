// Package fingerprint computes stable digests of generation inputs.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Size is the length of a hex encoded fingerprint.
const Size = sha256.Size * 2

// Of returns the hex sha256 of the canonical JSON form of input.
//
// The input is first decoded into generic maps so that object keys are emitted in sorted order;
// the digest therefore depends on field names and values, never on declaration order.
func Of(input any) (string, error) {
	canonical, err := Canonical(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Canonical renders input as compact JSON with sorted object keys.
func Canonical(input any) ([]byte, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: marshal input: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("fingerprint: normalise input: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("fingerprint: encode canonical form: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
