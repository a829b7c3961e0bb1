package exports

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ContentHash fingerprints an export payload. The hash covers the canonical
// JSON form of {content, metadata}: UTF-8, keys sorted, no insignificant
// whitespace, so map ordering and struct field order never change the digest.
func ContentHash(content, metadata interface{}) (string, error) {
	canonical, err := canonicalJSON(map[string]interface{}{
		"content":  content,
		"metadata": metadata,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON round-trips v through a generic value first. encoding/json
// emits map keys in sorted order, so normalizing structs into maps gives a
// stable byte sequence regardless of how the input was assembled.
func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
