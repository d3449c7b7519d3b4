package tripay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"sort"
	"strings"
)

// GenerateSignature computes the HMAC-SHA512 the gateway expects: the
// payload keys are sorted, joined as key=value&key=value, and signed with
// the merchant's private key.
func GenerateSignature(payload map[string]string, privateKey []byte) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+payload[k])
	}

	mac := hmac.New(sha512.New, privateKey)
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallback recomputes the signature over the callback payload
// (minus the signature field itself) and compares it with the supplied
// one. The same shared secret signs outbound requests and verifies
// inbound callbacks.
func VerifyCallback(payload map[string]string, signature string, privateKey []byte) bool {
	if signature == "" {
		return false
	}
	data := make(map[string]string, len(payload))
	for k, v := range payload {
		if k == "signature" {
			continue
		}
		data[k] = v
	}
	expected := GenerateSignature(data, privateKey)
	return hmac.Equal([]byte(expected), []byte(signature))
}
