package events

import (
	"strings"

	"github.com/nchat/trustplane/internal/ids"
)

// ComputeEventSignature computes the wire signature for a raw webhook body:
// "sha256=" + lowercase-hex(HMAC-SHA256(secret, body)).
func ComputeEventSignature(body []byte, secret string) string {
	return "sha256=" + ids.HMACSHA256Hex([]byte(secret), body)
}

// VerifyEventSignature recomputes the HMAC over body and compares it to sig
// in constant time. Signatures without the "sha256=" prefix are rejected.
func VerifyEventSignature(body []byte, sig string, secret string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(sig, prefix) {
		return false
	}
	expected := ComputeEventSignature(body, secret)
	return ids.ConstantTimeEqualString(sig, expected)
}
