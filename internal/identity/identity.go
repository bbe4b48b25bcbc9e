package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ResolveAddress picks the client address for a request: the first value of
// the forwarding header when present, else the socket address. Values are
// not validated as IPs.
func ResolveAddress(forwarded, socket string) string {
	if forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return socket
}

// HashIdentity returns the hex SHA-256 of salt followed by address.
func HashIdentity(address string, salt Salt) string {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(address))
	return hex.EncodeToString(h.Sum(nil))
}
