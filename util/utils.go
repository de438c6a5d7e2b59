package util

import (
	"crypto/rand"

	"github.com/ethereum/go-ethereum/common"
)

// RandomBytes generates a random byte slice of length n.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	return b
}

// RandomAddress returns a random 20-byte address, useful for tests.
func RandomAddress() common.Address {
	return common.BytesToAddress(RandomBytes(common.AddressLength))
}

// TrimHex trims the '0x' prefix from a hex string.
func TrimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
