package transform

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm selects the digest used to anonymize client addresses.
type HashAlgorithm int

const (
	HashMD5 HashAlgorithm = iota
	HashBLAKE2b256
)

func (h HashAlgorithm) String() string {
	switch h {
	case HashMD5:
		return "md5"
	case HashBLAKE2b256:
		return "blake2b-256"
	default:
		return "unknown"
	}
}

// ParseHashAlgorithm maps a configuration name to a HashAlgorithm.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch strings.ToLower(s) {
	case "", "md5":
		return HashMD5, nil
	case "blake2b", "blake2b-256", "blake2b256":
		return HashBLAKE2b256, nil
	default:
		return HashMD5, fmt.Errorf("unknown hash algorithm %q", s)
	}
}

// AddressAnonymizer replaces an address with a one-way digest of its UTF-8 bytes.
type AddressAnonymizer func(addr string) string

// NewAddressAnonymizer returns an anonymizer for alg. Unknown values fall back to MD5.
func NewAddressAnonymizer(alg HashAlgorithm) AddressAnonymizer {
	switch alg {
	case HashBLAKE2b256:
		return anonymizeBLAKE2b
	default:
		return AnonymizeAddress
	}
}

// AnonymizeAddress returns the base64-encoded MD5 digest of addr.
// This is weak anonymization: MD5 over the IPv4 space is trivially reversible
// by enumeration. It only keeps raw addresses out of the output.
func AnonymizeAddress(addr string) string {
	sum := md5.Sum([]byte(addr))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func anonymizeBLAKE2b(addr string) string {
	sum := blake2b.Sum256([]byte(addr))
	return base64.StdEncoding.EncodeToString(sum[:])
}
