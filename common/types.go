// Package common contains the shared value types of tossig: 20-byte external
// signer addresses, 32-byte account identities and 32-byte hashes.
package common

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"

	"github.com/tos-network/tossig/common/hexutil"
)

// Lengths in bytes.
const (
	// HashLength is the expected length of a hash.
	HashLength = 32
	// IdentityLength is the expected length of an account identity.
	IdentityLength = 32
	// AddressLength is the expected length of an external signer address.
	AddressLength = 20
)

// Hash represents the 32 byte Keccak256 hash of arbitrary data.
type Hash [HashLength]byte

// BytesToHash sets b to hash.
// If b is larger than len(h), b will be cropped from the left.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash sets byte representation of s to hash.
// If b is larger than len(h), b will be cropped from the left.
func HexToHash(s string) Hash { return BytesToHash(FromHex(s)) }

// Bytes gets the byte representation of the underlying hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex converts a hash to a hex string.
func (h Hash) Hex() string { return hexutil.Encode(h[:]) }

// String implements the stringer interface and is used also by the logger when
// doing full logging into a file.
func (h Hash) String() string { return h.Hex() }

// TerminalString implements log.TerminalStringer, formatting a string for
// console output during logging.
func (h Hash) TerminalString() string {
	return fmt.Sprintf("%x..%x", h[:3], h[29:])
}

// SetBytes sets the hash to the value of b.
// If b is larger than len(h), b will be cropped from the left.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// MarshalText returns the hex representation of h.
func (h Hash) MarshalText() ([]byte, error) {
	return hexutil.Bytes(h[:]).MarshalText()
}

// UnmarshalText parses a hash in hex syntax.
func (h *Hash) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("Hash", input, h[:])
}

// Identity is the 32 byte public identity of a ledger account. Program
// identities and record identities share this type; external signer
// addresses do not (see Address).
type Identity [IdentityLength]byte

// BytesToIdentity returns Identity with value b.
// If b is larger than len(id), b will be cropped from the left.
func BytesToIdentity(b []byte) Identity {
	var id Identity
	id.SetBytes(b)
	return id
}

// HexToIdentity returns Identity with byte values of s.
// If s is larger than len(id), s will be cropped from the left.
func HexToIdentity(s string) Identity { return BytesToIdentity(FromHex(s)) }

// IsZero reports whether the identity is all zero bytes.
func (id Identity) IsZero() bool { return id == Identity{} }

// Bytes gets the byte representation of the underlying identity.
func (id Identity) Bytes() []byte { return id[:] }

// Hash converts an identity to a hash, for use as a database or map key.
func (id Identity) Hash() Hash { return BytesToHash(id[:]) }

// Hex returns a 0x prefixed hex string representation of the identity.
func (id Identity) Hex() string { return hexutil.Encode(id[:]) }

// String implements fmt.Stringer.
func (id Identity) String() string { return id.Hex() }

// TerminalString implements log.TerminalStringer, formatting a string for
// console output during logging.
func (id Identity) TerminalString() string {
	return fmt.Sprintf("%x..%x", id[:3], id[29:])
}

// SetBytes sets the identity to the value of b.
// If b is larger than len(id), b will be cropped from the left.
func (id *Identity) SetBytes(b []byte) {
	if len(b) > len(id) {
		b = b[len(b)-IdentityLength:]
	}
	copy(id[IdentityLength-len(b):], b)
}

// MarshalText returns the hex representation of id.
func (id Identity) MarshalText() ([]byte, error) {
	return hexutil.Bytes(id[:]).MarshalText()
}

// UnmarshalText parses an identity in hex syntax.
func (id *Identity) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("Identity", input, id[:])
}

// UnmarshalJSON parses an identity in hex syntax from a JSON string.
func (id *Identity) UnmarshalJSON(input []byte) error {
	if len(input) >= 2 && input[0] == '"' && input[len(input)-1] == '"' {
		input = input[1 : len(input)-1]
	}
	return id.UnmarshalText(input)
}

// Address represents the 20 byte address of an external (Ethereum-style)
// signer, derived from the last 20 bytes of the Keccak256 hash of its
// uncompressed secp256k1 public key.
type Address [AddressLength]byte

// BytesToAddress returns Address with value b.
// If b is larger than len(a), b will be cropped from the left.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// HexToAddress returns Address with byte values of s.
// If s is larger than len(a), s will be cropped from the left.
func HexToAddress(s string) Address { return BytesToAddress(FromHex(s)) }

// IsHexAddress verifies whether a string can represent a valid hex-encoded
// address or not.
func IsHexAddress(s string) bool {
	if has0xPrefix(s) {
		s = s[2:]
	}
	return len(s) == 2*AddressLength && isHex(s)
}

// Bytes gets the byte representation of the underlying address.
func (a Address) Bytes() []byte { return a[:] }

// Hash converts an address to a hash by left-padding it with zeros.
func (a Address) Hash() Hash { return BytesToHash(a[:]) }

// Hex returns a 0x prefixed hex string representation of the address.
func (a Address) Hex() string { return hexutil.Encode(a[:]) }

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// SetBytes sets the address to the value of b.
// If b is larger than len(a), b will be cropped from the left.
func (a *Address) SetBytes(b []byte) {
	if len(b) > len(a) {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// MarshalText returns the hex representation of a.
func (a Address) MarshalText() ([]byte, error) {
	return hexutil.Bytes(a[:]).MarshalText()
}

// UnmarshalText parses an address in hex syntax.
func (a *Address) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("Address", input, a[:])
}

// UnmarshalJSON parses an address in hex syntax from a JSON string.
func (a *Address) UnmarshalJSON(input []byte) error {
	if len(input) >= 2 && input[0] == '"' && input[len(input)-1] == '"' {
		input = input[1 : len(input)-1]
	}
	return a.UnmarshalText(input)
}

// Value implements valuer for database/sql.
func (a Address) Value() (driver.Value, error) {
	return a[:], nil
}

// FromHex returns the bytes represented by the hexadecimal string s.
// s may be prefixed with "0x".
func FromHex(s string) []byte {
	if has0xPrefix(s) {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return Hex2Bytes(s)
}

// CopyBytes returns an exact copy of the provided bytes.
func CopyBytes(b []byte) (copiedBytes []byte) {
	if b == nil {
		return nil
	}
	copiedBytes = make([]byte, len(b))
	copy(copiedBytes, b)
	return
}

// TrimLeftZeroes returns a subslice of s without leading zeroes.
func TrimLeftZeroes(s []byte) []byte {
	idx := 0
	for ; idx < len(s); idx++ {
		if s[idx] != 0 {
			break
		}
	}
	return s[idx:]
}

// Hex2Bytes returns the bytes represented by the hexadecimal string str.
func Hex2Bytes(str string) []byte {
	h, _ := hex.DecodeString(str)
	return h
}

func has0xPrefix(str string) bool {
	return len(str) >= 2 && str[0] == '0' && (str[1] == 'x' || str[1] == 'X')
}

func isHexCharacter(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func isHex(str string) bool {
	if len(str)%2 != 0 {
		return false
	}
	for _, c := range []byte(str) {
		if !isHexCharacter(c) {
			return false
		}
	}
	return true
}
