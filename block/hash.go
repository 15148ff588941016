package block

import "encoding/hex"

const HashLength = 32

// Hash is the content-derived block identity.
type Hash [HashLength]byte

// BytesToHash converts b to a Hash, cropping from the left if oversized.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// SetBytes sets the hash to the value of b, left-padding short input.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Short returns an abbreviated form for log lines.
func (h Hash) Short() string {
	return "0x" + hex.EncodeToString(h[:4])
}
