package capsule

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain-separation prefixes keep a leaf hash from ever colliding with an
// interior node hash.
const (
	merkleLeafPrefix = "leaf:"
	merkleNodePrefix = "node:"
	merkleEmptyInput = "merkle:empty"
)

// EmptyMerkleRoot is the fixed sentinel returned for a zero-leaf input.
var EmptyMerkleRoot = sha256Hex(merkleEmptyInput)

// MerkleRoot computes a sha256 Merkle root over an ordered leaf list. Each
// leaf is hashed with the "leaf:" prefix, then adjacent pairs combine under
// the "node:" prefix, duplicating the trailing element on odd-length levels,
// until one hash remains. Leaf order matters: the root commits to the exact
// sequence, not just the set.
func MerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return EmptyMerkleRoot
	}
	level := make([]string, len(leaves))
	for i, leaf := range leaves {
		level[i] = sha256Hex(merkleLeafPrefix + leaf)
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, sha256Hex(merkleNodePrefix+level[i]+level[i+1]))
		}
		level = next
	}
	return level[0]
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
