package primitives

import (
	"sox-verified-go/types"
)

// DescriptionDigest computes the value a buyer and vendor agree on for the
// plaintext. It chains one SHA-256 compression per blockSize chunk, each chunk
// right-zero-padded to 64 bytes, starting from InitialDigest. There is no
// length suffix, so this is NOT sha256(plaintext). Empty plaintext is a single
// empty chunk.
func DescriptionDigest(plaintext []byte, blockSize int) (types.Hash, error) {
	if blockSize <= 0 || blockSize > SHA256BlockSize {
		return types.ZeroHash, types.NewShapeMismatchError("description block size", SHA256BlockSize, blockSize)
	}
	digest := InitialDigest()
	off := 0
	for {
		end := off + blockSize
		if end > len(plaintext) {
			end = len(plaintext)
		}
		var block [SHA256BlockSize]byte
		copy(block[:], plaintext[off:end])
		digest = Compress(digest, &block)
		off = end
		if off >= len(plaintext) {
			return digest, nil
		}
	}
}
