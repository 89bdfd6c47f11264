package primitives

import (
	"crypto/aes"
	"math/big"

	"sox-verified-go/types"
)

const (
	// AESKeySize is the AES-128 key length accepted by the AESCTR gate.
	AESKeySize = 16
	// AESBlockSize is the counter block width.
	AESBlockSize = aes.BlockSize
)

var counterModulus = new(big.Int).Lsh(big.NewInt(1), 8*AESBlockSize)

// CTRBlock XORs block with the AES-CTR keystream starting at counter.
// Keystream block j is AES_key((counter + j) mod 2^128). The same call
// encrypts and decrypts; the output has the length of block.
func CTRBlock(key, block, counter []byte) ([]byte, error) {
	if len(key) != AESKeySize {
		return nil, types.NewShapeMismatchError("aes key", AESKeySize, len(key))
	}
	if len(counter) > WordSize {
		return nil, types.NewShapeMismatchError("aes counter", WordSize, len(counter))
	}
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	ctr := new(big.Int).SetBytes(counter)
	ctr.Mod(ctr, counterModulus)
	one := big.NewInt(1)

	out := make([]byte, len(block))
	var ctrBlock, stream [AESBlockSize]byte
	for off := 0; off < len(block); off += AESBlockSize {
		ctr.FillBytes(ctrBlock[:])
		c.Encrypt(stream[:], ctrBlock[:])
		end := off + AESBlockSize
		if end > len(block) {
			end = len(block)
		}
		for i := off; i < end; i++ {
			out[i] = block[i] ^ stream[i-off]
		}
		ctr.Add(ctr, one)
		if ctr.Cmp(counterModulus) >= 0 {
			ctr.Sub(ctr, counterModulus)
		}
	}
	return out, nil
}

// ctrOperands is the AESCTR gate: operands are (key, block, counter).
func ctrOperands(operands [][]byte) ([]byte, error) {
	if err := checkArity(OpAESCTR, operands, 3); err != nil {
		return nil, err
	}
	return CTRBlock(operands[0], operands[1], operands[2])
}
