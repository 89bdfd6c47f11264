package client

import (
	"crypto/rand"
	"io"

	"sox-verified-go/circuit"
	"sox-verified-go/primitives"
)

// EncryptionBackend is how a vendor keys and encrypts the file it sells.
// Ciphertexts must be decryptable by the exchange circuit, so every backend
// produces whole-file AES-CTR under circuit.Key.
type EncryptionBackend interface {
	Keygen() (circuit.Key, error)
	Encrypt(plaintext []byte, key circuit.Key) ([]byte, error)
	Decrypt(ciphertext []byte, key circuit.Key) ([]byte, error)
}

// CTREncryption draws fresh keys from Rand, or crypto/rand when nil.
type CTREncryption struct {
	Rand io.Reader
}

// Keygen returns a random AES key and starting counter.
func (e CTREncryption) Keygen() (circuit.Key, error) {
	r := e.Rand
	if r == nil {
		r = rand.Reader
	}
	var raw [circuit.KeySize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return circuit.Key{}, err
	}
	return circuit.KeyFromBytes(raw[:])
}

// Encrypt runs AES-CTR over the whole file. Block b of the result is what the
// circuit decrypts with counter start + b*blockSize/16.
func (CTREncryption) Encrypt(plaintext []byte, key circuit.Key) ([]byte, error) {
	return primitives.CTRBlock(key.AES[:], plaintext, key.Counter[:])
}

// Decrypt is Encrypt: CTR mode is an involution.
func (e CTREncryption) Decrypt(ciphertext []byte, key circuit.Key) ([]byte, error) {
	return e.Encrypt(ciphertext, key)
}

// FixedKeyEncryption always hands out the same key. Testing only.
type FixedKeyEncryption struct {
	CTREncryption
	Key circuit.Key
}

// Keygen returns the fixed key.
func (e FixedKeyEncryption) Keygen() (circuit.Key, error) { return e.Key, nil }
