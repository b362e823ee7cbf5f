// Package adaptive picks an AEAD for sealing values at rest.
//
// AES-256-GCM is used where the platform has hardware AES (amd64, arm64),
// ChaCha20-Poly1305 elsewhere. Ciphertexts are nonce||sealed and carry no
// algorithm tag, so the reader must open with the same CipherType.
//
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
package adaptive
