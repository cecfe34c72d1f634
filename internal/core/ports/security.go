package ports

// SecurityPort seals values before they leave the process.
type SecurityPort interface {
	// Encrypt returns nonce||ciphertext.
	Encrypt(plaintext []byte) (ciphertext []byte, err error)

	// Decrypt fails on tampered or truncated input.
	Decrypt(ciphertext []byte) (plaintext []byte, err error)

	// SealString and OpenString are the text-safe (base64) forms used by
	// stores that only hold strings.
	SealString(plaintext []byte) (string, error)
	OpenString(sealed string) ([]byte, error)
}
