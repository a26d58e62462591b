package featuremill

import (
	"bytes"
	"testing"
)

func TestEncryptorRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(EncryptionConfig{Enabled: true, KeyPassword: "pass"})
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	plaintext := []byte("feature matrix payload")
	sealed, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("ciphertext contains plaintext")
	}

	opened, err := enc.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("round trip = %q, want %q", opened, plaintext)
	}
}

func TestEncryptorSaltDerivation(t *testing.T) {
	enc, err := NewEncryptor(EncryptionConfig{Enabled: true, KeyPassword: "pass"})
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := enc.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}

	// The same password and salt derive the same key.
	peer, err := NewEncryptorWithSalt("pass", enc.Salt())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := peer.Decrypt(sealed); err != nil {
		t.Errorf("peer with same salt failed to decrypt: %v", err)
	}

	wrong, err := NewEncryptorWithSalt("other", enc.Salt())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wrong.Decrypt(sealed); err == nil {
		t.Error("wrong password decrypted successfully")
	}
}

func TestNewEncryptor_Config(t *testing.T) {
	if enc, err := NewEncryptor(EncryptionConfig{}); enc != nil || err != nil {
		t.Errorf("disabled config: got (%v, %v), want (nil, nil)", enc, err)
	}
	if _, err := NewEncryptor(EncryptionConfig{Enabled: true}); err == nil {
		t.Error("enabled without key material should fail")
	}
	if _, err := NewEncryptor(EncryptionConfig{Enabled: true, Key: []byte("short")}); err == nil {
		t.Error("short raw key should fail")
	}
	if _, err := NewEncryptor(EncryptionConfig{Enabled: true, Key: make([]byte, EncryptionKeySize)}); err != nil {
		t.Errorf("32-byte key rejected: %v", err)
	}
	if _, err := NewEncryptorWithSalt("pass", []byte("short")); err == nil {
		t.Error("bad salt size should fail")
	}
}

func TestDecrypt_Truncated(t *testing.T) {
	enc, err := NewEncryptor(EncryptionConfig{Enabled: true, KeyPassword: "pass"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Decrypt([]byte{1, 2, 3}); err == nil {
		t.Error("truncated ciphertext should fail")
	}
}
