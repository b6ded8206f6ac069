package crypto

import (
	"bytes"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	if len(key.PublicKey()) != PublicKeySize {
		t.Errorf("PublicKey() length = %d, want %d", len(key.PublicKey()), PublicKeySize)
	}
	if len(key.Seed()) != SeedSize {
		t.Errorf("Seed() length = %d, want %d", len(key.Seed()), SeedSize)
	}
}

func TestGenerateKey_Unique(t *testing.T) {
	k1, err := GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	k2, err := GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	if bytes.Equal(k1.Seed(), k2.Seed()) {
		t.Error("two generated keys should not be identical")
	}
}

func TestPrivateKeyFromSeed(t *testing.T) {
	seed := bytes.Repeat([]byte{0x11}, SeedSize)
	k1, err := PrivateKeyFromSeed(seed)
	if err != nil {
		t.Fatalf("PrivateKeyFromSeed() error: %v", err)
	}
	k2, err := PrivateKeyFromSeed(seed)
	if err != nil {
		t.Fatalf("PrivateKeyFromSeed() error: %v", err)
	}
	if !bytes.Equal(k1.PublicKey(), k2.PublicKey()) {
		t.Error("same seed should give the same public key")
	}
	if !bytes.Equal(k1.Seed(), seed) {
		t.Error("Seed() should return the input seed")
	}
}

func TestPrivateKeyFromSeed_InvalidLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := PrivateKeyFromSeed(make([]byte, n)); err == nil {
			t.Errorf("PrivateKeyFromSeed(%d bytes) should fail", n)
		}
	}
}

func TestSign_Verify(t *testing.T) {
	key, err := GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	msg := []byte("canonical pre-image")

	sig, err := key.Sign(msg)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if len(sig) != SignatureSize {
		t.Errorf("signature length = %d, want %d", len(sig), SignatureSize)
	}
	if !VerifySignature(key.PublicKey(), msg, sig) {
		t.Error("VerifySignature() = false, want true")
	}
}

func TestSign_Deterministic(t *testing.T) {
	key, _ := PrivateKeyFromSeed(bytes.Repeat([]byte{0x22}, SeedSize))
	msg := []byte("same message")

	s1, _ := key.Sign(msg)
	s2, _ := key.Sign(msg)
	if !bytes.Equal(s1, s2) {
		t.Error("Ed25519 signatures over the same message should be identical")
	}
}

func TestVerify_Failures(t *testing.T) {
	key, _ := GenerateKey(nil)
	other, _ := GenerateKey(nil)
	msg := []byte("message")
	sig, _ := key.Sign(msg)

	corrupted := append([]byte{}, sig...)
	corrupted[10] ^= 0xff

	tests := []struct {
		name string
		pub  []byte
		msg  []byte
		sig  []byte
	}{
		{"wrong message", key.PublicKey(), []byte("other"), sig},
		{"wrong key", other.PublicKey(), msg, sig},
		{"corrupted signature", key.PublicKey(), msg, corrupted},
		{"short signature", key.PublicKey(), msg, sig[:63]},
		{"short public key", key.PublicKey()[:31], msg, sig},
		{"nil inputs", nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if VerifySignature(tt.pub, tt.msg, tt.sig) {
				t.Error("VerifySignature() = true, want false")
			}
		})
	}
}

func TestPrivateKey_Zero(t *testing.T) {
	key, _ := GenerateKey(nil)
	key.Zero()

	if _, err := key.Sign([]byte("x")); err == nil {
		t.Error("Sign() after Zero() should fail")
	}
}

func TestPrivateKey_SignerInterface(t *testing.T) {
	key, _ := GenerateKey(nil)
	var s Signer = key
	sig, err := s.Sign([]byte("m"))
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if !VerifySignature(s.PublicKey(), []byte("m"), sig) {
		t.Error("signature from Signer should verify")
	}
}
