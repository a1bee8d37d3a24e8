package identity

import "testing"

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher()

	hash, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash equals the plaintext")
	}

	if !h.Verify("correct horse battery staple", hash) {
		t.Error("Verify() rejected the correct password")
	}
	if h.Verify("wrong password", hash) {
		t.Error("Verify() accepted a wrong password")
	}
	if h.Verify("correct horse battery staple", "not-a-bcrypt-hash") {
		t.Error("Verify() accepted a malformed hash")
	}
}
