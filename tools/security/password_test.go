package security

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "hunter22" {
		t.Fatal("HashPassword() returned plaintext")
	}

	if !VerifyPassword("hunter22", hash) {
		t.Error("VerifyPassword() = false for correct password")
	}
	if VerifyPassword("hunter23", hash) {
		t.Error("VerifyPassword() = true for wrong password")
	}
	if VerifyPassword("hunter22", "not-a-bcrypt-hash") {
		t.Error("VerifyPassword() = true for garbage hash")
	}
}

func TestHashPasswordSalted(t *testing.T) {
	h1, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	h2, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password should differ (salt)")
	}
}
