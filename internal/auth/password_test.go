package auth_test

import (
	"crypto/rand"
	"testing"

	"go.airavate.in/auth/internal/auth"
)

func TestPasswordHasher(t *testing.T) {
	hasher := auth.NewBcryptPasswordHasher(auth.MinCost)

	hash, err := hasher.Hash("password")
	if err != nil {
		t.Errorf("Hash failed: %v", err)
	}
	if err := hasher.Verify(hash, "password"); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
	if err := hasher.Verify(hash, "not-the-password"); err == nil {
		t.Errorf("Verify should have failed for a wrong password")
	}

	t.Run("TestMalformedDigest", func(t *testing.T) {
		if err := hasher.Verify("not-a-bcrypt-digest", "password"); err == nil {
			t.Errorf("Verify should have failed for a malformed digest")
		}
		if err := hasher.Verify("", "password"); err == nil {
			t.Errorf("Verify should have failed for an empty digest")
		}
	})

	t.Run("TestTooLongPassword", func(t *testing.T) {
		tooLongPass := make([]byte, 73)
		rand.Read(tooLongPass)

		_, err := hasher.Hash(string(tooLongPass))
		if err == nil {
			t.Errorf("Hash should have failed")
		}
	})
}

func TestNewBcryptPasswordHasher_CostFloor(t *testing.T) {
	hasher := auth.NewBcryptPasswordHasher(4)
	if hasher.Cost < auth.MinCost {
		t.Errorf("cost %d is below the minimum %d", hasher.Cost, auth.MinCost)
	}
}
