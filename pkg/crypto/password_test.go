package crypto

import (
	"errors"
	"strings"
	"testing"
)

// cheap parameters keep the suite fast
func testArgon2() *Argon2 {
	return &Argon2{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

// Requirement: hashes are PHC-formatted argon2id and verify only the original password.
func TestArgon2_HashVerify(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{name: "ascii", password: "testPassword123"},
		{name: "empty", password: ""},
		{name: "long", password: strings.Repeat("a", 128)},
		{name: "unicode", password: "pässwörd🔐"},
		{name: "null byte", password: "pass\x00word"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			a := testArgon2()

			// Act
			hash, err := a.Hash(test.password)
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			ok, err := a.Verify(test.password, hash)
			bad, _ := a.Verify(test.password+"x", hash)

			// Assert
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if !strings.HasPrefix(hash, "$argon2id$v=19$") {
				t.Errorf("hash = %q, want $argon2id$v=19$ prefix", hash)
			}
			if !ok {
				t.Error("Verify() = false for the original password")
			}
			if bad {
				t.Error("Verify() = true for a different password")
			}
		})
	}
}

func TestArgon2_UniqueSalts(t *testing.T) {
	// Arrange
	a := testArgon2()

	// Act
	h1, _ := a.Hash("same")
	h2, _ := a.Hash("same")

	// Assert
	if h1 == h2 {
		t.Error("two hashes of the same password should differ")
	}
}

// Requirement: verification uses the parameters stored in the hash.
func TestArgon2_VerifyAcrossInstances(t *testing.T) {
	// Arrange
	hash, err := testArgon2().Hash("pw")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	// Act
	ok, err := NewArgon2().Verify("pw", hash)

	// Assert
	if err != nil || !ok {
		t.Errorf("Verify() = %v, %v; want true, nil", ok, err)
	}
	if !NewArgon2().NeedsRehash(hash) {
		t.Error("NeedsRehash() should report weaker parameters")
	}
	if testArgon2().NeedsRehash(hash) {
		t.Error("NeedsRehash() should be false for matching parameters")
	}
}

func TestArgon2_VerifyInvalidHashes(t *testing.T) {
	tests := []struct {
		name    string
		hash    string
		wantErr error
	}{
		{name: "empty", hash: "", wantErr: ErrInvalidHash},
		{name: "too few parts", hash: "$argon2id$v=19$m=1,t=1,p=1$c2FsdA", wantErr: ErrInvalidHash},
		{name: "bcrypt", hash: "$2a$v=19$m=1,t=1,p=1$c2FsdA$a2V5", wantErr: ErrUnsupportedHashAlgo},
		{name: "old version", hash: "$argon2id$v=16$m=1,t=1,p=1$c2FsdA$a2V5", wantErr: ErrIncompatibleVersion},
		{name: "bad params", hash: "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5", wantErr: ErrInvalidHash},
		{name: "zero memory", hash: "$argon2id$v=19$m=0,t=1,p=1$c2FsdA$a2V5", wantErr: ErrInvalidHash},
		{name: "bad salt", hash: "$argon2id$v=19$m=1,t=1,p=1$!!$a2V5", wantErr: ErrInvalidHash},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Act
			ok, err := testArgon2().Verify("pw", test.hash)

			// Assert
			if ok {
				t.Error("Verify() = true for invalid hash")
			}
			if !errors.Is(err, test.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, test.wantErr)
			}
		})
	}
}
