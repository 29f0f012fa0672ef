package password

import (
	"strings"
	"testing"
)

func TestHashFormat(t *testing.T) {
	hash, err := Hash("SparkSafe2024!", nil)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Errorf("Hash() unexpected format: %s", hash)
	}
}

func TestHashCustomParams(t *testing.T) {
	params := &Params{Memory: 16 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	hash, err := Hash("SparkSafe2024!", params)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	// Verification must read the parameters back out of the hash.
	ok, err := Verify("SparkSafe2024!", hash)
	if err != nil || !ok {
		t.Errorf("Verify() = %v, %v; want true, nil", ok, err)
	}
}

func TestHashSaltsAreUnique(t *testing.T) {
	a, err := Hash("same-password", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Hash("same-password", nil)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two hashes of the same password must differ")
	}
}

func TestVerify(t *testing.T) {
	hash, err := Hash("correct-horse", nil)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
		wantErr  bool
	}{
		{"correct password", "correct-horse", hash, true, false},
		{"wrong password", "battery-staple", hash, false, false},
		{"empty password", "", hash, false, false},
		{"malformed hash", "correct-horse", "$argon2id$bogus", false, true},
		{"wrong algorithm", "correct-horse", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", false, true},
		{"empty hash", "correct-horse", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Verify(tt.password, tt.hash)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}
