package password

import "testing"

func fastParams() Argon2idParams {
	return Argon2idParams{
		MemoryKiB:   8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	enc, err := Hash("correct-admin-key", fastParams())
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !IsEncodedHash(enc) {
		t.Fatalf("expected encoded hash, got %q", enc)
	}

	ok, err := Verify(enc, "correct-admin-key")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}

	ok, err = Verify(enc, "wrong-admin-key")
	if err != nil {
		t.Fatalf("Verify mismatch: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	cases := []string{
		"",
		"plain-key",
		"$argon2i$v=19$m=8192,t=1,p=1$AAAA$BBBB",
		"$argon2id$v=18$m=8192,t=1,p=1$AAAA$BBBB",
		"$argon2id$v=19$m=0,t=1,p=1$AAAA$BBBB",
		"$argon2id$v=19$m=8192,t=1,p=1$not-base64!$BBBB",
	}
	for _, c := range cases {
		if _, err := Verify(c, "key"); err != ErrInvalidHash {
			t.Fatalf("Verify(%q): expected ErrInvalidHash, got %v", c, err)
		}
	}
}

func TestVerify_RejectsOversizedParams(t *testing.T) {
	// 1 GiB memory is far beyond our configured maximum and must be refused.
	enc := "$argon2id$v=19$m=1048576,t=3,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"
	if _, err := Verify(enc, "key"); err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash for oversized params, got %v", err)
	}
}

func TestIsEncodedHash(t *testing.T) {
	if IsEncodedHash("my-plaintext-key") {
		t.Fatalf("plaintext must not look like a hash")
	}
	if !IsEncodedHash("  $argon2id$v=19$m=8192,t=1,p=1$AAAA$BBBB") {
		t.Fatalf("expected argon2id prefix to be detected")
	}
}
