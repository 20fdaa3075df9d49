package security

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	s := NewSigner("test-secret")

	ids := []string{"a", "3f2c", "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d", "x-y-z"}
	for _, id := range ids {
		sig := s.Sign(id)
		if sig == "" {
			t.Fatalf("empty signature for %q", id)
		}
		if !s.Verify(id, sig) {
			t.Fatalf("Verify(%q, Sign(%q)) = false", id, id)
		}
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	s := NewSigner("test-secret")
	id := "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"
	sig := s.Sign(id)

	for i := range sig {
		flipped := []byte(sig)
		if flipped[i] == 'a' {
			flipped[i] = 'b'
		} else {
			flipped[i] = 'a'
		}
		if s.Verify(id, string(flipped)) {
			t.Fatalf("accepted signature with byte %d flipped", i)
		}
	}
}

func TestVerifyRejectsWrongSession(t *testing.T) {
	s := NewSigner("test-secret")
	if s.Verify("other-session", s.Sign("session")) {
		t.Fatal("signature accepted for a different session id")
	}
}

func TestVerifyRejectsLengthMismatch(t *testing.T) {
	s := NewSigner("test-secret")
	if s.Verify("session", s.Sign("session")+"00") {
		t.Fatal("accepted signature of wrong length")
	}
	if s.Verify("session", "") {
		t.Fatal("accepted empty signature")
	}
}

func TestEmptySecretNeverVerifies(t *testing.T) {
	s := NewSigner("")
	if got := s.Sign("session"); got != "" {
		t.Fatalf("Sign with empty secret = %q, want empty", got)
	}
	if s.Verify("session", "") {
		t.Fatal("Verify succeeded with empty secret")
	}
}

func TestOriginPolicy(t *testing.T) {
	open := NewOriginPolicy(nil)
	if !open.Allowed("https://anything.example") || !open.Allowed("") {
		t.Fatal("empty allow-list should allow any origin")
	}

	strict := NewOriginPolicy([]string{"https://widget.example.com", "http://localhost:8080"})
	if !strict.Allowed("https://widget.example.com") {
		t.Fatal("listed origin rejected")
	}
	if strict.Allowed("https://evil.example.com") {
		t.Fatal("unlisted origin allowed")
	}
	if strict.Allowed("") {
		t.Fatal("missing origin allowed with non-empty allow-list")
	}
}
