package security

import "testing"

func TestSignPayload(t *testing.T) {
	// RFC 4231 test case 2
	got := SignPayload([]byte("what do ya want for nothing?"), "Jefe")
	want := "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843"
	if got != want {
		t.Errorf("SignPayload() = %v, want %v", got, want)
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"txid":"abc","status":"PAID"}`)
	secret := "whsec_test"
	sig := SignPayload(payload, secret)

	tests := []struct {
		name      string
		payload   []byte
		secret    string
		signature string
		want      bool
	}{
		{name: "Valid", payload: payload, secret: secret, signature: sig, want: true},
		{name: "Prefixed", payload: payload, secret: secret, signature: "sha256=" + sig, want: true},
		{name: "Tampered body", payload: []byte(`{"txid":"abc","status":"EXPIRED"}`), secret: secret, signature: sig, want: false},
		{name: "Wrong secret", payload: payload, secret: "other", signature: sig, want: false},
		{name: "Empty signature", payload: payload, secret: secret, signature: "", want: false},
		{name: "Empty secret", payload: payload, secret: "", signature: SignPayload(payload, ""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature(tt.payload, tt.secret, tt.signature); got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}
