package session

import "testing"

func TestMintCSRFTokenUnique(t *testing.T) {
	first, err := MintCSRFToken()
	if err != nil {
		t.Fatalf("MintCSRFToken: %v", err)
	}
	second, err := MintCSRFToken()
	if err != nil {
		t.Fatalf("MintCSRFToken: %v", err)
	}
	if first == "" || first == second {
		t.Fatalf("tokens not unique: %q %q", first, second)
	}
}

func TestValidateCSRF(t *testing.T) {
	token, err := MintCSRFToken()
	if err != nil {
		t.Fatalf("MintCSRFToken: %v", err)
	}

	if !ValidateCSRF(token, token) {
		t.Fatal("matching token rejected")
	}
	if ValidateCSRF(token, "") {
		t.Fatal("empty supplied token accepted")
	}
	if ValidateCSRF("", token) {
		t.Fatal("empty session token accepted")
	}
	if ValidateCSRF(token, token+"x") {
		t.Fatal("longer token accepted")
	}
	other, err := MintCSRFToken()
	if err != nil {
		t.Fatalf("MintCSRFToken: %v", err)
	}
	if ValidateCSRF(token, other) {
		t.Fatal("different token accepted")
	}
}
