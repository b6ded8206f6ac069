package types

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Klingon-tech/octwallet/internal/errs"
)

func TestAddressFromPubKey(t *testing.T) {
	pk := bytes.Repeat([]byte{0x42}, 32)
	a := AddressFromPubKey(pk)

	if !strings.HasPrefix(a.String(), DefaultAddressPrefix) {
		t.Errorf("AddressFromPubKey() = %s, want prefix %q", a, DefaultAddressPrefix)
	}
	if got := len(a) - len(DefaultAddressPrefix); got != AddressBodyLen {
		t.Errorf("body length = %d, want %d", got, AddressBodyLen)
	}
	if err := ValidateAddress(a.String()); err != nil {
		t.Errorf("ValidateAddress(derived) = %v, want nil", err)
	}

	// Deterministic.
	if b := AddressFromPubKey(pk); b != a {
		t.Errorf("second derivation = %s, want %s", b, a)
	}

	other := AddressFromPubKey(bytes.Repeat([]byte{0x43}, 32))
	if other == a {
		t.Error("different keys should produce different addresses")
	}
}

func TestAddressFromPubKey_Padding(t *testing.T) {
	// Derive many addresses; every one must have the full body length.
	for i := 0; i < 64; i++ {
		pk := make([]byte, 32)
		pk[0] = byte(i)
		a := AddressFromPubKey(pk)
		if got := len(a) - len(DefaultAddressPrefix); got != AddressBodyLen {
			t.Fatalf("key %d: body length = %d, want %d", i, got, AddressBodyLen)
		}
	}
}

func TestValidateAddress(t *testing.T) {
	valid := AddressFromPubKey(bytes.Repeat([]byte{7}, 32)).String()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"derived", valid, false},
		{"43 char body", "oct" + strings.Repeat("a", 43), false},
		{"empty", "", true},
		{"wrong prefix", "abc" + valid[3:], true},
		{"no prefix", valid[3:], true},
		{"body too short", "oct" + strings.Repeat("a", 42), true},
		{"body too long", "oct" + strings.Repeat("a", 45), true},
		{"zero is not base58", "oct0" + strings.Repeat("a", 43), true},
		{"O is not base58", "octO" + strings.Repeat("a", 43), true},
		{"l is not base58", "octl" + strings.Repeat("a", 43), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateAddress(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errs.Is(err, errs.BadAddress) {
				t.Errorf("error kind = %v, want BadAddress", errs.KindOf(err))
			}
		})
	}
}

func TestParseAddress_Trims(t *testing.T) {
	valid := AddressFromPubKey(bytes.Repeat([]byte{9}, 32))
	got, err := ParseAddress("  " + valid.String() + "\n")
	if err != nil {
		t.Fatalf("ParseAddress() error: %v", err)
	}
	if got != valid {
		t.Errorf("ParseAddress() = %s, want %s", got, valid)
	}
}

func TestSetAddressFormat(t *testing.T) {
	defer SetAddressFormat(DefaultAddressPrefix, MinAddressBodyLen, AddressBodyLen)

	SetAddressFormat("tst", 43, 44)
	a := AddressFromPubKey(bytes.Repeat([]byte{1}, 32))
	if !strings.HasPrefix(a.String(), "tst") {
		t.Errorf("AddressFromPubKey() = %s, want prefix tst", a)
	}
	if AddressPrefix() != "tst" {
		t.Errorf("AddressPrefix() = %s, want tst", AddressPrefix())
	}
	if IsValidAddress("oct" + strings.Repeat("a", 44)) {
		t.Error("old prefix should be rejected after SetAddressFormat")
	}
}

func TestAddress_JSON(t *testing.T) {
	a := AddressFromPubKey(bytes.Repeat([]byte{3}, 32))
	data, err := json.Marshal(struct {
		To Address `json:"to"`
	}{a})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var back struct {
		To Address `json:"to"`
	}
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if back.To != a {
		t.Errorf("Unmarshal() = %s, want %s", back.To, a)
	}

	if err := json.Unmarshal([]byte(`{"to":"nope"}`), &back); err == nil {
		t.Error("Unmarshal(invalid address) should fail")
	}
}

func TestAddress_Short(t *testing.T) {
	a := AddressFromPubKey(bytes.Repeat([]byte{5}, 32))
	s := a.Short()
	if !strings.HasPrefix(s, "oct") || !strings.HasSuffix(s, a.String()[len(a)-4:]) {
		t.Errorf("Short() = %s", s)
	}
	if Address("oct123").Short() != "oct123" {
		t.Error("Short() should leave short strings unchanged")
	}
}
