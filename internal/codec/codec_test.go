package codec

import (
	"strings"
	"testing"

	sdkmath "cosmossdk.io/math"

	"github.com/totegamma/nftsurface"
)

const (
	authorityKey  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	authorityAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var testDomain = nftsurface.Domain{
	Name:     "NFTsurface",
	Version:  "1.0.0",
	ChainID:  31337,
	Contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
}

func TestIssueRecoverRoundTrip(t *testing.T) {
	c := New(testDomain)
	price := sdkmath.NewIntWithDecimal(1, 18)

	sig, err := c.Issue(price, 12345, "ipfs://123456789", authorityKey)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.HasPrefix(sig, "0x") || len(sig) != 132 {
		t.Fatalf("expected 65-byte hex signature, got %q", sig)
	}

	signer, err := c.RecoverSigner(price, 12345, "ipfs://123456789", sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if signer != authorityAddr {
		t.Fatalf("expected %s, got %s", authorityAddr, signer)
	}
}

func TestRecoverRejectsFieldMutation(t *testing.T) {
	c := New(testDomain)
	price := sdkmath.NewIntWithDecimal(1, 18)

	sig, err := c.Issue(price, 12345, "ipfs://123456789", authorityKey)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// altering any bound field recovers a different (wrong) signer
	if signer, err := c.RecoverSigner(price.Add(sdkmath.NewInt(1)), 12345, "ipfs://123456789", sig); err == nil && signer == authorityAddr {
		t.Fatalf("altered price should not recover the authority")
	}
	if signer, err := c.RecoverSigner(price, 12346, "ipfs://123456789", sig); err == nil && signer == authorityAddr {
		t.Fatalf("altered id should not recover the authority")
	}
	if signer, err := c.RecoverSigner(price, 12345, "ipfs://123456789#", sig); err == nil && signer == authorityAddr {
		t.Fatalf("altered descriptor should not recover the authority")
	}
}

func TestRecoverRejectsForeignDomain(t *testing.T) {
	price := sdkmath.NewIntWithDecimal(1, 18)
	sig, err := New(testDomain).Issue(price, 12345, "ipfs://123456789", authorityKey)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for name, alter := range map[string]func(d *nftsurface.Domain){
		"name":     func(d *nftsurface.Domain) { d.Name = "OtherSurface" },
		"version":  func(d *nftsurface.Domain) { d.Version = "2.0.0" },
		"chain":    func(d *nftsurface.Domain) { d.ChainID = 1 },
		"contract": func(d *nftsurface.Domain) { d.Contract = "0x0000000000000000000000000000000000000001" },
	} {
		foreign := testDomain
		alter(&foreign)
		if signer, err := New(foreign).RecoverSigner(price, 12345, "ipfs://123456789", sig); err == nil && signer == authorityAddr {
			t.Fatalf("%s: foreign domain should not recover the authority", name)
		}
	}
}

func TestRecoverRejectsMalformedSignature(t *testing.T) {
	c := New(testDomain)
	price := sdkmath.NewIntWithDecimal(1, 18)

	cases := map[string]string{
		"empty":      "",
		"not hex":    "0xzzzz",
		"no prefix":  strings.Repeat("ab", 65),
		"too short":  "0x" + strings.Repeat("ab", 64),
		"too long":   "0x" + strings.Repeat("ab", 66),
		"bad v byte": "0x" + strings.Repeat("ab", 64) + "05",
	}
	for name, sig := range cases {
		if _, err := c.RecoverSigner(price, 12345, "ipfs://123456789", sig); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
