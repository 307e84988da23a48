package nftsurface

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// SignBytes signs keccak256(payload) with a hex-encoded secp256k1 private
// key and returns the 65-byte [R || S || V] signature, V in {27, 28}.
func SignBytes(payload []byte, privkeyHex string) ([]byte, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privkeyHex, "0x"))
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(crypto.Keccak256(payload), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// VerifySignature recovers the signer of keccak256(payload) and checks it
// against the expected address.
func VerifySignature(payload, signature []byte, address string) error {
	signer, err := RecoverBytes(payload, signature)
	if err != nil {
		return err
	}
	if signer != common.HexToAddress(address) {
		return fmt.Errorf("signer mismatch: expected %s, got %s", address, signer.Hex())
	}
	return nil
}

// RecoverBytes recovers the address that signed keccak256(payload).
func RecoverBytes(payload, signature []byte) (common.Address, error) {
	return RecoverDigest(crypto.Keccak256(payload), signature)
}

// RecoverDigest recovers the signing address from a 65-byte signature over
// the given 32-byte digest. V may be {0, 1} or {27, 28}.
func RecoverDigest(digest, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(signature))
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id")
	}
	// reject the malleable upper-half-order S form
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[crypto.RecoveryIDOffset], r, s, true) {
		return common.Address{}, fmt.Errorf("non-canonical signature values")
	}
	pubkey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}

// PrivKeyToAddress derives the checksummed address of a hex private key.
func PrivKeyToAddress(privkeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privkeyHex, "0x"))
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

// NormalizeAddress canonicalizes a hex address to its checksummed form.
func NormalizeAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// IsHexAddress reports whether s parses as a 20-byte hex address.
func IsHexAddress(s string) bool {
	return common.IsHexAddress(s)
}

// DecodeHex decodes a 0x-prefixed hex string.
func DecodeHex(s string) ([]byte, error) {
	return hexutil.Decode(s)
}

// EncodeHex encodes bytes as a 0x-prefixed hex string.
func EncodeHex(b []byte) string {
	return hexutil.Encode(b)
}

// GetHash is the content digest used for catalog documents.
func GetHash(b []byte) []byte {
	sum := sha3.Sum256(b)
	return sum[:]
}
