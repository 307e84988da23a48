// Package codec builds and verifies the typed-data signatures that authorize
// first issuance of an asset. The signed payload covers exactly
// {weiPrice, tokenId, tokenURI} under a domain separator unique to one
// deployed ledger instance, so altering any field, or presenting the
// signature to a different instance, invalidates it.
package codec

import (
	"strconv"

	sdkmath "cosmossdk.io/math"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"

	"github.com/totegamma/nftsurface"
)

const primaryType = "mint"

type Codec struct {
	domain nftsurface.Domain
}

func New(domain nftsurface.Domain) *Codec {
	return &Codec{domain: domain}
}

// Domain returns the instance identity the codec signs under.
func (c *Codec) Domain() nftsurface.Domain {
	return c.domain
}

func (c *Codec) typedData(price sdkmath.Int, assetID uint64, descriptorURI string) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			primaryType: []apitypes.Type{
				{Name: "weiPrice", Type: "uint256"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "tokenURI", Type: "string"},
			},
		},
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              c.domain.Name,
			Version:           c.domain.Version,
			ChainId:           ethmath.NewHexOrDecimal256(c.domain.ChainID),
			VerifyingContract: c.domain.Contract,
		},
		Message: apitypes.TypedDataMessage{
			"weiPrice": price.String(),
			"tokenId":  strconv.FormatUint(assetID, 10),
			"tokenURI": descriptorURI,
		},
	}
}

// Digest computes the 32-byte signing digest for one authorization tuple.
func (c *Codec) Digest(price sdkmath.Int, assetID uint64, descriptorURI string) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(c.typedData(price, assetID, descriptorURI))
	if err != nil {
		return nil, errors.Wrap(err, "hashing typed data")
	}
	return digest, nil
}

// Issue signs an authorization tuple with the authority's private key and
// returns the 0x-hex 65-byte signature.
func (c *Codec) Issue(price sdkmath.Int, assetID uint64, descriptorURI string, privkeyHex string) (string, error) {
	digest, err := c.Digest(price, assetID, descriptorURI)
	if err != nil {
		return "", err
	}
	key, err := crypto.HexToECDSA(trimHexPrefix(privkeyHex))
	if err != nil {
		return "", errors.Wrap(err, "parsing authority key")
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return "", errors.Wrap(err, "signing digest")
	}
	sig[crypto.RecoveryIDOffset] += 27
	return nftsurface.EncodeHex(sig), nil
}

// RecoverSigner recovers the address that signed the given tuple. Any
// defect, wrong length, bad recovery id, malleable S, garbage hex, yields an
// error rather than a panic; callers fold all such errors into their
// authorization-invalid category.
func (c *Codec) RecoverSigner(price sdkmath.Int, assetID uint64, descriptorURI string, signatureHex string) (string, error) {
	digest, err := c.Digest(price, assetID, descriptorURI)
	if err != nil {
		return "", err
	}
	sig, err := nftsurface.DecodeHex(signatureHex)
	if err != nil {
		return "", errors.Wrap(err, "decoding signature")
	}
	signer, err := nftsurface.RecoverDigest(digest, sig)
	if err != nil {
		return "", err
	}
	return signer.Hex(), nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
