package reconciler

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/totegamma/nftsurface"
)

// Catalog entry statuses stamped by the reconciler. They mirror the ledger's
// lifecycle but lag behind until the next run.
const (
	EntryIssued      = "issued"
	EntryUnavailable = "unavailable"
	EntryMintable    = "mintable"
	EntryWithheld    = "withheld"
)

// Catalog is the collaborator-maintained collection of asset descriptions.
// It is not authoritative; ledger state always wins on conflict.
type Catalog struct {
	Assets  []Entry `json:"assets"`
	Context Context `json:"context"`
}

// Context reproduces the exact signing domain of a run, so a reconciliation
// performed by a different operator still produces verifiable vouchers.
type Context struct {
	SignatureDomain nftsurface.Domain `json:"signatureDomain"`
	Authority       string            `json:"authority,omitempty"`
	Creator         string            `json:"creator,omitempty"`
}

// Metadata is the descriptor document published to content-addressed
// storage. Creator and Ledger bind it to one instance so it cannot be reused
// by an unrelated asset.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Creator     string `json:"creatorAddress,omitempty"`
	Ledger      string `json:"contractAddress,omitempty"`
}

// Entry is one catalog record. AssetID is a pointer so a missing id can be
// told apart from id zero during validation.
type Entry struct {
	AssetID     *uint64  `json:"assetId"`
	Status      string   `json:"status,omitempty"`
	Metadata    Metadata `json:"metadata"`
	SourceImage string   `json:"sourceImage"`

	// TargetPrice is a decimal wei string. Its presence makes the entry
	// voucher-redeemable; absence withholds it for direct issuance only.
	TargetPrice string `json:"targetPrice,omitempty"`

	DescriptorURI string              `json:"descriptorUri,omitempty"`
	Voucher       *nftsurface.Voucher `json:"voucher,omitempty"`

	PlaceholderImage string `json:"placeholderImage,omitempty"`
	DisplayImage     string `json:"displayImage,omitempty"`

	// digests let a re-run skip publishes whose inputs have not changed
	SourceDigest   string `json:"sourceDigest,omitempty"`
	MetadataDigest string `json:"metadataDigest,omitempty"`
}

// SigningDomain returns the domain the catalog was last reconciled against.
// A catalog that has never been through a run carries no context and falls
// back to the given domain.
func (c Catalog) SigningDomain(fallback nftsurface.Domain) nftsurface.Domain {
	if c.Context.SignatureDomain != (nftsurface.Domain{}) {
		return c.Context.SignatureDomain
	}
	return fallback
}

func (e Entry) id() uint64 {
	if e.AssetID == nil {
		return 0
	}
	return *e.AssetID
}

// LoadCatalog reads a catalog file from disk.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, errors.Wrap(err, "reading catalog")
	}
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return Catalog{}, errors.Wrap(err, "parsing catalog")
	}
	return cat, nil
}

// SaveCatalog rewrites the catalog atomically. A terminated run leaves the
// previous version intact, never a truncated file.
func SaveCatalog(path string, cat Catalog) error {
	data, err := json.MarshalIndent(cat, "", "    ")
	if err != nil {
		return errors.Wrap(err, "serializing catalog")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".catalog-*.json")
	if err != nil {
		return errors.Wrap(err, "creating catalog tempfile")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing catalog")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing catalog tempfile")
	}
	return os.Rename(tmp.Name(), path)
}
