package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/nftsurface"
	"github.com/totegamma/nftsurface/internal/codec"
	"github.com/totegamma/nftsurface/internal/domain"
)

// LedgerReader is the read side of the ledger collaborator.
type LedgerReader interface {
	State(ctx context.Context, id uint64) (nftsurface.AssetState, error)
}

// Reconciler drives catalog entries toward the ledger's authoritative state.
// Runs are idempotent: on unchanged inputs a re-run publishes nothing,
// signs nothing, and produces an identical catalog.
type Reconciler struct {
	ledger LedgerReader
	store  ContentStore
	images ImageProcessor
	codec  *codec.Codec
	config domain.Config

	// directory source image references are resolved against
	dir string
}

func New(
	ledger LedgerReader,
	store ContentStore,
	images ImageProcessor,
	cdc *codec.Codec,
	config domain.Config,
	dir string,
) *Reconciler {
	return &Reconciler{
		ledger: ledger,
		store:  store,
		images: images,
		codec:  cdc,
		config: config,
		dir:    dir,
	}
}

// Summary lists, per category, the ids a run touched.
type Summary struct {
	NewlyIssued      []uint64 `json:"newlyIssued"`
	NewlyUnavailable []uint64 `json:"newlyUnavailable"`
	NewlyPublished   []uint64 `json:"newlyPublished"`
	NewlyPriced      []uint64 `json:"newlyPriced"`
	Withheld         []uint64 `json:"withheld"`

	// duplicate descriptor addresses are surfaced, not failed; multi-edition
	// items share one descriptor intentionally
	DuplicateDescriptors []string `json:"duplicateDescriptors,omitempty"`
}

// route is the pure per-entry decision computed before any effect runs.
type route int

const (
	routeSkip route = iota
	routeIssued
	routeUnavailable
	routeEligible
)

type entryPlan struct {
	route            route
	ledgerDescriptor string
}

var priceRe = regexp.MustCompile(`^\d+$`)

// Run reconciles the catalog against current ledger state and returns the
// rewritten catalog plus a run summary. The input catalog is not mutated; on
// any error the caller's previous catalog stays intact.
func (r *Reconciler) Run(ctx context.Context, cat Catalog) (Catalog, Summary, error) {
	var summary Summary

	if err := validate(cat); err != nil {
		return Catalog{}, Summary{}, err
	}

	// snapshot ledger state for every undecided entry before any effect
	plans := make([]entryPlan, len(cat.Assets))
	for i, entry := range cat.Assets {
		plan, err := r.planEntry(ctx, entry)
		if err != nil {
			return Catalog{}, Summary{}, err
		}
		plans[i] = plan
	}

	out := Catalog{
		Assets: make([]Entry, 0, len(cat.Assets)),
		Context: Context{
			SignatureDomain: r.config.Domain,
			Authority:       r.config.Authority,
			Creator:         r.config.Creator,
		},
	}

	for i, entry := range cat.Assets {
		updated, err := r.applyEntry(ctx, entry, plans[i], &summary)
		if err != nil {
			return Catalog{}, Summary{}, errors.Wrapf(err, "asset %d", entry.id())
		}
		out.Assets = append(out.Assets, updated)

		slog.Info("processed catalog entry",
			slog.Uint64("assetId", updated.id()),
			slog.String("status", updated.Status),
			slog.String("module", "reconciler"),
		)
	}

	summary.DuplicateDescriptors = duplicateDescriptors(out.Assets)

	return out, summary, nil
}

// validate checks every entry before anything mutates. A partial catalog is
// never written.
func validate(cat Catalog) error {
	seen := make(map[uint64]bool)
	for i, entry := range cat.Assets {
		if entry.AssetID == nil {
			return fmt.Errorf("entry %d is missing an assetId", i)
		}
		id := *entry.AssetID
		if seen[id] {
			return fmt.Errorf("duplicate assetId %d", id)
		}
		seen[id] = true

		if entry.Metadata.Name == "" || entry.Metadata.Description == "" || entry.SourceImage == "" {
			return fmt.Errorf("asset %d is missing required fields (name, description, sourceImage)", id)
		}
	}
	return nil
}

func (r *Reconciler) planEntry(ctx context.Context, entry Entry) (entryPlan, error) {
	// terminal entries are never revisited
	if entry.Status == EntryIssued || entry.Status == EntryUnavailable {
		return entryPlan{route: routeSkip}, nil
	}

	state, err := r.ledger.State(ctx, entry.id())
	if err != nil {
		return entryPlan{}, errors.Wrapf(err, "querying ledger for asset %d", entry.id())
	}

	switch state.Status {
	case nftsurface.StatusIssued, nftsurface.StatusForSale:
		return entryPlan{route: routeIssued, ledgerDescriptor: state.Descriptor}, nil
	case nftsurface.StatusVacant:
		return entryPlan{route: routeEligible}, nil
	default:
		// below floor, revoked or burnt: permanently out of reach
		return entryPlan{route: routeUnavailable}, nil
	}
}

func (r *Reconciler) applyEntry(ctx context.Context, entry Entry, plan entryPlan, summary *Summary) (Entry, error) {
	switch plan.route {
	case routeSkip:
		return entry, nil

	case routeIssued:
		// ledger descriptor wins over anything self-published earlier
		entry.Status = EntryIssued
		entry.DescriptorURI = plan.ledgerDescriptor
		entry.Voucher = nil
		summary.NewlyIssued = append(summary.NewlyIssued, entry.id())
		return entry, nil

	case routeUnavailable:
		entry.Status = EntryUnavailable
		entry.Voucher = nil
		summary.NewlyUnavailable = append(summary.NewlyUnavailable, entry.id())
		return entry, nil
	}

	// still vacant: publish derivatives, descriptor, and voucher as needed

	published, err := r.publishImages(ctx, &entry)
	if err != nil {
		return Entry{}, err
	}

	republished, err := r.publishDescriptor(ctx, &entry)
	if err != nil {
		return Entry{}, err
	}
	if published || republished {
		summary.NewlyPublished = append(summary.NewlyPublished, entry.id())
	}

	if entry.TargetPrice != "" {
		if !priceRe.MatchString(entry.TargetPrice) {
			return Entry{}, fmt.Errorf("targetPrice %q is not a decimal wei amount", entry.TargetPrice)
		}
		signed, err := r.ensureVoucher(&entry)
		if err != nil {
			return Entry{}, err
		}
		entry.Status = EntryMintable
		if signed {
			summary.NewlyPriced = append(summary.NewlyPriced, entry.id())
		}
	} else {
		// published but unpriced: issuable by direct authority action only
		entry.Voucher = nil
		entry.Status = EntryWithheld
		summary.Withheld = append(summary.Withheld, entry.id())
	}

	return entry, nil
}

// publishImages uploads the source image and its display derivative when the
// source bytes changed since the last run. Reports whether anything was
// published.
func (r *Reconciler) publishImages(ctx context.Context, entry *Entry) (bool, error) {
	path := filepath.Join(r.dir, entry.SourceImage)
	data, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrap(err, "reading source image")
	}

	digest := fmt.Sprintf("%016x", xxh3.Hash(data))
	if entry.SourceDigest == digest && entry.Metadata.Image != "" {
		return false, nil
	}

	info, err := r.images.Process(data)
	if err != nil {
		return false, err
	}

	name := publishName(entry.id(), entry.Metadata.Name)

	imageAddr, err := r.store.Publish(ctx, data, name)
	if err != nil {
		return false, errors.Wrap(err, "publishing source image")
	}
	displayAddr, err := r.store.Publish(ctx, info.Display, name+"_web.jpg")
	if err != nil {
		return false, errors.Wrap(err, "publishing display copy")
	}

	entry.Metadata.Image = imageAddr
	entry.Metadata.Width = info.Width
	entry.Metadata.Height = info.Height
	entry.PlaceholderImage = info.Placeholder
	entry.DisplayImage = displayAddr
	entry.SourceDigest = digest
	return true, nil
}

// publishDescriptor republishes the metadata document when its content
// changed, retiring the stale address so storage does not leak. Reports
// whether a publish happened.
func (r *Reconciler) publishDescriptor(ctx context.Context, entry *Entry) (bool, error) {
	entry.Metadata.Creator = r.config.Creator
	entry.Metadata.Ledger = r.config.Domain.Contract

	digest := nftsurface.EncodeHex(nftsurface.GetHash(mustJSON(entry.Metadata)))
	if entry.MetadataDigest == digest && entry.DescriptorURI != "" {
		return false, nil
	}

	address, err := r.store.PublishJSON(ctx, entry.Metadata, publishName(entry.id(), entry.Metadata.Name)+".json")
	if err != nil {
		return false, errors.Wrap(err, "publishing descriptor")
	}

	if entry.DescriptorURI != "" && entry.DescriptorURI != address {
		if err := r.store.Retire(ctx, entry.DescriptorURI); err != nil {
			return false, errors.Wrap(err, "retiring stale descriptor")
		}
	}

	entry.DescriptorURI = address
	entry.MetadataDigest = digest
	return true, nil
}

// ensureVoucher reuses a still-valid voucher or signs a fresh one. The new
// voucher must round-trip through signature recovery back to the authority;
// a mismatch is a configuration defect and fails the whole run. Reports
// whether a new voucher was signed.
func (r *Reconciler) ensureVoucher(entry *Entry) (bool, error) {
	price, ok := sdkmath.NewIntFromString(entry.TargetPrice)
	if !ok {
		return false, fmt.Errorf("targetPrice %q is not a valid amount", entry.TargetPrice)
	}

	if v := entry.Voucher; v != nil &&
		v.AssetID == entry.id() &&
		!v.Price.IsNil() && v.Price.Equal(price) &&
		v.Descriptor == entry.DescriptorURI {
		signer, err := r.codec.RecoverSigner(v.Price, v.AssetID, v.Descriptor, v.Signature)
		if err == nil && signer == r.config.Authority {
			return false, nil
		}
	}

	signature, err := r.codec.Issue(price, entry.id(), entry.DescriptorURI, r.config.PrivateKey)
	if err != nil {
		return false, errors.Wrap(err, "signing voucher")
	}

	signer, err := r.codec.RecoverSigner(price, entry.id(), entry.DescriptorURI, signature)
	if err != nil {
		return false, errors.Wrap(err, "verifying fresh voucher")
	}
	if signer != r.config.Authority {
		return false, fmt.Errorf("voucher verification mismatch: signed by %s, expected authority %s", signer, r.config.Authority)
	}

	entry.Voucher = &nftsurface.Voucher{
		AssetID:    entry.id(),
		Price:      price,
		Descriptor: entry.DescriptorURI,
		Signature:  signature,
	}
	return true, nil
}

var nameRe = regexp.MustCompile(`[^a-z0-9]+`)

// publishName builds a readable, sortable object name for uploads.
func publishName(id uint64, name string) string {
	slug := nameRe.ReplaceAllString(strings.ToLower(name), "_")
	return fmt.Sprintf("%06d_%s", id, strings.Trim(slug, "_"))
}

func duplicateDescriptors(entries []Entry) []string {
	seen := make(map[string]int)
	for _, e := range entries {
		if e.DescriptorURI != "" {
			seen[e.DescriptorURI]++
		}
	}
	var dups []string
	for _, e := range entries {
		if seen[e.DescriptorURI] > 1 {
			seen[e.DescriptorURI] = 1 // report once
			dups = append(dups, e.DescriptorURI)
		}
	}
	return dups
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
