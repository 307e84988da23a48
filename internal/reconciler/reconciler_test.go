package reconciler

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	sdkmath "cosmossdk.io/math"

	"github.com/totegamma/nftsurface"
	"github.com/totegamma/nftsurface/internal/codec"
	"github.com/totegamma/nftsurface/internal/domain"
)

const (
	authorityKey  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	authorityAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	creatorAddr   = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

var testDomain = nftsurface.Domain{
	Name:     "NFTsurface",
	Version:  "1.0.0",
	ChainID:  31337,
	Contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
}

type fakeLedger struct {
	states map[uint64]nftsurface.AssetState
}

func (f *fakeLedger) State(ctx context.Context, id uint64) (nftsurface.AssetState, error) {
	if s, ok := f.states[id]; ok {
		return s, nil
	}
	return nftsurface.AssetState{AssetID: id, Status: nftsurface.StatusVacant, Price: sdkmath.ZeroInt()}, nil
}

type fixture struct {
	reconciler *Reconciler
	ledger     *fakeLedger
	store      *MemoryStore
	codec      *codec.Codec
	dir        string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "a.png"), 64, 48)

	conf := domain.Config{
		Domain:     testDomain,
		PrivateKey: authorityKey,
		Authority:  authorityAddr,
		Creator:    creatorAddr,
	}

	ledger := &fakeLedger{states: make(map[uint64]nftsurface.AssetState)}
	store := NewMemoryStore()
	cdc := codec.New(testDomain)

	return &fixture{
		reconciler: New(ledger, store, StdImageProcessor{}, cdc, conf, dir),
		ledger:     ledger,
		store:      store,
		codec:      cdc,
		dir:        dir,
	}
}

func writeTestImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func entry(id uint64, price string) Entry {
	return Entry{
		AssetID:     &id,
		Metadata:    Metadata{Name: "A", Description: "d"},
		SourceImage: "a.png",
		TargetPrice: price,
	}
}

func TestRunProducesMintableEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat := Catalog{Assets: []Entry{entry(7, "1000000000000000000")}}

	out, summary, err := f.reconciler.Run(ctx, cat)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got := out.Assets[0]
	if got.Status != EntryMintable {
		t.Fatalf("expected status %q, got %q", EntryMintable, got.Status)
	}
	if got.DescriptorURI == "" {
		t.Fatal("expected a published descriptor")
	}
	if got.Voucher == nil {
		t.Fatal("expected a voucher")
	}

	signer, err := f.codec.RecoverSigner(got.Voucher.Price, got.Voucher.AssetID, got.Voucher.Descriptor, got.Voucher.Signature)
	if err != nil {
		t.Fatalf("voucher does not verify: %v", err)
	}
	if signer != authorityAddr {
		t.Fatalf("voucher signed by %s, expected %s", signer, authorityAddr)
	}
	if !got.Voucher.Price.Equal(sdkmath.NewIntFromUint64(1000000000000000000)) {
		t.Fatalf("unexpected voucher price %s", got.Voucher.Price)
	}

	if got.Metadata.Image == "" || got.DisplayImage == "" || got.PlaceholderImage == "" {
		t.Fatal("expected published image derivatives")
	}
	if got.Metadata.Width != 64 || got.Metadata.Height != 48 {
		t.Fatalf("unexpected dimensions %dx%d", got.Metadata.Width, got.Metadata.Height)
	}
	if got.Metadata.Creator != creatorAddr || got.Metadata.Ledger != testDomain.Contract {
		t.Fatal("descriptor is not bound to this instance")
	}

	if len(summary.NewlyPriced) != 1 || summary.NewlyPriced[0] != 7 {
		t.Fatalf("unexpected NewlyPriced %v", summary.NewlyPriced)
	}
	if len(summary.NewlyPublished) != 1 || summary.NewlyPublished[0] != 7 {
		t.Fatalf("unexpected NewlyPublished %v", summary.NewlyPublished)
	}
}

func TestSecondRunIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat := Catalog{Assets: []Entry{entry(7, "1000000000000000000"), entry(8, "")}}

	first, _, err := f.reconciler.Run(ctx, cat)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	publishes := f.store.Publishes()

	second, summary, err := f.reconciler.Run(ctx, first)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if f.store.Publishes() != publishes {
		t.Fatalf("second run published %d new objects", f.store.Publishes()-publishes)
	}
	if len(summary.NewlyPriced) != 0 || len(summary.NewlyPublished) != 0 {
		t.Fatalf("second run was not a no-op: %+v", summary)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatal("second run changed the catalog")
	}
}

func TestLedgerDescriptorWinsOnceIssued(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat := Catalog{Assets: []Entry{entry(7, "1000000000000000000")}}
	first, _, err := f.reconciler.Run(ctx, cat)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Assets[0].Voucher == nil {
		t.Fatal("expected voucher before issuance")
	}

	f.ledger.states[7] = nftsurface.AssetState{
		AssetID:    7,
		Status:     nftsurface.StatusIssued,
		Owner:      creatorAddr,
		Descriptor: "ipfs://authoritative",
		Price:      sdkmath.ZeroInt(),
	}

	second, summary, err := f.reconciler.Run(ctx, first)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	got := second.Assets[0]
	if got.Status != EntryIssued {
		t.Fatalf("expected status %q, got %q", EntryIssued, got.Status)
	}
	if got.Voucher != nil {
		t.Fatal("voucher should be cleared once issued")
	}
	if got.DescriptorURI != "ipfs://authoritative" {
		t.Fatalf("expected ledger descriptor, got %q", got.DescriptorURI)
	}
	if len(summary.NewlyIssued) != 1 || summary.NewlyIssued[0] != 7 {
		t.Fatalf("unexpected NewlyIssued %v", summary.NewlyIssued)
	}

	// issued is terminal: a third run leaves the entry untouched
	third, _, err := f.reconciler.Run(ctx, second)
	if err != nil {
		t.Fatalf("third run failed: %v", err)
	}
	if third.Assets[0].Status != EntryIssued || third.Assets[0].DescriptorURI != "ipfs://authoritative" {
		t.Fatal("issued entry changed on re-run")
	}
}

func TestRevokedEntryBecomesUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ledger.states[3] = nftsurface.AssetState{AssetID: 3, Status: nftsurface.StatusRevoked, Price: sdkmath.ZeroInt()}
	f.ledger.states[4] = nftsurface.AssetState{AssetID: 4, Status: nftsurface.StatusBelowFloor, Price: sdkmath.ZeroInt()}

	cat := Catalog{Assets: []Entry{entry(3, "100"), entry(4, "")}}
	out, summary, err := f.reconciler.Run(ctx, cat)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, got := range out.Assets {
		if got.Status != EntryUnavailable {
			t.Fatalf("asset %d: expected status %q, got %q", got.id(), EntryUnavailable, got.Status)
		}
		if got.Voucher != nil {
			t.Fatalf("asset %d: voucher should be cleared", got.id())
		}
	}
	if len(summary.NewlyUnavailable) != 2 {
		t.Fatalf("unexpected NewlyUnavailable %v", summary.NewlyUnavailable)
	}
	if f.store.Publishes() != 0 {
		t.Fatal("unavailable entries must not publish")
	}
}

func TestUnpricedEntryIsWithheld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat := Catalog{Assets: []Entry{entry(9, "")}}
	out, summary, err := f.reconciler.Run(ctx, cat)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got := out.Assets[0]
	if got.Status != EntryWithheld {
		t.Fatalf("expected status %q, got %q", EntryWithheld, got.Status)
	}
	if got.Voucher != nil {
		t.Fatal("withheld entries carry no voucher")
	}
	if got.DescriptorURI == "" {
		t.Fatal("withheld entries still publish a descriptor")
	}
	if len(summary.Withheld) != 1 || summary.Withheld[0] != 9 {
		t.Fatalf("unexpected Withheld %v", summary.Withheld)
	}
}

func TestValidationAbortsBeforeAnyEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := uint64(1)
	cases := map[string]Catalog{
		"missing name": {Assets: []Entry{
			entry(1, "100"),
			{AssetID: &id, Metadata: Metadata{Description: "d"}, SourceImage: "a.png"},
		}},
		"missing assetId": {Assets: []Entry{
			entry(1, "100"),
			{Metadata: Metadata{Name: "A", Description: "d"}, SourceImage: "a.png"},
		}},
		"duplicate assetId": {Assets: []Entry{
			entry(1, "100"),
			entry(1, "200"),
		}},
	}

	for name, cat := range cases {
		if _, _, err := f.reconciler.Run(ctx, cat); err == nil {
			t.Errorf("%s: expected run to abort", name)
		}
	}
	if f.store.Publishes() != 0 {
		t.Fatal("an aborted run must not publish anything")
	}
}

func TestMalformedPriceFailsRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat := Catalog{Assets: []Entry{entry(5, "1.5e18")}}
	if _, _, err := f.reconciler.Run(ctx, cat); err == nil {
		t.Fatal("expected malformed targetPrice to fail the run")
	}
}

func TestVoucherMismatchFailsRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// the configured authority does not match the signing key
	f.reconciler.config.Authority = creatorAddr

	cat := Catalog{Assets: []Entry{entry(7, "100")}}
	if _, _, err := f.reconciler.Run(ctx, cat); err == nil {
		t.Fatal("expected verification mismatch to fail the whole run")
	}
}

func TestDescriptorChangeRepublishesAndRetires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat := Catalog{Assets: []Entry{entry(7, "100")}}
	first, _, err := f.reconciler.Run(ctx, cat)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	oldURI := first.Assets[0].DescriptorURI
	oldSig := first.Assets[0].Voucher.Signature

	first.Assets[0].Metadata.Description = "updated"
	second, summary, err := f.reconciler.Run(ctx, first)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	got := second.Assets[0]
	if got.DescriptorURI == oldURI {
		t.Fatal("expected a new descriptor address")
	}
	if _, ok := f.store.Get(oldURI); ok {
		t.Fatal("stale descriptor was not retired")
	}
	if got.Voucher.Signature == oldSig {
		t.Fatal("voucher must be re-signed over the new descriptor")
	}
	if got.Voucher.Descriptor != got.DescriptorURI {
		t.Fatal("voucher is not bound to the republished descriptor")
	}
	if len(summary.NewlyPublished) != 1 {
		t.Fatalf("unexpected NewlyPublished %v", summary.NewlyPublished)
	}
}

func TestDuplicateDescriptorWarning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// two editions of the same work share name, description and image
	a := entry(1, "")
	b := entry(2, "")
	cat := Catalog{Assets: []Entry{a, b}}

	out, summary, err := f.reconciler.Run(ctx, cat)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.Assets[0].DescriptorURI != out.Assets[1].DescriptorURI {
		t.Fatal("identical metadata should resolve to one address")
	}
	if len(summary.DuplicateDescriptors) != 1 {
		t.Fatalf("expected a duplicate descriptor warning, got %v", summary.DuplicateDescriptors)
	}
}

func TestRunStampsSigningContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, _, err := f.reconciler.Run(ctx, Catalog{Assets: []Entry{entry(1, "")}})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.Context.SignatureDomain != testDomain {
		t.Fatalf("unexpected signing domain %+v", out.Context.SignatureDomain)
	}
	if out.Context.Authority != authorityAddr || out.Context.Creator != creatorAddr {
		t.Fatal("run context must carry the operator identities")
	}
}

func TestSigningDomainPrefersCatalogContext(t *testing.T) {
	local := testDomain
	local.ChainID = 1

	// a fresh catalog has no context and takes the configured domain
	if got := (Catalog{}).SigningDomain(local); got != local {
		t.Fatalf("expected fallback domain, got %+v", got)
	}

	// a reconciled catalog pins the domain of its previous run
	cat := Catalog{Context: Context{SignatureDomain: testDomain}}
	if got := cat.SigningDomain(local); got != testDomain {
		t.Fatalf("expected catalog domain, got %+v", got)
	}
}

func TestSaveCatalogIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")

	id := uint64(1)
	cat := Catalog{Assets: []Entry{{AssetID: &id, Metadata: Metadata{Name: "A", Description: "d"}, SourceImage: "a.png"}}}
	if err := SaveCatalog(path, cat); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Assets) != 1 || loaded.Assets[0].id() != 1 {
		t.Fatalf("unexpected catalog %+v", loaded)
	}

	// no tempfile debris left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the catalog file, found %d entries", len(entries))
	}
}
