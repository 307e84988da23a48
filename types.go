package nftsurface

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Domain identifies one deployed ledger instance. A voucher signed under one
// domain never verifies under another, so signatures cannot be replayed
// across instances, versions or chains.
type Domain struct {
	Name     string `json:"name" yaml:"name"`
	Version  string `json:"version" yaml:"version"`
	ChainID  int64  `json:"chainId" yaml:"chainId"`
	Contract string `json:"verifyingContract" yaml:"verifyingContract"`
}

// Voucher authorizes the first issuance of one asset at one exact price and
// descriptor. It is never persisted by the ledger; it is presented at
// redemption and checked on the fly.
type Voucher struct {
	AssetID    uint64      `json:"assetId"`
	Price      sdkmath.Int `json:"weiPrice"`
	Descriptor string      `json:"descriptorUri"`
	Signature  string      `json:"signature"`
}

// Asset lifecycle states as reported by the ledger.
const (
	StatusVacant  = "vacant"
	StatusIssued  = "issued"
	StatusForSale = "forsale"
	StatusBurnt   = "burnt"
	StatusRevoked = "revoked"

	// StatusBelowFloor marks ids under the identifier floor; like revoked
	// and burnt it is terminal, but the cause is reported distinctly.
	StatusBelowFloor = "belowfloor"
)

// AssetState is the ledger's authoritative view of one asset.
type AssetState struct {
	AssetID    uint64      `json:"assetId"`
	Status     string      `json:"status"`
	Owner      string      `json:"owner,omitempty"`
	Descriptor string      `json:"descriptorUri,omitempty"`
	Price      sdkmath.Int `json:"price"`
}

// Event types announced on every state transition.
const (
	EventTransfer   = "transfer"
	EventPriceSet   = "priceset"
	EventBought     = "bought"
	EventReceipt    = "receipt"
	EventWithdrawal = "withdrawal"
	EventIdRevoked  = "idrevoked"
	EventFloorSet   = "floorset"
)

// Event is published to the realtime feed on each ledger transition.
type Event struct {
	Type    string       `json:"type"`
	AssetID uint64       `json:"assetId,omitempty"`
	From    string       `json:"from,omitempty"`
	To      string       `json:"to,omitempty"`
	Amount  *sdkmath.Int `json:"amount,omitempty"`
	Time    time.Time    `json:"time"`
}

// WellKnownSurface is served at /.well-known/nftsurface so that remote
// operators can confirm the exact signing domain of this instance before
// producing vouchers for it.
type WellKnownSurface struct {
	Version   string `json:"version"`
	Authority string `json:"authority"`
	Domain    Domain `json:"signatureDomain"`
}
