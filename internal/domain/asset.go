package domain

import (
	sdkmath "cosmossdk.io/math"
)

// Asset is one uniquely identified item on the ledger. An issued asset
// always has an owner and a descriptor; a price of zero means not for sale.
type Asset struct {
	ID         uint64      `json:"assetId"`
	Owner      string      `json:"owner"`
	Descriptor string      `json:"descriptorUri"`
	Price      sdkmath.Int `json:"price"`
	Burnt      bool        `json:"burnt"`
}

// Roles gating administrative capabilities. Agent is the issuing authority;
// Admin grants and revokes roles and adjusts the royalty rate; Treasurer
// triggers settlement releases.
const (
	RoleAdmin     = "admin"
	RoleAgent     = "agent"
	RoleTreasurer = "treasurer"
)

// Payee is one row of the proportional settlement table.
type Payee struct {
	Account  string      `json:"account"`
	Shares   uint64      `json:"shares"`
	Released sdkmath.Int `json:"released"`
}

// Release is the audit record of one outbound settlement transfer.
type Release struct {
	Account string      `json:"account"`
	Amount  sdkmath.Int `json:"amount"`
}
