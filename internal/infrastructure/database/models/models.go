package models

import (
	"time"
)

type Asset struct {
	ID            uint64    `json:"assetId" gorm:"primaryKey"`
	Owner         string    `json:"owner" gorm:"type:text;index"`
	DescriptorURI string    `json:"descriptorUri" gorm:"type:text"`
	SalePrice     string    `json:"salePrice" gorm:"type:text;not null;default:'0'"`
	Burnt         bool      `json:"burnt" gorm:"not null;default:false"`
	CDate         time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate         time.Time `json:"mdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type RevokedID struct {
	ID    uint64    `json:"assetId" gorm:"primaryKey"`
	CDate time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type Approval struct {
	AssetID  uint64 `json:"assetId" gorm:"primaryKey"`
	Asset    Asset  `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	Operator string `json:"operator" gorm:"primaryKey;type:text"`
}

// LedgerState is the singleton row carrying the identifier floor, the
// royalty rate and the cumulative settlement receipts.
type LedgerState struct {
	ID            uint32 `json:"-" gorm:"primaryKey"`
	IdFloor       uint64 `json:"idFloor" gorm:"not null;default:0"`
	RoyaltyBps    uint32 `json:"royaltyBps" gorm:"not null;default:0"`
	TotalReceived string `json:"totalReceived" gorm:"type:text;not null;default:'0'"`
}

type RoleGrant struct {
	Role      string    `json:"role" gorm:"primaryKey;type:text"`
	Principal string    `json:"principal" gorm:"primaryKey;type:text"`
	CDate     time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type PayeeShare struct {
	Account  string `json:"account" gorm:"primaryKey;type:text"`
	Shares   uint64 `json:"shares" gorm:"not null;default:0"`
	Released string `json:"released" gorm:"type:text;not null;default:'0'"`
}

// FundTransfer is the audit log of outbound value: payee releases and
// direct seller payouts.
type FundTransfer struct {
	ID      int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Account string    `json:"account" gorm:"type:text;index"`
	Amount  string    `json:"amount" gorm:"type:text;not null"`
	Kind    string    `json:"kind" gorm:"type:text;not null"`
	CDate   time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// FundTransfer kinds.
const (
	KindRelease = "release"
	KindPayout  = "payout"
)
