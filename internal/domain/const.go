package domain

// Echo/request context keys for the authenticated caller.
const (
	RequesterIdCtxKey = "ns-requesterId"
)

const (
	RequesterIdHeader = "ns-requester-address"
)

// BasisPointsDenominator is the royalty rate denominator: 10000 = 100%.
const BasisPointsDenominator = 10000
