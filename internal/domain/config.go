package domain

import (
	"github.com/totegamma/nftsurface"
)

// Config is the runtime identity of one ledger instance, shared by the
// engine and the reconciler.
type Config struct {
	FQDN       string            `yaml:"fqdn"`
	Domain     nftsurface.Domain `yaml:"signatureDomain"`
	PrivateKey string            `yaml:"privatekey"`
	Creator    string            `yaml:"creator"`

	// derived from PrivateKey on load
	Authority string `yaml:"authority"`
}
