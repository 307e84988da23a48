package config

import (
	"os"

	"github.com/go-yaml/yaml"

	"github.com/totegamma/nftsurface"
	"github.com/totegamma/nftsurface/internal/domain"
)

type Config struct {
	Ledger     domain.Config `yaml:"ledger"`
	Server     Server        `yaml:"server"`
	Settlement Settlement    `yaml:"settlement"`
	Reconciler Reconciler    `yaml:"reconciler"`
}

type Server struct {
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Settlement struct {
	RoyaltyBasisPoints uint64  `yaml:"royaltyBasisPoints"`
	Payees             []Payee `yaml:"payees"`
}

type Payee struct {
	Account string `yaml:"account"`
	Shares  uint64 `yaml:"shares"`
}

type Reconciler struct {
	CatalogPath     string `yaml:"catalogPath"`
	PinningEndpoint string `yaml:"pinningEndpoint"`
	PinningKey      string `yaml:"pinningKey"`
	PinningSecret   string `yaml:"pinningSecret"`
	LedgerEndpoint  string `yaml:"ledgerEndpoint"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	authority, err := nftsurface.PrivKeyToAddress(config.Ledger.PrivateKey)
	if err != nil {
		panic(err)
	}

	config.Ledger.Authority = authority

	return config, nil
}
