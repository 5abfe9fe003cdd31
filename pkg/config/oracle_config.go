package config

import (
	"errors"
	"fmt"
)

// Oracle defaults.
const (
	DefaultOracleCount = 20
	// DefaultStake is 10 GAS.
	DefaultStake                  = 10_0000_0000
	DefaultMaxConcurrentBootstrap = 8
)

// Oracle is the configuration of the oracle coordination service.
type Oracle struct {
	// UnlockWallet is the wallet holding the identity pool: the first account
	// is the owner (airline), the following OracleCount ones are oracles.
	UnlockWallet Wallet `yaml:"UnlockWallet"`
	OracleCount  int    `yaml:"OracleCount"`
	// Stake is the amount (in GAS fractions) attached to oracle registration
	// and airline funding.
	Stake int64 `yaml:"Stake"`
	// Flights are registered for the owner airline on startup.
	Flights                []string `yaml:"Flights"`
	MaxConcurrentBootstrap int      `yaml:"MaxConcurrentBootstrap"`
	// RandomSeed makes reported status codes reproducible if non-zero.
	RandomSeed uint64 `yaml:"RandomSeed"`
}

// Wallet is a wallet path with the password to unlock its accounts.
type Wallet struct {
	Path     string `yaml:"Path"`
	Password string `yaml:"Password"`
}

// Validate checks Oracle configuration.
func (o Oracle) Validate() error {
	if o.UnlockWallet.Path == "" {
		return errors.New("empty UnlockWallet.Path")
	}
	if o.OracleCount < 1 {
		return fmt.Errorf("OracleCount should be positive, got %d", o.OracleCount)
	}
	if o.Stake <= 0 {
		return fmt.Errorf("Stake should be positive, got %d", o.Stake)
	}
	if len(o.Flights) == 0 {
		return errors.New("no Flights to register")
	}
	for i, f := range o.Flights {
		if f == "" {
			return fmt.Errorf("empty flight name #%d", i)
		}
	}
	if o.MaxConcurrentBootstrap < 1 {
		return fmt.Errorf("MaxConcurrentBootstrap should be positive, got %d", o.MaxConcurrentBootstrap)
	}
	return nil
}
