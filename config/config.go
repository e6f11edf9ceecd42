// Package config loads the build-time tuning parameters for the stake
// program: the warmup/cooldown rates, the activation-rate cutover epoch and
// the minimum delegation policy. These are cluster-wide constants in the
// runtime this program targets, but are kept file-configurable here so unit
// tests and local clusters can exercise both the legacy and current rates
// without recompiling.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// MinimumDelegationPolicy selects how GetMinimumDelegation computes its
// result, resolving the open question of whether the floor is denominated in
// raw lamports or whole token units.
type MinimumDelegationPolicy string

const (
	// MinimumDelegationLamports treats MinimumStakeDelegation as an exact
	// lamport amount.
	MinimumDelegationLamports MinimumDelegationPolicy = "lamports"
	// MinimumDelegationTokens treats MinimumStakeDelegation as a count of
	// whole tokens, scaled by LamportsPerToken.
	MinimumDelegationTokens MinimumDelegationPolicy = "tokens"
)

// Config holds the feature flags consulted by core/activation and
// core/processor. Zero values are invalid; always obtain a Config via Load.
type Config struct {
	// OriginalWarmupCooldownRateBps is the warmup/cooldown rate, in basis
	// points of cluster stake, applied at epochs before NewRateActivationEpoch.
	OriginalWarmupCooldownRateBps uint64 `toml:"OriginalWarmupCooldownRateBps"`
	// CurrentWarmupCooldownRateBps is the rate applied from
	// NewRateActivationEpoch onward.
	CurrentWarmupCooldownRateBps uint64 `toml:"CurrentWarmupCooldownRateBps"`
	// NewRateActivationEpoch is the first epoch at which
	// CurrentWarmupCooldownRateBps applies. A nil value (encoded as 0 with
	// NewRateActivationEpochSet=false) means the original rate always
	// applies, matching a cluster that has not yet activated the feature.
	NewRateActivationEpoch    uint64 `toml:"NewRateActivationEpoch"`
	NewRateActivationEpochSet bool   `toml:"NewRateActivationEpochSet"`

	// MinimumDelinquentEpochsForDeactivation is the number of consecutive
	// epochs a vote account must be delinquent before DeactivateDelinquent
	// will accept it as justification.
	MinimumDelinquentEpochsForDeactivation uint64 `toml:"MinimumDelinquentEpochsForDeactivation"`

	// MinimumDelegationPolicy and MinimumStakeDelegation together define the
	// floor enforced on newly delegated stake and reported by
	// GetMinimumDelegation.
	MinimumDelegationPolicy MinimumDelegationPolicy `toml:"MinimumDelegationPolicy"`
	MinimumStakeDelegation  uint64                  `toml:"MinimumStakeDelegation"`
	LamportsPerToken        uint64                  `toml:"LamportsPerToken"`
}

// EffectiveNewRateActivationEpoch returns the configured cutover epoch, or
// nil if the current rate has not yet activated on this cluster.
func (c *Config) EffectiveNewRateActivationEpoch() *uint64 {
	if !c.NewRateActivationEpochSet {
		return nil
	}
	epoch := c.NewRateActivationEpoch
	return &epoch
}

// MinimumDelegationLamportsValue resolves MinimumStakeDelegation to a lamport
// amount according to MinimumDelegationPolicy.
func (c *Config) MinimumDelegationLamportsValue() uint64 {
	if c.MinimumDelegationPolicy == MinimumDelegationTokens {
		return c.MinimumStakeDelegation * c.LamportsPerToken
	}
	return c.MinimumStakeDelegation
}

// Load loads the configuration from the given path, writing and returning a
// default configuration if no file exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file using the
// original warmup/cooldown rate (2500 bps) with no cutover to the current
// rate (900 bps) yet scheduled, and a one-lamport minimum delegation floor.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		OriginalWarmupCooldownRateBps:          2500,
		CurrentWarmupCooldownRateBps:           900,
		NewRateActivationEpochSet:              false,
		MinimumDelinquentEpochsForDeactivation: 5,
		MinimumDelegationPolicy:                MinimumDelegationLamports,
		MinimumStakeDelegation:                 1,
		LamportsPerToken:                       1_000_000_000,
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
