// Package config defines the constants that govern slot timing, committee
// sizing, and subnet layout for the duties engine. Values mirror the mainnet
// beacon-chain presets; callers may override individual fields for testnets.
package config

import "github.com/prysmaticlabs/duties-engine/primitives"

// EngineConfig bundles the constants the duty engine needs on every slot
// tick. Modeled on params.BeaconChainConfig, trimmed to what this engine
// actually consumes.
type EngineConfig struct {
	SecondsPerSlot   uint64         `yaml:"SECONDS_PER_SLOT"`
	IntervalsPerSlot uint64         `yaml:"INTERVALS_PER_SLOT"`
	SlotsPerEpoch    primitives.Slot `yaml:"SLOTS_PER_EPOCH"`

	TargetAggregatorsPerCommittee         uint64 `yaml:"TARGET_AGGREGATORS_PER_COMMITTEE"`
	TargetAggregatorsPerSyncSubcommittee  uint64 `yaml:"TARGET_AGGREGATORS_PER_SYNC_SUBCOMMITTEE"`
	AttestationSubnetCount                uint64 `yaml:"ATTESTATION_SUBNET_COUNT"`
	SyncCommitteeSize                     uint64 `yaml:"SYNC_COMMITTEE_SIZE"`
	SyncCommitteeSubnetCount              uint64 `yaml:"SYNC_COMMITTEE_SUBNET_COUNT"`
	EpochsPerSyncCommitteePeriod          primitives.Epoch `yaml:"EPOCHS_PER_SYNC_COMMITTEE_PERIOD"`

	// SubnetSubscriptionLeadTimeSlots is how many slots ahead of wall-clock
	// the ActionTracker registers subnet subscriptions and aggregator
	// selections for.
	SubnetSubscriptionLeadTimeSlots primitives.Slot

	// SyncHorizonSlots is the maximum number of slots the head may lag the
	// wall-clock slot before the engine considers itself not synced.
	SyncHorizonSlots primitives.Slot
}

// Mainnet returns the standard mainnet configuration.
func Mainnet() *EngineConfig {
	return &EngineConfig{
		SecondsPerSlot:                        12,
		IntervalsPerSlot:                       3,
		SlotsPerEpoch:                          32,
		TargetAggregatorsPerCommittee:          16,
		TargetAggregatorsPerSyncSubcommittee:   16,
		AttestationSubnetCount:                 64,
		SyncCommitteeSize:                      512,
		SyncCommitteeSubnetCount:               4,
		EpochsPerSyncCommitteePeriod:           256,
		SubnetSubscriptionLeadTimeSlots:        32,
		SyncHorizonSlots:                       8,
	}
}
