package types

// Clock mirrors the cluster clock sysvar fields the stake program consults:
// the current epoch and the Unix timestamp at which it started.
type Clock struct {
	Epoch          Epoch
	UnixTimestamp  UnixTimestamp
	EpochStartTime UnixTimestamp
}

// Rent mirrors the rent sysvar's minimum-balance calculation. Only the
// function the stake program needs is kept; rent-exemption elsewhere in the
// runtime is out of scope here.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
}

// accountStorageOverhead is the constant number of bytes of book-keeping
// overhead the rent calculation charges every account in addition to its
// declared data length, matching the legacy rent sysvar's own constant.
const accountStorageOverhead = 128

// MinimumBalance returns the rent-exempt reserve for an account of the given
// data length.
func (r Rent) MinimumBalance(dataLen uint64) Lamports {
	bytesCharged := float64(dataLen + accountStorageOverhead)
	return uint64(bytesCharged * float64(r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// StakeHistoryEntry records, for one epoch, the cluster-wide totals needed by
// the activation/deactivation formula.
type StakeHistoryEntry struct {
	Effective    Lamports // total effective stake at the end of the epoch
	Activating   Lamports // total activating stake during the epoch
	Deactivating Lamports // total deactivating stake during the epoch
}

// StakeHistory answers "what were the cluster-wide activating/deactivating
// totals in epoch E" for the epochs walked by the activation formula. It is
// supplied by the runtime hosting this program; the program never mutates it.
type StakeHistory interface {
	Get(epoch Epoch) (StakeHistoryEntry, bool)
}

// StaticStakeHistory is a map-backed StakeHistory used by tests and by
// simple embedders that snapshot history up front rather than querying a
// live sysvar account.
type StaticStakeHistory map[Epoch]StakeHistoryEntry

func (h StaticStakeHistory) Get(epoch Epoch) (StakeHistoryEntry, bool) {
	entry, ok := h[epoch]
	return entry, ok
}

// EpochRewards mirrors the epoch-rewards sysvar. While the reward
// distribution that populates it is out of scope for this module, the
// processor must still refuse every instruction except GetMinimumDelegation
// while a reward-distribution epoch is in progress.
type EpochRewards struct {
	Active bool
}
