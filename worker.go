package training

// WorkerIdentity fixes this process's position in the distributed worker
// group and the warm-up threshold after which partitioning begins. It is
// resolved once at session construction and immutable thereafter.
type WorkerIdentity struct {
	Rank          int
	WorkerCount   int
	WarmupSamples uint64
}

// resolveWorkerIdentity scans the trainer's learners for distributed facets.
// The warm-up threshold is the maximum required by any distributed learner,
// not the first one found. All distributed learners must agree on rank and
// worker count; a disagreement fails construction rather than silently
// picking a winner.
func resolveWorkerIdentity(trainer Trainer) (WorkerIdentity, error) {
	identity := WorkerIdentity{Rank: 0, WorkerCount: 1}
	found := false
	for _, learner := range trainer.ParameterLearners() {
		facet, ok := learner.Distributed()
		if !ok {
			continue
		}
		if facet.WorkerCount < 1 || facet.Rank < 0 || facet.Rank >= facet.WorkerCount {
			return WorkerIdentity{}, newConfigError("trainer",
				"learner reports invalid worker rank %d of %d", facet.Rank, facet.WorkerCount)
		}
		if found && (facet.Rank != identity.Rank || facet.WorkerCount != identity.WorkerCount) {
			return WorkerIdentity{}, newConfigError("trainer",
				"distributed learners disagree on worker identity: rank %d of %d vs rank %d of %d",
				identity.Rank, identity.WorkerCount, facet.Rank, facet.WorkerCount)
		}
		if !found {
			identity.Rank = facet.Rank
			identity.WorkerCount = facet.WorkerCount
			found = true
		}
		if facet.WarmupSamples > identity.WarmupSamples {
			identity.WarmupSamples = facet.WarmupSamples
		}
	}
	return identity, nil
}

// Partition returns the effective worker rank and count for the given
// cumulative sample count. Below the warm-up threshold every worker
// processes the full, unpartitioned batch; at the threshold and beyond, the
// real rank and count apply.
func (w WorkerIdentity) Partition(samplesSeen uint64) (rank, workerCount int) {
	if samplesSeen < w.WarmupSamples {
		return 0, 1
	}
	return w.Rank, w.WorkerCount
}
