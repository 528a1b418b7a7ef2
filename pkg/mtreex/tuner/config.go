package tuner

// Worker configuration limits.
const (
	// maxWorkers is the maximum number of workers for any pool.
	maxWorkers = 64

	// minWalkWorkers is the minimum number of directory walking workers.
	minWalkWorkers = 4

	// maxWalkWorkers caps walkers; beyond this readdir contention dominates.
	maxWalkWorkers = 32

	// minDigestWorkers is the minimum number of hashing workers.
	minDigestWorkers = 2
)

// Memory-based sizing constants.
const (
	// bytesPerDigestWorker estimates the memory one hashing worker holds:
	// the copy buffer plus hash state for every algorithm.
	bytesPerDigestWorker = 256 * 1024

	// digestMemoryFraction is the fraction of available RAM hashing may use.
	digestMemoryFraction = 0.01
)

// Workers contains the tuned pool sizes.
type Workers struct {
	// Walk is the number of fastwalk workers reading directories.
	Walk int

	// Digest is the number of files hashed concurrently.
	Digest int
}

// Calculate returns pool sizes for the given resources.
//
//   - Walk: NumCPU, between 4 and 32. Directory reads are metadata-heavy
//     and benefit from some parallelism even on small systems.
//   - Digest: NumCPU * 2, since hashing alternates between reading and
//     computing, bounded below by 2 and above by 64 and by memory.
func Calculate(resources SystemResources) Workers {
	walk := max(resources.CPUCores, minWalkWorkers)
	walk = min(walk, maxWalkWorkers)

	digest := resources.CPUCores * 2
	digest = min(digest, maxWorkers, memoryBound(resources.AvailableRAM))
	digest = max(digest, minDigestWorkers)

	return Workers{Walk: walk, Digest: digest}
}

// CalculateWithOverrides applies a user override to the calculated sizes.
// A positive override sets the digest pool (still capped at 64); zero or a
// negative value keeps the calculated size.
func CalculateWithOverrides(resources SystemResources, override int) Workers {
	w := Calculate(resources)
	if override > 0 {
		w.Digest = min(override, maxWorkers)
	}
	return w
}

// memoryBound returns how many hashing workers fit in the memory budget.
// Unknown memory imposes no bound.
func memoryBound(availableRAM int64) int {
	if availableRAM <= 0 {
		return maxWorkers
	}
	return int(float64(availableRAM) * digestMemoryFraction / bytesPerDigestWorker)
}

// Auto detects resources and returns the sizes for them. Detection
// failures fall back to sizing on CPU count alone.
func Auto(override int) Workers {
	res, err := Detect()
	if err != nil {
		logger.Debug("resource detection failed", "error", err)
	}
	return CalculateWithOverrides(res, override)
}
