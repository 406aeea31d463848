// Package config holds the network-dependent constants the KDF and work
// pool treat as compile-time knobs in the reference implementation: Argon2i
// memory cost, the work-pool difficulty threshold, and worker count. Named
// profiles mirror the teacher's ledger/block constant-table style — no
// env/flag parsing lives here, the embedding node picks a Profile and hands
// it to the packages that need it.
package config

// Profile bundles every network-dependent constant the wallet core
// consults.
type Profile struct {
	Name string

	// ArgonMemoryKiB is the Argon2i memory cost, in KiB, passed to
	// golang.org/x/crypto/argon2.Key.
	ArgonMemoryKiB uint32

	// WorkThreshold is the work pool's difficulty threshold: a candidate
	// nonce is valid iff its work value is strictly less than this.
	WorkThreshold uint64

	// WorkerCount is the number of CPU worker goroutines the work pool
	// runs. 0 means "use min(runtime.NumCPU(), a sane cap)".
	WorkerCount int
}

// Live is the production network profile: a memory-hard KDF (64 MiB) and a
// difficulty threshold tuned for real proof-of-work.
var Live = Profile{
	Name:           "live",
	ArgonMemoryKiB: 64 * 1024,
	WorkThreshold:  0x0000004000000000,
	WorkerCount:    0,
}

// Test is the test-network profile: a tiny KDF memory cost for fast unit
// tests and a single worker for deterministic work-pool behavior.
var Test = Profile{
	Name:           "test",
	ArgonMemoryKiB: 8,
	WorkThreshold:  0x0100000000000000,
	WorkerCount:    1,
}
