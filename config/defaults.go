package config

import "time"

// Default runtime limits and guardrails for the registry analysis server.
// Conservative values; the loader in this package layers file and environment
// overrides on top. They are referenced by internal/runtime.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10
	DefaultMaxOpenWorkbooks      = 4

	// Payload and row limits
	DefaultMaxPayloadBytes = 128 * 1024 // 128KB
	DefaultMaxCellsPerOp   = 10_000
	DefaultPreviewRowLimit = 10 // First 10 rows by default

	// Remote workbook fetches
	DefaultMaxFetchBytes = 32 * 1024 * 1024 // 32MB

	// Value-count reporting
	DefaultTopValues = 10

	// Profile cache capacity (entries, FIFO eviction)
	DefaultProfileCacheEntries = 64
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
	DefaultFetchTimeout          = 30 * time.Second

	// Workbook handle lifecycle
	DefaultWorkbookIdleTTL       = 10 * time.Minute
	DefaultWorkbookCleanupPeriod = time.Minute
)
