package metrics

// Pre-defined metrics for the dagrid data availability engine. All metrics
// live in DefaultRegistry so they are globally accessible without passing a
// registry around.

var (
	// ---- Grid metrics ----

	// MatricesBuilt counts extended matrices assembled from payload bytes.
	MatricesBuilt = DefaultRegistry.Counter("grid.matrices_built")
	// MatrixBuildTime records matrix build duration in milliseconds,
	// including the per-row erasure extension.
	MatrixBuildTime = DefaultRegistry.Histogram("grid.matrix_build_ms")

	// ---- Commitment metrics ----

	// CommitsComputed counts row polynomial commitments produced.
	CommitsComputed = DefaultRegistry.Counter("kzg.commits")
	// ProofsOpened counts single-column opening proofs produced.
	ProofsOpened = DefaultRegistry.Counter("kzg.proofs_opened")
	// BatchProofsOpened counts multi-column opening proofs produced.
	BatchProofsOpened = DefaultRegistry.Counter("kzg.batch_proofs_opened")
	// ProofsVerified counts proof verifications that completed, whatever
	// the outcome.
	ProofsVerified = DefaultRegistry.Counter("kzg.proofs_verified")
	// ProofsRejected counts verifications that returned a cryptographic
	// mismatch. Malformed inputs are not counted here.
	ProofsRejected = DefaultRegistry.Counter("kzg.proofs_rejected")
	// MatrixCommitTime records full-matrix commitment duration in
	// milliseconds.
	MatrixCommitTime = DefaultRegistry.Histogram("kzg.matrix_commit_ms")

	// ---- Recovery metrics ----

	// CellsVerified counts sampled cells accepted against a row commitment.
	CellsVerified = DefaultRegistry.Counter("recovery.cells_verified")
	// CellsRejected counts sampled cells whose proof failed verification.
	CellsRejected = DefaultRegistry.Counter("recovery.cells_rejected")
	// SampleRate tracks the rate of cell samples submitted for verification,
	// whatever the outcome.
	SampleRate = DefaultRegistry.Meter("recovery.sample_rate")
	// RowsRecovered counts rows successfully rebuilt from sampled cells.
	RowsRecovered = DefaultRegistry.Counter("recovery.rows_recovered")
	// RowsMissing counts rows that could not be rebuilt for lack of cells.
	RowsMissing = DefaultRegistry.Counter("recovery.rows_missing")
	// MatrixRecoverTime records full-matrix reconstruction duration in
	// milliseconds.
	MatrixRecoverTime = DefaultRegistry.Histogram("recovery.matrix_recover_ms")

	// ---- Header metrics ----

	// HeadersEncoded counts header extensions serialised to bytes.
	HeadersEncoded = DefaultRegistry.Counter("header.encoded")
	// HeadersDecoded counts header extensions parsed from bytes.
	HeadersDecoded = DefaultRegistry.Counter("header.decoded")
)
