package coordinator

// Exported for white-box tests.
var Ingest = (*Coordinator).ingest
