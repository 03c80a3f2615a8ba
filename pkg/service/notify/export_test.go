package notify

// Export internal builders for testing
var (
	BuildArrivalBlocks   = buildArrivalBlocks
	BuildDepartureBlocks = buildDepartureBlocks
	BuildSummaryBlocks   = buildSummaryBlocks
)
