package strategy

// Section names, used for progress events, ledger keys, fixture files and
// error reports.
const (
	SectionIndustryResearch = "industry-research"
	SectionCompetitorIntel  = "competitor-intel"
	SectionICPAnalysis      = "icp-analysis"
	SectionOfferAnalysis    = "offer-analysis"
	SectionReconciliation   = "reconciliation"
	SectionEnrichment       = "enrichment"
	SectionSynthesis        = "synthesis"
	SectionHooks            = "hooks"
)
