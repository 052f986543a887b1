package events

const (
	SubjectAll              = "moneyball.>"
	SubjectWeightsUpdated   = "moneyball.weights.updated"
	SubjectWeightsSaved     = "moneyball.weights.saved"
	SubjectCatalogReloaded  = "moneyball.catalog.reloaded"
	SubjectCatalogSynced    = "moneyball.catalog.synced"

	StreamName   = "MONEYBALL_EVENTS"
	StreamMaxAge = "168h" // 7 days
)

func SubjectScoreUpdated(statisticID string) string {
	return "moneyball.statistic." + statisticID + ".score_updated"
}

func SubjectStrategyApplied(key string) string {
	return "moneyball.strategy." + key + ".applied"
}
