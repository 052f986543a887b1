package scoring

import (
	"github.com/google/uuid"
)

// catalogNamespace seeds deterministic ids for the built-in statistics so
// they stay stable across sessions and can be seeded into a database.
var catalogNamespace = uuid.MustParse("6f1c2b4e-2d11-4a8e-9c6b-211ba11211ba")

// CatalogID returns the id the built-in catalog assigns to a statistic name.
func CatalogID(name string) uuid.UUID {
	return uuid.NewSHA1(catalogNamespace, []byte(name))
}

func catalogEntry(name, rationale, assumptions, caveats string, v, r, a int) Statistic {
	return Statistic{
		ID:          CatalogID(name),
		Name:        name,
		Rationale:   rationale,
		Assumptions: assumptions,
		Caveats:     caveats,
		Scores:      DimensionScores{Validity: v, Relevance: r, Actionability: a},
	}
}

// DefaultCatalog returns the built-in service-record statistics used when
// no database is reachable.
func DefaultCatalog() []Statistic {
	return []Statistic{
		catalogEntry("Verification Date",
			"Ensures data accuracy and currency for decision-making",
			"Recent verification indicates higher data reliability and relevance",
			"Verification frequency may not reflect actual data quality; some stable data doesn't need frequent updates",
			5, 4, 3),
		catalogEntry("Referral Count",
			"Indicates service utilization and community demand patterns",
			"Higher referral counts suggest greater service relevance and effectiveness",
			"May reflect marketing success rather than service quality; doesn't account for referral success rates",
			4, 5, 4),
		catalogEntry("Record Completeness Score",
			"Complete records enable better matching and comprehensive service delivery",
			"More complete data leads to better service outcomes and decision-making",
			"Completeness doesn't guarantee accuracy; some fields may be irrelevant for certain services",
			5, 4, 5),
		catalogEntry("Response Time Metrics",
			"Critical for emergency services and client satisfaction",
			"Faster response times correlate with better client outcomes and service effectiveness",
			"Quality may be sacrificed for speed; some services benefit from thoughtful, slower approaches",
			4, 5, 4),
		catalogEntry("Success Rate Percentage",
			"Direct measure of service effectiveness and client outcomes",
			"Higher success rates indicate better service quality and resource allocation efficiency",
			"Success definitions vary; cherry-picking easier cases; external factors influence outcomes",
			5, 5, 3),
		catalogEntry("Geographic Coverage Area",
			"Determines service accessibility and equity across communities",
			"Broader coverage ensures more equitable access to services",
			"Coverage breadth may dilute service quality; travel distances may still create barriers",
			4, 4, 3),
		catalogEntry("Funding Stability Index",
			"Predicts service continuity and long-term planning capability",
			"Stable funding leads to consistent service delivery and better outcomes",
			"Funding stability doesn't guarantee service quality; may encourage complacency",
			3, 4, 2),
		catalogEntry("Wait Time Duration",
			"Impacts client satisfaction and service accessibility",
			"Shorter wait times improve client experience and service effectiveness",
			"Rush processing may reduce quality; some services require time for proper assessment",
			4, 4, 4),
		catalogEntry("Staff Certification Level",
			"Indicates service quality and professional competency",
			"Higher certification levels correlate with better service delivery and outcomes",
			"Certifications may not reflect practical skills; over-qualification may increase costs unnecessarily",
			3, 3, 3),
		catalogEntry("Client Satisfaction Rating",
			"Direct feedback on service quality and client experience",
			"Higher satisfaction indicates better service quality and client-centered approach",
			"Response bias; satisfied clients more likely to respond; satisfaction doesn't always equal effectiveness",
			4, 4, 4),
	}
}
