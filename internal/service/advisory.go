package service

// AdvisoryTier classifies how far an expired project fell short.
type AdvisoryTier string

const (
	AdvisoryNoApplicants AdvisoryTier = "no_applicants"
	AdvisoryShortOne     AdvisoryTier = "short_one"
	AdvisoryShortFew     AdvisoryTier = "short_few"
	AdvisoryShortMany    AdvisoryTier = "short_many"
)

type Advisory struct {
	Tier      AdvisoryTier `json:"tier"`
	Shortfall int          `json:"shortfall"`
	Message   string       `json:"message"`
}

// BuildAdvisory picks the advice for a project that received totalBids bids
// and is shortfall contractors short.
func BuildAdvisory(totalBids int64, shortfall int) Advisory {
	advisory := Advisory{Shortfall: shortfall}
	switch {
	case totalBids == 0:
		advisory.Tier = AdvisoryNoApplicants
		advisory.Message = "No contractor applied. Consider raising the budget by 10 to 20 percent and extending the bidding deadline by at least two weeks."
	case shortfall == 1:
		advisory.Tier = AdvisoryShortOne
		advisory.Message = "One contractor slot is still open. The price looks acceptable; extending the deadline by one week is usually enough."
	case shortfall <= 3:
		advisory.Tier = AdvisoryShortFew
		advisory.Message = "Several contractor slots are still open. Consider raising the budget by about 10 percent and extending the deadline by two weeks."
	default:
		advisory.Tier = AdvisoryShortMany
		advisory.Message = "Most contractor slots are still open. Consider splitting the work into smaller packages or substantially revising the budget before reopening."
	}
	return advisory
}
