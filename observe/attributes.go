package observe

// Timeline attribute keys set by retry loops and poll operations.
const (
	// AttrTerminal names the terminal error kind: permanent, exhausted,
	// cancelled or not_converged.
	AttrTerminal = "terminal"
	// AttrBudget is the name of the retry budget, when one is configured.
	AttrBudget = "budget"
	// AttrPages is the number of pages fetched by a paginated listing.
	AttrPages = "pages"
	// AttrTimers is the number of backoff timers a poll operation scheduled.
	AttrTimers = "timers"
)
