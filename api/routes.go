package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// CallsEndpoint receives signed calls to execute on the chain
	CallsEndpoint = "/calls"
	// ChainEndpoint returns the current block height
	ChainEndpoint = "/chain"
	// NonceEndpoint returns the next call nonce of an account
	AddressURLParam = "address"
	NonceEndpoint   = "/accounts/{" + AddressURLParam + "}/nonce"

	// ElectionsEndpoint lists the election ids
	ElectionsEndpoint = "/elections"
	// ElectionEndpoint returns the election record
	ElectionURLParam = "electionId"
	ElectionEndpoint = ElectionsEndpoint + "/{" + ElectionURLParam + "}"
	// VoterEndpoint tells whether an account is registered in the election
	VoterEndpoint = ElectionEndpoint + "/voters/{" + AddressURLParam + "}"
	// BallotsEndpoint returns the ballot count, and the ballots if withData
	// is set
	BallotsEndpoint  = ElectionEndpoint + "/ballots"
	WithDataQueryKey = "withData"
	// BallotEndpoint returns a single ballot
	BallotURLParam = "index"
	BallotEndpoint = BallotsEndpoint + "/{" + BallotURLParam + "}"
	// TallyEndpoint returns the tally of a finalized election
	TallyEndpoint = ElectionEndpoint + "/tally"
	// ElectionJobEndpoint returns the last mix job of the election
	ElectionJobEndpoint = ElectionEndpoint + "/job"

	// JobsEndpoint lists the mix jobs, optionally filtered by status
	JobsEndpoint   = "/jobs"
	StatusQueryKey = "status"
	// JobEndpoint returns a mix job
	JobURLParam = "jobId"
	JobEndpoint = JobsEndpoint + "/{" + JobURLParam + "}"

	// EventsEndpoint returns the events recorded since a sequence number
	EventsEndpoint = "/events"
	FromQueryKey   = "from"
	// MetricsEndpoint serves the prometheus metrics
	MetricsEndpoint = "/metrics"
)
