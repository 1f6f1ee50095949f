package admin

// SupportedFeatures provides a summary of what an admin client supports.
type SupportedFeatures struct {
	// Reads indicates whether the client supports reading brokers and assignments.
	Reads bool

	// Reassignments indicates whether the client can submit partition reassignments.
	Reassignments bool

	// Elections indicates whether the client can trigger preferred leader elections.
	Elections bool

	// Locks indicates whether the client supports locking.
	Locks bool
}
