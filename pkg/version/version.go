package version

// Version is the current version of rebalancectl.
const Version = "0.3.0"
