package exitcodes

// Exit codes for the agesweep daemon and CLI.
// These codes form the operational contract with cron, CI and operators.
const (
	Success         = 0 // Successful execution
	InvalidConfig   = 2 // Configuration file invalid or missing
	SafetyViolation = 3 // Safety guard refused at least one removal
	RuntimeError    = 4 // A job failed or the daemon could not run
)

// ForRun maps the outcome of a single run to an exit code.
// A job error outranks a safety refusal.
func ForRun(err error, safetyBlocked bool) int {
	switch {
	case err != nil:
		return RuntimeError
	case safetyBlocked:
		return SafetyViolation
	default:
		return Success
	}
}
