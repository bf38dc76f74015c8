package supervisor

import "errors"

var (
	// ErrRestartBudgetExhausted is returned when a restart is requested after
	// the daily budget is spent. The service transitions to
	// failed_permanently and no restart command is invoked.
	ErrRestartBudgetExhausted = errors.New("restart budget exhausted")

	// ErrRestartCommandFailed wraps a restart command that exited non-zero or
	// timed out. Retried on the next unhealthy detection up to the budget.
	ErrRestartCommandFailed = errors.New("restart command failed")

	// ErrStatePersistence marks a failed write of the supervision record.
	// While persistence is failing the watcher refuses to spend restart
	// budget it cannot account for.
	ErrStatePersistence = errors.New("state persistence failed")

	// ErrUnknownService is returned for operations on a name the supervisor
	// does not manage.
	ErrUnknownService = errors.New("unknown service")

	// ErrAlreadyManaged is returned when adding a duplicate service name.
	ErrAlreadyManaged = errors.New("service already managed")
)
