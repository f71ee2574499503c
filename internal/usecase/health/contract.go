package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// MailChecker checks outbound mail availability.
type MailChecker interface {
	HealthCheck(ctx context.Context) error
}
