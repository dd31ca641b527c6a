package checks

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/fundraiser/internal/monitoring"
)

// Database pings the configured database handle.
func Database(db *gorm.DB) monitoring.Check {
	return monitoring.Check{Name: "database", Probe: func(ctx context.Context) error {
		if db == nil {
			return errors.New("database not configured")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}
}

// Breaker is implemented by clients guarded by a circuit breaker.
type Breaker interface {
	BreakerOpen() bool
}

// CircuitBreaker reports the component as degraded while its breaker is open. Logins keep
// working without the optional dependency.
func CircuitBreaker(name string, b Breaker) monitoring.Check {
	return monitoring.Check{Name: name, Probe: func(context.Context) error {
		if b != nil && b.BreakerOpen() {
			return fmt.Errorf("%w: circuit breaker open", monitoring.ErrDegraded)
		}
		return nil
	}}
}
