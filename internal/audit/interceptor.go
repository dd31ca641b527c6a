package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/fundraiser/internal/models"
	"github.com/charlesng35/fundraiser/internal/reqctx"
	"github.com/charlesng35/fundraiser/pkg/logger"
	"github.com/charlesng35/fundraiser/pkg/metrics"
)

// Interceptor applies a unit of work and its audit rows in a single transaction.
type Interceptor struct {
	db      *gorm.DB
	builder *Builder
	log     *zap.Logger
}

// NewInterceptor constructs an Interceptor. A nil builder uses default options.
func NewInterceptor(db *gorm.DB, builder *Builder) (*Interceptor, error) {
	if db == nil {
		return nil, errors.New("audit interceptor: db is required")
	}
	if builder == nil {
		builder = NewBuilder(BuilderOptions{})
	}
	return &Interceptor{
		db:      db,
		builder: builder,
		log:     logger.WithModule("audit"),
	}, nil
}

// CommitWithAudit stamps audited entities, persists every change and inserts the resulting
// audit rows atomically. Any failure rolls the whole unit back and is returned wrapped.
func (i *Interceptor) CommitWithAudit(ctx context.Context, rc reqctx.RequestContext, changes ...Change) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if rc.Now.IsZero() {
		rc.Now = time.Now().UTC()
	}

	stamp(rc, changes)

	var entries []models.AuditTrail
	err := i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, change := range changes {
			if err := apply(tx, change); err != nil {
				return err
			}
		}

		built, err := i.builder.Build(rc, changes)
		if err != nil {
			return err
		}
		if len(built) == 0 {
			return nil
		}
		if err := tx.Create(&built).Error; err != nil {
			return err
		}
		entries = built
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit changes: %w", err)
	}

	for _, entry := range entries {
		metrics.AuditEntriesWritten.WithLabelValues(string(entry.Action)).Inc()
	}
	if len(entries) > 0 {
		i.log.Debug("audit entries written", zap.Int("count", len(entries)), zap.String("actor", rc.ActorName))
	}
	return nil
}

func stamp(rc reqctx.RequestContext, changes []Change) {
	for _, change := range changes {
		stamped, ok := change.Entity.(models.Stamped)
		if !ok {
			continue
		}
		switch change.State {
		case Added:
			stamped.StampCreated(rc.ActorName, rc.Now)
		case Modified:
			stamped.StampModified(rc.ActorName, rc.Now)
		}
	}
}

func apply(tx *gorm.DB, change Change) error {
	if change.Entity == nil {
		return nil
	}
	switch change.State {
	case Added:
		return tx.Omit(clause.Associations).Create(change.Entity).Error
	case Modified:
		return tx.Omit(clause.Associations).Save(change.Entity).Error
	case Deleted:
		result := tx.Delete(change.Entity)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}
