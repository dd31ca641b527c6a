package audit

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"

	"github.com/charlesng35/fundraiser/internal/models"
	"github.com/charlesng35/fundraiser/internal/reqctx"
)

// DefaultSensitiveFields are never written to audit value maps.
var DefaultSensitiveFields = []string{"PasswordHash", "RefreshToken", "SecurityStamp"}

// BuilderOptions tunes audit entry generation.
type BuilderOptions struct {
	// SensitiveFields overrides DefaultSensitiveFields when non-empty.
	SensitiveFields []string
	// SkipEmptyUpdates drops Modified entries whose diff is empty.
	SkipEmptyUpdates bool
}

// Builder turns the changes of one unit of work into audit trail rows.
type Builder struct {
	opts      BuilderOptions
	sensitive map[string]struct{}
	ignored   map[string]struct{}
	cache     *sync.Map
	namer     schema.Namer
}

// NewBuilder constructs a Builder. Primary keys go to KeyValues, and the sensitive fields
// and models.StampFields are left out of every entry, including Create rows.
func NewBuilder(opts BuilderOptions) *Builder {
	fields := opts.SensitiveFields
	if len(fields) == 0 {
		fields = DefaultSensitiveFields
	}
	sensitive := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		sensitive[f] = struct{}{}
	}
	ignored := make(map[string]struct{}, len(models.StampFields))
	for _, f := range models.StampFields {
		ignored[f] = struct{}{}
	}

	return &Builder{
		opts:      opts,
		sensitive: sensitive,
		ignored:   ignored,
		cache:     &sync.Map{},
		namer:     schema.NamingStrategy{},
	}
}

// Build returns one audit row per audited change. Rows are only produced when the
// request context carries an actor username.
func (b *Builder) Build(rc reqctx.RequestContext, changes []Change) ([]models.AuditTrail, error) {
	if rc.Anonymous() {
		return nil, nil
	}

	now := rc.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	entries := make([]models.AuditTrail, 0, len(changes))
	for _, change := range changes {
		if !b.tracks(change) {
			continue
		}

		entry, keep, err := b.entryFor(rc, now, change)
		if err != nil {
			return nil, err
		}
		if keep {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (b *Builder) tracks(change Change) bool {
	switch change.State {
	case Added, Modified, Deleted:
	default:
		return false
	}
	if change.Entity == nil {
		return false
	}
	auditable, ok := change.Entity.(models.Auditable)
	return ok && auditable.Audited()
}

func (b *Builder) entryFor(rc reqctx.RequestContext, now time.Time, change Change) (models.AuditTrail, bool, error) {
	sch, err := schema.Parse(change.Entity, b.cache, b.namer)
	if err != nil {
		return models.AuditTrail{}, false, fmt.Errorf("audit: parse %T: %w", change.Entity, err)
	}

	current := reflect.ValueOf(change.Entity)
	var original reflect.Value
	switch change.State {
	case Modified:
		if change.Original == nil {
			return models.AuditTrail{}, false, fmt.Errorf("audit: modified %s has no original snapshot", sch.Name)
		}
		original = reflect.ValueOf(change.Original)
	case Deleted:
		original = current
		if change.Original != nil {
			original = reflect.ValueOf(change.Original)
		}
	}

	ctx := context.Background()
	keys := datatypes.JSONMap{}
	oldValues := datatypes.JSONMap{}
	newValues := datatypes.JSONMap{}
	changed := datatypes.JSONSlice[string]{}
	action := actionFor(change.State)

	for _, field := range sch.Fields {
		if field.DBName == "" {
			continue
		}
		if field.PrimaryKey {
			value, _ := field.ValueOf(ctx, current)
			keys[field.Name] = normalize(value)
			continue
		}
		if _, skip := b.sensitive[field.Name]; skip {
			continue
		}
		if _, skip := b.ignored[field.Name]; skip {
			continue
		}

		switch change.State {
		case Added:
			value, _ := field.ValueOf(ctx, current)
			changed = append(changed, field.Name)
			newValues[field.Name] = normalize(value)
		case Deleted:
			value, _ := field.ValueOf(ctx, original)
			changed = append(changed, field.Name)
			oldValues[field.Name] = normalize(value)
		case Modified:
			before, _ := field.ValueOf(ctx, original)
			after, _ := field.ValueOf(ctx, current)
			oldNorm, newNorm := normalize(before), normalize(after)
			if equalValues(oldNorm, newNorm) {
				continue
			}
			changed = append(changed, field.Name)
			oldValues[field.Name] = oldNorm
			newValues[field.Name] = newNorm
		}
	}

	if change.State == Modified && len(changed) == 0 && b.opts.SkipEmptyUpdates {
		return models.AuditTrail{}, false, nil
	}

	return models.AuditTrail{
		Username:       rc.ActorName,
		FullName:       rc.FullName,
		IPAddress:      rc.IP,
		EntityName:     sch.Name,
		Action:         action,
		Timestamp:      now,
		KeyValues:      keys,
		OldValues:      oldValues,
		NewValues:      newValues,
		ChangedColumns: changed,
		Summary:        summary(rc.ActorName, action, sch.Name),
	}, true, nil
}

func actionFor(state State) models.AuditAction {
	switch state {
	case Added:
		return models.AuditActionCreate
	case Deleted:
		return models.AuditActionDelete
	default:
		return models.AuditActionUpdate
	}
}

func summary(actor string, action models.AuditAction, entity string) string {
	return fmt.Sprintf("%s %sd %s", actor, strings.ToLower(string(action)), humanize(entity))
}

// normalize converts a field value into a JSON-friendly form: pointers are dereferenced,
// times are kept, and any other fmt.Stringer (net.IP for example) is stringified.
func normalize(value any) any {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	value = rv.Interface()

	switch v := value.(type) {
	case time.Time:
		return v.UTC()
	case fmt.Stringer:
		return v.String()
	}
	return value
}

func equalValues(a, b any) bool {
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok || bok {
		return aok && bok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}
