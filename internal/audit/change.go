package audit

// State is the tracked state of an entity within one unit of work.
type State int

const (
	Detached State = iota
	Unchanged
	Added
	Modified
	Deleted
)

func (s State) String() string {
	switch s {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Unchanged:
		return "unchanged"
	default:
		return "detached"
	}
}

// Change is one tracked entity mutation. Entity must be a pointer to a gorm model.
// Original holds the pre-modification snapshot and is required for Modified changes.
type Change struct {
	State    State
	Entity   any
	Original any
}

// Create, Update and Delete build the corresponding changes.
func Create(entity any) Change { return Change{State: Added, Entity: entity} }

func Update(entity, original any) Change {
	return Change{State: Modified, Entity: entity, Original: original}
}

func Delete(entity any) Change { return Change{State: Deleted, Entity: entity} }

// Snapshot returns a shallow copy of entity suitable for use as Change.Original.
func Snapshot[T any](entity *T) *T {
	if entity == nil {
		return nil
	}
	cp := *entity
	return &cp
}
