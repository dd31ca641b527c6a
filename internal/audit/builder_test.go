package audit

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/fundraiser/internal/models"
	"github.com/charlesng35/fundraiser/internal/reqctx"
)

type gadget struct {
	ID      string `gorm:"primaryKey"`
	Address net.IP
	Label   *string
	Seen    time.Time
}

func (gadget) Audited() bool { return true }

type untracked struct {
	ID   string `gorm:"primaryKey"`
	Name string
}

func actor() reqctx.RequestContext {
	ip := "198.51.100.4"
	return reqctx.RequestContext{
		ActorID:   "u-1",
		ActorName: "alice",
		FullName:  "Alice Doe",
		IP:        &ip,
		Now:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func sampleUser() *models.User {
	return &models.User{
		BaseModel:     models.BaseModel{ID: "user-1"},
		Username:      "jdoe",
		Email:         "jdoe@example.com",
		FullName:      "John Doe",
		PasswordHash:  "hash",
		SecurityStamp: "stamp",
		RefreshToken:  "refresh",
		IsActive:      true,
	}
}

func TestBuildCreateRecordsNewValues(t *testing.T) {
	b := NewBuilder(BuilderOptions{})

	entries, err := b.Build(actor(), []Change{Create(sampleUser())})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	require.Equal(t, models.AuditActionCreate, entry.Action)
	require.Equal(t, "User", entry.EntityName)
	require.Equal(t, "alice", entry.Username)
	require.Equal(t, "Alice Doe", entry.FullName)
	require.Equal(t, "198.51.100.4", *entry.IPAddress)
	require.Equal(t, "alice created User", entry.Summary)
	require.Equal(t, "user-1", entry.KeyValues["ID"])
	require.Equal(t, "jdoe", entry.NewValues["Username"])
	require.Empty(t, entry.OldValues)
	require.Contains(t, entry.ChangedColumns, "Username")
	require.NotContains(t, entry.ChangedColumns, "ID")
	require.NotContains(t, entry.ChangedColumns, "CreatedBy")
	require.True(t, entry.Timestamp.Equal(actor().Now))
}

func TestBuildNeverRecordsSensitiveFields(t *testing.T) {
	b := NewBuilder(BuilderOptions{})
	before := sampleUser()
	after := sampleUser()
	after.PasswordHash = "rotated"
	after.SecurityStamp = "rotated"
	after.RefreshToken = "rotated"
	after.FullName = "Johnny Doe"

	changes := []Change{
		Create(sampleUser()),
		Update(after, before),
		Delete(sampleUser()),
	}
	entries, err := b.Build(actor(), changes)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	for _, entry := range entries {
		for _, field := range DefaultSensitiveFields {
			require.NotContains(t, entry.OldValues, field, "action %s", entry.Action)
			require.NotContains(t, entry.NewValues, field, "action %s", entry.Action)
			require.NotContains(t, entry.ChangedColumns, field, "action %s", entry.Action)
		}
	}
}

func TestBuildModifiedRecordsOnlyDifferences(t *testing.T) {
	b := NewBuilder(BuilderOptions{})
	before := sampleUser()
	after := sampleUser()
	after.Email = "john@example.com"

	entries, err := b.Build(actor(), []Change{Update(after, before)})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	require.Equal(t, models.AuditActionUpdate, entry.Action)
	require.Equal(t, []string{"Email"}, []string(entry.ChangedColumns))
	require.Equal(t, "jdoe@example.com", entry.OldValues["Email"])
	require.Equal(t, "john@example.com", entry.NewValues["Email"])
	require.Equal(t, "user-1", entry.KeyValues["ID"])
	require.Equal(t, "alice updated User", entry.Summary)
}

func TestBuildModifiedSkipsSensitiveChangesAlongsideOthers(t *testing.T) {
	before := sampleUser()
	after := sampleUser()
	after.FullName = "Johnny Doe"
	after.PasswordHash = "rotated"

	entries, err := NewBuilder(BuilderOptions{}).Build(actor(), []Change{Update(after, before)})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	require.Equal(t, []string{"FullName"}, []string(entry.ChangedColumns))
	require.Equal(t, map[string]any{"FullName": "Johnny Doe"}, map[string]any(entry.NewValues))
	require.Equal(t, map[string]any{"FullName": "John Doe"}, map[string]any(entry.OldValues))
}

func TestBuildLeavesStampFieldsOut(t *testing.T) {
	before := sampleUser()
	after := sampleUser()
	after.FullName = "Johnny Doe"
	after.CreatedAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	after.ModifiedAt = &modified

	entries, err := NewBuilder(BuilderOptions{}).Build(actor(), []Change{Create(after), Update(after, before)})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		for _, field := range models.StampFields {
			require.NotContains(t, entry.ChangedColumns, field, "action %s", entry.Action)
			require.NotContains(t, entry.NewValues, field, "action %s", entry.Action)
		}
	}
	require.Equal(t, []string{"FullName"}, []string(entries[1].ChangedColumns))
}

func TestBuildModifiedWithoutDifferencesStillProducesEntry(t *testing.T) {
	before := sampleUser()
	after := sampleUser()

	entries, err := NewBuilder(BuilderOptions{}).Build(actor(), []Change{Update(after, before)})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Empty(t, entries[0].ChangedColumns)
	require.Equal(t, models.AuditActionUpdate, entries[0].Action)

	entries, err = NewBuilder(BuilderOptions{SkipEmptyUpdates: true}).Build(actor(), []Change{Update(after, before)})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestBuildDeleteRecordsOldValues(t *testing.T) {
	entries, err := NewBuilder(BuilderOptions{}).Build(actor(), []Change{Delete(sampleUser())})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, models.AuditActionDelete, entries[0].Action)
	require.Equal(t, "jdoe", entries[0].OldValues["Username"])
	require.Empty(t, entries[0].NewValues)
	require.Equal(t, "alice deleted User", entries[0].Summary)
}

func TestBuildRequiresActor(t *testing.T) {
	rc := actor()
	rc.ActorName = "  "
	changes := []Change{
		Create(sampleUser()),
		Update(sampleUser(), sampleUser()),
		Delete(sampleUser()),
	}
	entries, err := NewBuilder(BuilderOptions{}).Build(rc, changes)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestBuildSkipsExemptEntitiesAndStates(t *testing.T) {
	changes := []Change{
		Create(&models.UserSession{ID: "s-1", UserID: "u-1"}),
		Create(&models.AuditTrail{ID: "a-1"}),
		Create(&models.UserRole{UserID: "u-1", RoleID: "r-1"}),
		Create(&models.UserClaim{ID: "c-1"}),
		Create(&models.RoleClaim{ID: "c-2"}),
		Create(&untracked{ID: "x"}),
		{State: Unchanged, Entity: sampleUser()},
		{State: Detached, Entity: sampleUser()},
		{State: Added},
	}
	entries, err := NewBuilder(BuilderOptions{}).Build(actor(), changes)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestBuildNormalizesValues(t *testing.T) {
	label := "edge"
	seen := time.Date(2024, 3, 1, 8, 0, 0, 0, time.FixedZone("X", 3600))
	p := &gadget{ID: "p-1", Address: net.ParseIP("10.0.0.1"), Label: &label, Seen: seen}

	entries, err := NewBuilder(BuilderOptions{}).Build(actor(), []Change{Create(p)})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	values := entries[0].NewValues
	require.Equal(t, "10.0.0.1", values["Address"])
	require.Equal(t, "edge", values["Label"])
	require.Equal(t, seen.UTC(), values["Seen"])
	require.Equal(t, "alice created gadget", entries[0].Summary)
	require.Equal(t, "gadget", entries[0].EntityName)
}

func TestBuildModifiedRequiresOriginal(t *testing.T) {
	_, err := NewBuilder(BuilderOptions{}).Build(actor(), []Change{{State: Modified, Entity: sampleUser()}})
	require.Error(t, err)
}

func TestBuildCustomSensitiveFields(t *testing.T) {
	b := NewBuilder(BuilderOptions{SensitiveFields: []string{"Email"}})
	entries, err := b.Build(actor(), []Change{Create(sampleUser())})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotContains(t, entries[0].NewValues, "Email")
	require.Contains(t, entries[0].NewValues, "Username")
}

func TestHumanize(t *testing.T) {
	cases := map[string]string{
		"UserSession": "User Session",
		"User":        "User",
		"AuditTrail":  "Audit Trail",
		"IPAddress":   "IP Address",
		"campaign":    "campaign",
	}
	for in, want := range cases {
		require.Equal(t, want, humanize(in), in)
	}
}
