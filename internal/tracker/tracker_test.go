package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID    int
	Name  string
	Since time.Time
}

func snap(r *row) []any { return []any{r.ID, r.Name, r.Since} }

func loaded() []*row {
	return []*row{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 3, Name: "c"}}
}

func TestModifiedComparesByValue(t *testing.T) {
	rows := loaded()
	tr := New(rows, snap)
	assert.Empty(t, tr.Modified(rows))

	rows[1].Name = "changed"
	assert.Equal(t, []*row{rows[1]}, tr.Modified(rows))

	rows[1].Name = "b"
	assert.Empty(t, tr.Modified(rows), "restoring the value clears the modification")
}

func TestModifiedTreatsEqualTimesAsUnchanged(t *testing.T) {
	now := time.Now()
	rows := []*row{{ID: 1, Since: now}}
	tr := New(rows, snap)
	rows[0].Since = now.UTC()
	assert.Empty(t, tr.Modified(rows))
}

func TestIdentityNotKeyEquality(t *testing.T) {
	rows := loaded()
	tr := New(rows, snap)
	twin := &row{ID: 1, Name: "a"}

	tr.RecordRemoved(twin)
	assert.Empty(t, tr.Removed(), "an untracked twin with an equal key is a different entity")

	tr.RecordAdded(twin)
	assert.Equal(t, []*row{twin}, tr.Added())
	assert.Empty(t, tr.Modified(append(rows, twin)))
}

func TestAddThenRemoveCoalesces(t *testing.T) {
	rows := loaded()
	tr := New(rows, snap)
	fresh := &row{ID: 9}

	tr.RecordAdded(fresh)
	tr.RecordRemoved(fresh)
	assert.Empty(t, tr.Added())
	assert.Empty(t, tr.Removed())
	assert.False(t, tr.IsAdded(fresh))
}

func TestRemoveThenReAddCoalesces(t *testing.T) {
	rows := loaded()
	tr := New(rows, snap)

	tr.RecordRemoved(rows[0])
	require.Equal(t, []*row{rows[0]}, tr.Removed())
	tr.RecordAdded(rows[0])
	assert.Empty(t, tr.Removed())
	assert.Empty(t, tr.Added())

	rows[0].Name = "edited"
	assert.Equal(t, []*row{rows[0]}, tr.Modified(rows), "a re-added loaded entity is diffed against its baseline")
}

func TestResetRefreshesBaseline(t *testing.T) {
	rows := loaded()
	tr := New(rows, snap)
	fresh := &row{ID: 4, Name: "d"}
	tr.RecordAdded(fresh)
	tr.RecordRemoved(rows[2])
	rows[0].Name = "x"
	current := []*row{rows[0], rows[1], fresh}

	assert.Equal(t, []*row{rows[0]}, tr.Modified(current), "added entities are never reported as modified")

	tr.Reset(current)
	assert.Empty(t, tr.Added())
	assert.Empty(t, tr.Removed())
	assert.Empty(t, tr.Modified(current))

	base, ok := tr.Baseline(fresh)
	require.True(t, ok)
	assert.Equal(t, []any{4, "d", time.Time{}}, base)
	_, ok = tr.Baseline(rows[2])
	assert.False(t, ok)
}

func TestAccessorsReturnCopies(t *testing.T) {
	tr := New(loaded(), snap)
	tr.RecordAdded(&row{ID: 5})
	added := tr.Added()
	added[0] = nil
	assert.NotNil(t, tr.Added()[0])
}
