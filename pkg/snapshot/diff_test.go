package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/workshop/pkg/counters"
	"github.com/wilhg/workshop/pkg/workshop"
)

func TestUnifiedDiff(t *testing.T) {
	d, err := UnifiedDiff("a", "b", "same\ntext", "same\ntext")
	require.NoError(t, err)
	assert.Empty(t, d)

	d, err = UnifiedDiff("a", "b", "one\ntwo\nthree", "one\n2\nthree\nfour")
	require.NoError(t, err)
	assert.Equal(t, "--- a\n+++ b\n@@ -1,3 +1,4 @@\n one\n-two\n+2\n three\n+four\n", d)
}

func TestDiffShowsStateAndCounterChanges(t *testing.T) {
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	ids := counters.NewRegistry()
	w := workshop.New()
	before := New(ID(1), w, ids.Capture(), at)

	_, err := w.Registry.AddCustomer(ids, "Rita", "555", "")
	require.NoError(t, err)
	after := New(ID(2), w, ids.Capture(), at)

	d, err := Diff(before, after)
	require.NoError(t, err)
	assert.Contains(t, d, "--- snapshot 1\n+++ snapshot 2\n")
	assert.Regexp(t, `(?m)^\+\s+"name": "Rita",$`, d)

	d, err = Diff(after, after)
	require.NoError(t, err)
	assert.Empty(t, d)
}
