package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/wilhg/workshop/pkg/aggregate"
)

// Diff renders the state and counters of a and b as indented JSON and
// returns a unified diff from a to b. Equal snapshots give "".
func Diff[T aggregate.Root[T]](a, b Snapshot[T]) (string, error) {
	left, err := diffText(a)
	if err != nil {
		return "", err
	}
	right, err := diffText(b)
	if err != nil {
		return "", err
	}
	return UnifiedDiff(fmt.Sprintf("snapshot %s", a.ID()), fmt.Sprintf("snapshot %s", b.ID()), left, right)
}

func diffText[T aggregate.Root[T]](s Snapshot[T]) (string, error) {
	data, err := json.MarshalIndent(struct {
		Counters any `json:"counters"`
		State    T   `json:"state"`
	}{s.counters, s.root}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render snapshot %s: %w", s.ID(), err)
	}
	return string(data), nil
}

// UnifiedDiff returns a unified diff from a to b with three lines of
// context. Equal texts give "".
func UnifiedDiff(nameA, nameB, a, b string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: nameA,
		ToFile:   nameB,
		Context:  3,
	})
}
