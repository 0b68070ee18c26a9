package transform

import (
	"context"

	"github.com/tsarna/go-structdiff"
)

// Delta is a SimpleFunc that replaces "old"/"new" snapshot pairs in
// envelope data with their structural difference.
//
// It applies when the data is a map containing both an "old" and a
// "new" key:
//
//  1. Map with exactly "old" and "new": the whole data becomes the diff.
//  2. Map with "old", "new", and other keys: "old" and "new" are
//     removed and a "delta" key holding the diff is added; the other
//     keys survive untouched.
//
// Anything else passes through unchanged, as does data whose diff
// cannot be computed.
//
// Useful for dashboard channels that publish full state snapshots when
// the consumer only wants incremental updates.
func Delta(ctx context.Context, data any, fields map[string]string) any {
	dataMap, ok := data.(map[string]any)
	if !ok {
		return data
	}

	oldValue, hasOld := dataMap["old"]
	newValue, hasNew := dataMap["new"]
	if !hasOld || !hasNew {
		return data
	}

	isSimpleDiff := len(dataMap) == 2

	diff, err := structdiff.Diff(oldValue, newValue)
	if err != nil {
		return data
	}

	if isSimpleDiff {
		return diff
	}

	newData := make(map[string]any)
	for key, value := range dataMap {
		if key != "old" && key != "new" {
			newData[key] = value
		}
	}
	newData["delta"] = diff

	return newData
}
