//go:build property

package watcher

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties validates batching of the debouncer
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("a burst yields one batch with one event per path", prop.ForAll(
		func(paths []int) bool {
			if len(paths) == 0 {
				return true
			}

			d := NewDebouncer(15 * time.Millisecond)
			distinct := map[string]bool{}
			for _, p := range paths {
				name := fmt.Sprintf("f%d.component", p)
				distinct[name] = true
				d.Add(ChangeEvent{Type: EventTypeModified, Path: name})
			}

			select {
			case batch := <-d.Output():
				if len(batch) != len(distinct) {
					return false
				}
				for i := 1; i < len(batch); i++ {
					if batch[i-1].Path >= batch[i].Path {
						return false
					}
				}
			case <-time.After(time.Second):
				return false
			}

			select {
			case <-d.Output():
				return false
			case <-time.After(40 * time.Millisecond):
				return true
			}
		},
		gen.SliceOfN(20, gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}
