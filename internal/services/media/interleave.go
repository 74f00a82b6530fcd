package media

import (
	"fmt"

	"github.com/samber/lo"
	lom "github.com/samber/lo/mutable"
	"norelock.dev/fetchx/backend/internal/models"
)

// Interleaver merges the per-call item groups of an aggregate page into one list.
// Implementations must keep every input item exactly once.
type Interleaver interface {
	Interleave(groups [][]models.MediaItem) []models.MediaItem
}

// ShuffleInterleaver flattens the groups and shuffles the result uniformly.
type ShuffleInterleaver struct{}

// Interleave implements Interleaver.
func (ShuffleInterleaver) Interleave(groups [][]models.MediaItem) []models.MediaItem {
	items := lo.Flatten(groups)
	lom.Shuffle(items)
	return items
}

// RoundRobinInterleaver takes one item from each group in turn, preserving
// the order inside every group.
type RoundRobinInterleaver struct{}

// Interleave implements Interleaver.
func (RoundRobinInterleaver) Interleave(groups [][]models.MediaItem) []models.MediaItem {
	return lo.Interleave(groups...)
}

// NewInterleaver returns the interleaver registered under name.
func NewInterleaver(name string) (Interleaver, error) {
	switch name {
	case "", "shuffle":
		return ShuffleInterleaver{}, nil
	case "round_robin", "roundrobin":
		return RoundRobinInterleaver{}, nil
	default:
		return nil, fmt.Errorf("unknown interleaver %q", name)
	}
}
