package queue

import (
	"context"

	"github.com/vogiaan1904/tablequeue/internal/models"
)

// WaitingLister is the storage read the position calculation needs.
type WaitingLister interface {
	ListWaitingNumbers(ctx context.Context, p models.Partition) ([]int64, error)
}

type Info struct {
	Partition    models.Partition `json:"-"`
	WaitingCount int              `json:"waiting_count"`
	Position     int              `json:"position"`
}
