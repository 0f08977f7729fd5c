package queue

import (
	"context"
	"fmt"
	"slices"

	"github.com/vogiaan1904/tablequeue/internal/models"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
)

type Manager struct {
	repo   WaitingLister
	logger logger.Logger
}

func NewManager(repo WaitingLister, l logger.Logger) *Manager {
	return &Manager{
		repo:   repo,
		logger: l,
	}
}

// GetQueueInfo reads the waiting list of the token's partition and ranks the token in it.
func (m *Manager) GetQueueInfo(ctx context.Context, token *models.QueueToken) (*Info, error) {
	p := token.Partition()
	numbers, err := m.repo.ListWaitingNumbers(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting tokens: %w", err)
	}

	pos := PositionOf(numbers, token.TokenNumber)
	m.logger.Debugf(ctx, "queue.manager.GetQueueInfo: partition=%s token=%d waiting=%d position=%d",
		p, token.TokenNumber, len(numbers), pos)

	return &Info{
		Partition:    p,
		WaitingCount: len(numbers),
		Position:     pos,
	}, nil
}

// PositionOf ranks number among the waiting numbers. The head of the line is
// 0 ("you're next"), the second is 2, the third 3 and so on; a number that is
// not waiting is also 0.
func PositionOf(waiting []int64, number int64) int {
	sorted := slices.Clone(waiting)
	slices.Sort(sorted)

	idx, found := slices.BinarySearch(sorted, number)
	if !found {
		return 0
	}
	if rank := idx + 1; rank > 1 {
		return rank
	}
	return 0
}

// NextTokenNumber is the candidate number after the highest one issued so far.
func NextTokenNumber(max int64) int64 {
	if max < 0 {
		max = 0
	}
	return max + 1
}
