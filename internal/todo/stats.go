package todo

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
)

type Activity struct {
	CompletedToday int `json:"completedToday"`
	CreatedToday   int `json:"createdToday"`
	DueToday       int `json:"dueToday"`
}

type Stats struct {
	Total          int            `json:"total"`
	Completed      int            `json:"completed"`
	Pending        int            `json:"pending"`
	Overdue        int            `json:"overdue"`
	CompletionRate int            `json:"completionRate"`
	ByPriority     map[string]int `json:"byPriority"`
	ByCategory     map[string]int `json:"byCategory"`
	RecentActivity Activity       `json:"recentActivity"`
}

// statsTimeout bounds one shared stats computation.
const statsTimeout = 10 * time.Second

// Stats aggregates owner's todos. "Today" is the server-local calendar day.
// Results are cached per owner and day when a cache is configured, and concurrent
// computations for the same owner, day and generation share one set of queries.
// The shared computation is detached from any single caller; each caller stops
// waiting when its own ctx is done.
func (s *Service) Stats(ctx context.Context, owner uuid.UUID) (*Stats, error) {
	now := s.now()
	dayStart := startOfDay(now, s.loc)
	day := dayStart.Format(time.DateOnly)

	if s.cache != nil {
		var cached Stats
		ok, err := s.cache.Get(ctx, owner, day, &cached)
		if err != nil {
			log.Printf("[cache] get stats for %s: %v", owner, err)
		}
		if ok {
			return &cached, nil
		}
	}

	gen := s.generation(owner)
	key := fmt.Sprintf("%s:%s:%d", owner, day, gen)
	ch := s.group.DoChan(key, func() (any, error) {
		work, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsTimeout)
		defer cancel()

		stats, err := s.computeStats(work, owner, now, dayStart)
		if err != nil {
			return nil, err
		}
		s.storeStats(work, owner, day, gen, stats)
		return stats, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Stats), nil
	}
}

// storeStats caches stats computed under gen unless a write has happened since.
// A write that lands between the check and Set is caught by the second check.
func (s *Service) storeStats(ctx context.Context, owner uuid.UUID, day string, gen uint64, stats *Stats) {
	if s.cache == nil || s.generation(owner) != gen {
		return
	}
	if err := s.cache.Set(ctx, owner, day, stats); err != nil {
		log.Printf("[cache] set stats for %s: %v", owner, err)
		return
	}
	if s.generation(owner) != gen {
		if err := s.cache.Invalidate(ctx, owner); err != nil {
			log.Printf("[cache] invalidate stats for %s: %v", owner, err)
		}
	}
}

func (s *Service) computeStats(ctx context.Context, owner uuid.UUID, now, dayStart time.Time) (*Stats, error) {
	totals, err := s.store.Totals(ctx, owner, now)
	if err != nil {
		return nil, err
	}
	byPriority, err := s.store.PendingByPriority(ctx, owner)
	if err != nil {
		return nil, err
	}
	categories, err := s.store.CategoryCounts(ctx, owner)
	if err != nil {
		return nil, err
	}
	activity, err := s.store.Activity(ctx, owner, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]int, len(categories))
	for _, c := range categories {
		byCategory[c.Name] = c.Count
	}
	return &Stats{
		Total:          totals.Total,
		Completed:      totals.Completed,
		Pending:        totals.Pending,
		Overdue:        totals.Overdue,
		CompletionRate: completionRate(totals.Completed, totals.Total),
		ByPriority:     byPriority,
		ByCategory:     byCategory,
		RecentActivity: Activity{
			CompletedToday: activity.CompletedToday,
			CreatedToday:   activity.CreatedToday,
			DueToday:       activity.DueToday,
		},
	}, nil
}

// completionRate is the rounded percentage of completed todos, 0 when there are none.
func completionRate(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
