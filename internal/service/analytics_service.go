package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"taskmanager/internal/authz"
	"taskmanager/internal/cache"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
)

// RecentTaskCount is how many recently updated tasks a summary carries.
const RecentTaskCount = 5

// AssigneeStats is one assignee's rollup.
type AssigneeStats struct {
	UserID         uuid.UUID `json:"userId"`
	Name           string    `json:"name"`
	Total          int       `json:"total"`
	Completed      int       `json:"completed"`
	Overdue        int       `json:"overdue"`
	CompletionRate float64   `json:"completionRate"`
}

// Summary is the analytics view over a scoped task set.
type Summary struct {
	TotalTasks      int                    `json:"totalTasks"`
	CompletedTasks  int                    `json:"completedTasks"`
	PendingTasks    int                    `json:"pendingTasks"`
	OverdueTasks    int                    `json:"overdueTasks"`
	CompletionRate  float64                `json:"completionRate"`
	ByPriority      map[model.Priority]int `json:"byPriority"`
	ByStatus        map[model.Status]int   `json:"byStatus"`
	RecentTasks     []model.TaskView       `json:"recentTasks"`
	TeamPerformance []AssigneeStats        `json:"teamPerformance,omitempty"`
}

// completionRate is completed/total as a percentage with two decimals; 0 for
// an empty set.
func completionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(completed)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2).
		InexactFloat64()
}

// Summarize aggregates tasks as seen at now. Per-assignee rollups are only
// built when withTeam is set; names maps assignee ids to display names.
func Summarize(tasks []model.Task, names map[uuid.UUID]string, withTeam bool, now time.Time) Summary {
	sum := Summary{
		ByPriority:  make(map[model.Priority]int, len(model.Priorities)),
		ByStatus:    make(map[model.Status]int, len(model.Statuses)),
		RecentTasks: []model.TaskView{},
	}
	for _, p := range model.Priorities {
		sum.ByPriority[p] = 0
	}
	for _, st := range model.Statuses {
		sum.ByStatus[st] = 0
	}

	team := map[uuid.UUID]*AssigneeStats{}
	for i := range tasks {
		t := &tasks[i]
		done := t.Status == model.StatusCompleted
		overdue := t.IsOverdue(now)

		sum.TotalTasks++
		sum.ByPriority[t.Priority]++
		sum.ByStatus[t.Status]++
		if done {
			sum.CompletedTasks++
		}
		if overdue {
			sum.OverdueTasks++
		}

		if !withTeam || t.AssignedTo == nil {
			continue
		}
		st, ok := team[*t.AssignedTo]
		if !ok {
			st = &AssigneeStats{UserID: *t.AssignedTo, Name: names[*t.AssignedTo]}
			team[*t.AssignedTo] = st
		}
		st.Total++
		if done {
			st.Completed++
		}
		if overdue {
			st.Overdue++
		}
	}

	sum.PendingTasks = sum.TotalTasks - sum.CompletedTasks
	sum.CompletionRate = completionRate(sum.CompletedTasks, sum.TotalTasks)

	recent := make([]model.Task, len(tasks))
	copy(recent, tasks)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].UpdatedAt.After(recent[j].UpdatedAt) })
	if len(recent) > RecentTaskCount {
		recent = recent[:RecentTaskCount]
	}
	sum.RecentTasks = model.NewTaskViews(recent, now)

	if withTeam {
		sum.TeamPerformance = make([]AssigneeStats, 0, len(team))
		for _, st := range team {
			st.CompletionRate = completionRate(st.Completed, st.Total)
			sum.TeamPerformance = append(sum.TeamPerformance, *st)
		}
		sort.Slice(sum.TeamPerformance, func(i, j int) bool {
			a, b := sum.TeamPerformance[i], sum.TeamPerformance[j]
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return a.UserID.String() < b.UserID.String()
		})
	}
	return sum
}

// AnalyticsInvalidator drops cached summaries a task write may have changed.
type AnalyticsInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...uuid.UUID)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, ...uuid.UUID) {}

// AnalyticsService computes role-scoped summaries.
type AnalyticsService interface {
	AnalyticsInvalidator
	GetAnalytics(ctx context.Context, caller *model.User) (*Summary, error)
}

type analyticsService struct {
	tasks repository.TaskRepository
	users repository.UserRepository
	cache *cache.Client
	ttl   time.Duration
	log   *zap.Logger
	now   func() time.Time
}

// NewAnalyticsService builds the analytics service. A zero ttl disables caching.
func NewAnalyticsService(tasks repository.TaskRepository, users repository.UserRepository, cache *cache.Client, ttl time.Duration, log *zap.Logger) AnalyticsService {
	return &analyticsService{
		tasks: tasks,
		users: users,
		cache: cache,
		ttl:   ttl,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *analyticsService) cacheKey(id uuid.UUID) string {
	return "analytics:" + id.String()
}

// Invalidate deletes the cached summaries of userIDs and of their managers.
// Admin summaries are left to expire.
func (s *analyticsService) Invalidate(ctx context.Context, userIDs ...uuid.UUID) {
	if s.ttl <= 0 {
		return
	}
	for _, key := range s.invalidationKeys(ctx, userIDs) {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.log.Warn("analytics cache not invalidated", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *analyticsService) invalidationKeys(ctx context.Context, userIDs []uuid.UUID) []string {
	seen := map[uuid.UUID]bool{}
	var keys []string
	add := func(id uuid.UUID) bool {
		if id == uuid.Nil || seen[id] {
			return false
		}
		seen[id] = true
		keys = append(keys, s.cacheKey(id))
		return true
	}
	for _, id := range userIDs {
		if !add(id) {
			continue
		}
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			if !repository.IsNotFound(err) {
				s.log.Warn("analytics manager lookup failed", zap.String("user_id", id.String()), zap.Error(err))
			}
			continue
		}
		if user.ManagerID != nil {
			add(*user.ManagerID)
		}
	}
	return keys
}

func (s *analyticsService) GetAnalytics(ctx context.Context, caller *model.User) (*Summary, error) {
	if s.ttl > 0 {
		if data, _ := s.cache.Get(ctx, s.cacheKey(caller.ID)); data != nil {
			var cached Summary
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	now := s.now()
	tasks, err := s.tasks.Find(ctx, model.TaskFilter{Scope: authz.ScopeAnalyticsQuery(caller), Now: now})
	if err != nil {
		return nil, err
	}

	withTeam := authz.Authorize(caller, model.RoleManager)
	names := map[uuid.UUID]string{}
	if withTeam {
		names, err = s.assigneeNames(ctx, tasks)
		if err != nil {
			return nil, err
		}
	}

	sum := Summarize(tasks, names, withTeam, now)

	if s.ttl > 0 {
		if payload, err := json.Marshal(sum); err == nil {
			_ = s.cache.Set(ctx, s.cacheKey(caller.ID), payload, s.ttl)
		} else {
			s.log.Warn("analytics not cached", zap.Error(err))
		}
	}
	return &sum, nil
}

func (s *analyticsService) assigneeNames(ctx context.Context, tasks []model.Task) (map[uuid.UUID]string, error) {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, t := range tasks {
		if t.AssignedTo != nil && !seen[*t.AssignedTo] {
			seen[*t.AssignedTo] = true
			ids = append(ids, *t.AssignedTo)
		}
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}
