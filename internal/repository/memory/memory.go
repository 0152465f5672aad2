package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"snipr/internal/domain"
	"snipr/internal/repository"
)

// MemStorage is an in-memory Storage implementation used in tests and local
// development. A single mutex makes every multi-step operation atomic.
type MemStorage struct {
	mu           sync.RWMutex
	links        map[string]*domain.Link // by code, soft-deleted rows included
	clicks       map[int64][]*domain.ClickEvent
	keysByToken  map[string]*domain.ApiKey
	linkCounter  int64
	clickCounter int64
	keyCounter   int64
}

func New() *MemStorage {
	return &MemStorage{
		links:       make(map[string]*domain.Link),
		clicks:      make(map[int64][]*domain.ClickEvent),
		keysByToken: make(map[string]*domain.ApiKey),
	}
}

// --- Link Methods ---

func (s *MemStorage) CreateLink(_ context.Context, link *domain.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.Code]; exists {
		return repository.ErrCodeExists
	}

	s.linkCounter++
	link.ID = s.linkCounter
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now

	stored := *link
	s.links[link.Code] = &stored
	return nil
}

func (s *MemStorage) GetLink(_ context.Context, code string) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[code]
	if !ok || link.IsDeleted {
		return nil, repository.ErrCodeNotFound
	}
	out := *link
	return &out, nil
}

func (s *MemStorage) GetLinkAnyState(_ context.Context, code string) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[code]
	if !ok {
		return nil, repository.ErrCodeNotFound
	}
	out := *link
	return &out, nil
}

func (s *MemStorage) FindLinkByTarget(_ context.Context, target string) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Link
	for _, link := range s.links {
		if link.Target != target || link.IsDeleted || !link.IsActive {
			continue
		}
		if found == nil || link.ID < found.ID {
			found = link
		}
	}
	if found == nil {
		return nil, repository.ErrCodeNotFound
	}
	out := *found
	return &out, nil
}

func (s *MemStorage) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.links[code]
	return ok, nil
}

func (s *MemStorage) UpdateLink(_ context.Context, link *domain.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[link.Code]; !ok {
		return repository.ErrCodeNotFound
	}
	link.UpdatedAt = time.Now().UTC()
	stored := *link
	s.links[link.Code] = &stored
	return nil
}

func (s *MemStorage) SoftDeleteLink(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[code]
	if !ok || link.IsDeleted {
		return repository.ErrCodeNotFound
	}
	link.IsDeleted = true
	link.IsActive = false
	link.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStorage) PermanentDeleteLink(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[code]
	if !ok {
		return repository.ErrCodeNotFound
	}
	delete(s.clicks, link.ID)
	delete(s.links, code)
	return nil
}

func (s *MemStorage) ListLinksByOwner(_ context.Context, ownerKey string) ([]*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Link
	for _, link := range s.links {
		if link.IsDeleted || link.OwnerKey == nil || *link.OwnerKey != ownerKey {
			continue
		}
		cp := *link
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// --- Click Methods ---

func (s *MemStorage) RecordClick(_ context.Context, code string, click *domain.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[code]
	if !ok || link.IsDeleted {
		return repository.ErrCodeNotFound
	}

	s.clickCounter++
	click.ID = s.clickCounter
	click.LinkID = link.ID
	if click.ClickedAt.IsZero() {
		click.ClickedAt = time.Now().UTC()
	}

	stored := *click
	s.clicks[link.ID] = append(s.clicks[link.ID], &stored)
	link.ClickCount++
	return nil
}

func (s *MemStorage) AggregateClicks(_ context.Context, linkID int64) (*domain.ClickBreakdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make(map[string]int64)
	browsers := make(map[string]int64)
	systems := make(map[string]int64)
	for _, click := range s.clicks[linkID] {
		devices[click.DeviceType]++
		browsers[click.Browser]++
		systems[click.OS]++
	}

	return &domain.ClickBreakdown{
		Devices:          devices,
		Browsers:         topCounts(browsers, 10),
		OperatingSystems: topCounts(systems, 10),
	}, nil
}

func topCounts(counts map[string]int64, limit int) []domain.NameCount {
	out := make([]domain.NameCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, domain.NameCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// --- API Key Methods ---

func (s *MemStorage) CreateAPIKey(_ context.Context, key *domain.ApiKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keyCounter++
	key.ID = s.keyCounter
	now := time.Now().UTC()
	key.CreatedAt = now
	key.UpdatedAt = now
	if key.LastResetDaily.IsZero() {
		key.LastResetDaily = now
	}
	if key.LastResetMonthly.IsZero() {
		key.LastResetMonthly = now
	}

	stored := *key
	s.keysByToken[key.Key] = &stored
	return nil
}

func (s *MemStorage) GetAPIKeyByToken(_ context.Context, token string) (*domain.ApiKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keysByToken[token]
	if !ok {
		return nil, repository.ErrKeyNotFound
	}
	out := *key
	return &out, nil
}

func (s *MemStorage) GetAPIKeyByID(_ context.Context, id int64) (*domain.ApiKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if key := s.findByID(id); key != nil {
		out := *key
		return &out, nil
	}
	return nil, repository.ErrKeyNotFound
}

func (s *MemStorage) UpdateAPIKey(_ context.Context, key *domain.ApiKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keysByToken[key.Key]; !ok {
		return repository.ErrKeyNotFound
	}
	key.UpdatedAt = time.Now().UTC()
	stored := *key
	s.keysByToken[key.Key] = &stored
	return nil
}

func (s *MemStorage) DeleteAPIKey(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.findByID(id)
	if key == nil {
		return repository.ErrKeyNotFound
	}
	delete(s.keysByToken, key.Key)
	return nil
}

func (s *MemStorage) ListAPIKeys(_ context.Context) ([]*domain.ApiKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ApiKey, 0, len(s.keysByToken))
	for _, key := range s.keysByToken {
		cp := *key
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStorage) ResetAPIKeyUsage(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.findByID(id)
	if key == nil {
		return repository.ErrKeyNotFound
	}
	now := time.Now().UTC()
	key.UsageToday = 0
	key.UsageMonth = 0
	key.LastResetDaily = now
	key.LastResetMonthly = now
	key.UpdatedAt = now
	return nil
}

func (s *MemStorage) ConsumeQuota(_ context.Context, token string, units int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keysByToken[token]
	if !ok {
		return repository.ErrKeyNotFound
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	if key.LastResetDaily.UTC().Before(dayStart) {
		key.UsageToday = 0
		key.LastResetDaily = now
	}
	if key.LastResetMonthly.UTC().Before(monthStart) {
		key.UsageMonth = 0
		key.LastResetMonthly = now
	}

	if key.DailyLimit != nil && key.UsageToday >= *key.DailyLimit {
		return repository.ErrDailyLimitExceeded
	}
	if key.MonthlyLimit != nil && key.UsageMonth >= *key.MonthlyLimit {
		return repository.ErrMonthlyLimitExceeded
	}

	key.UsageToday += units
	key.UsageMonth += units
	key.UpdatedAt = now
	return nil
}

// findByID must be called with the lock held.
func (s *MemStorage) findByID(id int64) *domain.ApiKey {
	for _, key := range s.keysByToken {
		if key.ID == id {
			return key
		}
	}
	return nil
}
