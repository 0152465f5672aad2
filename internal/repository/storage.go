package repository

import (
	"context"
	"errors"
	"time"

	"snipr/internal/domain"
)

var (
	ErrCodeNotFound = errors.New("short code not found")
	ErrCodeExists   = errors.New("short code already exists")
	ErrKeyNotFound  = errors.New("api key not found")

	// Quota outcomes from ConsumeQuota. The quota ledger maps these to its
	// client-facing rate limit error.
	ErrDailyLimitExceeded   = errors.New("daily limit exceeded")
	ErrMonthlyLimitExceeded = errors.New("monthly limit exceeded")
)

// Storage is the durable store shared by the link registry, the quota
// ledger and the click recorder. Implementations must make the multi-step
// operations (quota consume, click record) atomic with respect to
// concurrent callers.
type Storage interface {
	// Link methods. Reads exclude soft-deleted rows unless stated
	// otherwise; code uniqueness spans all rows, deleted included.
	CreateLink(ctx context.Context, link *domain.Link) error
	GetLink(ctx context.Context, code string) (*domain.Link, error)
	GetLinkAnyState(ctx context.Context, code string) (*domain.Link, error)
	FindLinkByTarget(ctx context.Context, target string) (*domain.Link, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	UpdateLink(ctx context.Context, link *domain.Link) error
	SoftDeleteLink(ctx context.Context, code string) error
	PermanentDeleteLink(ctx context.Context, code string) error
	ListLinksByOwner(ctx context.Context, ownerKey string) ([]*domain.Link, error)

	// Click methods. RecordClick inserts the event and increments the
	// link's click count in one transaction.
	RecordClick(ctx context.Context, code string, click *domain.ClickEvent) error
	AggregateClicks(ctx context.Context, linkID int64) (*domain.ClickBreakdown, error)

	// API key methods.
	CreateAPIKey(ctx context.Context, key *domain.ApiKey) error
	GetAPIKeyByToken(ctx context.Context, token string) (*domain.ApiKey, error)
	GetAPIKeyByID(ctx context.Context, id int64) (*domain.ApiKey, error)
	UpdateAPIKey(ctx context.Context, key *domain.ApiKey) error
	DeleteAPIKey(ctx context.Context, id int64) error
	ListAPIKeys(ctx context.Context) ([]*domain.ApiKey, error)
	ResetAPIKeyUsage(ctx context.Context, id int64) error

	// ConsumeQuota atomically applies lazy UTC window resets, checks the
	// key's limits and charges the given units. Window boundaries are
	// derived from now, which callers supply in UTC.
	ConsumeQuota(ctx context.Context, token string, units int, now time.Time) error
}
