package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"snipr/internal/auth"
	"snipr/internal/domain"
	"snipr/internal/quota"
	"snipr/internal/repository"
)

const (
	maxTargetLength = 2048

	// MaxBulkItems caps one bulk create call.
	MaxBulkItems = 100
)

// blockedHost rejects loopback and private-network targets. Only localhost
// names and IP literals are denied; it does not resolve hostnames, so it is
// a sanity filter rather than an SSRF-proof check.
func blockedHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// LinkService owns the Link lifecycle and enforces tier permissions at
// creation time.
type LinkService struct {
	storage   repository.Storage
	allocator *CodeAllocator
	ledger    *quota.Ledger
	passwords *auth.PasswordService
	log       *zap.Logger
	now       func() time.Time
}

func NewLinkService(
	storage repository.Storage,
	allocator *CodeAllocator,
	ledger *quota.Ledger,
	passwords *auth.PasswordService,
	log *zap.Logger,
) *LinkService {
	return &LinkService{
		storage:   storage,
		allocator: allocator,
		ledger:    ledger,
		passwords: passwords,
		log:       log,
		now:       time.Now,
	}
}

// WithClock overrides the service clock; used in tests to control expiry.
func (s *LinkService) WithClock(now func() time.Time) *LinkService {
	s.now = now
	return s
}

// CreateOptions are the optional knobs on link creation. Custom codes,
// expiration and passwords each require the corresponding key capability.
type CreateOptions struct {
	CustomCode    string
	ExpiresInDays int
	Password      string
	Title         string
	Description   string
	Tags          string // raw comma-separated input
}

// Create validates the target, enforces the requester's capabilities and
// persists a new link. Without a custom code an existing active link for the
// same normalized target is returned instead of a new row; reuse does not
// charge quota since nothing is committed. The ordering is fixed:
// validation, capability checks, reuse lookup, quota charge, allocation,
// persist. Failures after the quota charge are surfaced without a refund.
func (s *LinkService) Create(ctx context.Context, target string, opts CreateOptions, requester *domain.ApiKey) (*domain.Link, bool, error) {
	normalized, err := s.validateTarget(target)
	if err != nil {
		return nil, false, err
	}

	if opts.CustomCode != "" && !requester.CanCustomCode {
		return nil, false, fmt.Errorf("%w: tier does not allow custom codes", ErrForbidden)
	}
	if opts.ExpiresInDays > 0 && !requester.CanSetExpiration {
		return nil, false, fmt.Errorf("%w: tier does not allow expiration", ErrForbidden)
	}
	if opts.Password != "" && !requester.CanPasswordProtect {
		return nil, false, fmt.Errorf("%w: tier does not allow password protection", ErrForbidden)
	}
	if opts.ExpiresInDays < 0 {
		return nil, false, fmt.Errorf("%w: expires_in_days must be positive", ErrInvalidInput)
	}

	if opts.CustomCode == "" {
		existing, err := s.storage.FindLinkByTarget(ctx, normalized)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, repository.ErrCodeNotFound) {
			return nil, false, fmt.Errorf("failed to look up existing target: %w", err)
		}
	}

	if err := s.ledger.CheckAndConsume(ctx, requester.Key, 1); err != nil {
		return nil, false, err
	}

	link := &domain.Link{
		Target:   normalized,
		IsActive: true,
		OwnerKey: &requester.Key,
		Tags:     domain.JoinTags(domain.NormalizeTags(opts.Tags)),
	}
	if opts.Title != "" {
		link.Title = &opts.Title
	}
	if opts.Description != "" {
		link.Description = &opts.Description
	}
	if opts.ExpiresInDays > 0 {
		expiresAt := s.now().UTC().AddDate(0, 0, opts.ExpiresInDays)
		link.ExpiresAt = &expiresAt
	}
	if opts.Password != "" {
		hash, err := s.passwords.Hash(opts.Password)
		if err != nil {
			return nil, false, fmt.Errorf("failed to hash password: %w", err)
		}
		link.PasswordHash = &hash
	}

	if err := s.persistWithCode(ctx, link, opts.CustomCode); err != nil {
		return nil, false, err
	}

	s.log.Info("created link",
		zap.String("code", link.Code),
		zap.Int64("key_id", requester.ID))
	return link, true, nil
}

// persistWithCode allocates a code and inserts the link, looping back into
// allocation when a concurrent writer wins the race on a random code. A
// duplicate custom code is a Conflict.
func (s *LinkService) persistWithCode(ctx context.Context, link *domain.Link, customCode string) error {
	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		code, err := s.allocator.Allocate(ctx, customCode)
		if err != nil {
			return err
		}
		link.Code = code

		err = s.storage.CreateLink(ctx, link)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrCodeExists) {
			if customCode != "" {
				return ErrConflict
			}
			continue
		}
		return fmt.Errorf("failed to persist link: %w", err)
	}

	return ErrAllocationExhausted
}

// Resolve returns the link's target URL for a redirect. It distinguishes
// NotFound (missing or soft-deleted), Gone (deactivated or expired),
// PasswordRequired and WrongPassword so the adapter can map them to
// distinct statuses.
func (s *LinkService) Resolve(ctx context.Context, code, suppliedPassword string) (*domain.Link, error) {
	link, err := s.loadResolvable(ctx, code)
	if err != nil {
		return nil, err
	}

	if link.IsPasswordProtected() {
		if suppliedPassword == "" {
			return nil, ErrPasswordRequired
		}
		if err := s.passwords.Verify(*link.PasswordHash, suppliedPassword); err != nil {
			return nil, ErrWrongPassword
		}
	}

	return link, nil
}

// ResolveVerified resolves a password-protected link without the password
// gate. Callers must have verified access out of band, e.g. via a link
// access token.
func (s *LinkService) ResolveVerified(ctx context.Context, code string) (*domain.Link, error) {
	return s.loadResolvable(ctx, code)
}

func (s *LinkService) loadResolvable(ctx context.Context, code string) (*domain.Link, error) {
	link, err := s.storage.GetLink(ctx, code)
	if errors.Is(err, repository.ErrCodeNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	if !link.IsActive || link.IsExpired(s.now().UTC()) {
		return nil, ErrGone
	}

	return link, nil
}

// UpdateFields carries partial-update semantics: nil leaves a field
// unchanged, a pointer to the empty string clears it.
type UpdateFields struct {
	Target        *string
	Title         *string
	Description   *string
	Tags          *string
	ExpiresInDays *int // 0 clears the expiry
	Password      *string
}

// Update applies a partial update. Only the creating key may mutate a link;
// super-admin mutation goes through the admin surface.
func (s *LinkService) Update(ctx context.Context, code string, fields UpdateFields, requester *domain.ApiKey) (*domain.Link, error) {
	link, err := s.loadOwned(ctx, code, requester)
	if err != nil {
		return nil, err
	}

	if fields.Target != nil {
		normalized, err := s.validateTarget(*fields.Target)
		if err != nil {
			return nil, err
		}
		link.Target = normalized
	}
	if fields.Title != nil {
		link.Title = optionalString(*fields.Title)
	}
	if fields.Description != nil {
		link.Description = optionalString(*fields.Description)
	}
	if fields.Tags != nil {
		link.Tags = domain.JoinTags(domain.NormalizeTags(*fields.Tags))
	}
	if fields.ExpiresInDays != nil {
		if !requester.CanSetExpiration {
			return nil, fmt.Errorf("%w: tier does not allow expiration", ErrForbidden)
		}
		if *fields.ExpiresInDays < 0 {
			return nil, fmt.Errorf("%w: expires_in_days must be positive", ErrInvalidInput)
		}
		if *fields.ExpiresInDays == 0 {
			link.ExpiresAt = nil
		} else {
			expiresAt := s.now().UTC().AddDate(0, 0, *fields.ExpiresInDays)
			link.ExpiresAt = &expiresAt
		}
	}
	if fields.Password != nil {
		if *fields.Password == "" {
			link.PasswordHash = nil
		} else {
			if !requester.CanPasswordProtect {
				return nil, fmt.Errorf("%w: tier does not allow password protection", ErrForbidden)
			}
			hash, err := s.passwords.Hash(*fields.Password)
			if err != nil {
				return nil, fmt.Errorf("failed to hash password: %w", err)
			}
			link.PasswordHash = &hash
		}
	}

	if err := s.storage.UpdateLink(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to update link: %w", err)
	}

	return link, nil
}

// SoftDelete marks a link logically removed. Deleting an already-deleted
// link returns NotFound: the lookup filters deleted rows, same as every
// other read path.
func (s *LinkService) SoftDelete(ctx context.Context, code string, requester *domain.ApiKey) error {
	if _, err := s.loadOwned(ctx, code, requester); err != nil {
		return err
	}

	if err := s.storage.SoftDeleteLink(ctx, code); err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to soft delete link: %w", err)
	}

	s.log.Info("soft deleted link", zap.String("code", code))
	return nil
}

// ToggleActive flips the link's active flag, ownership-checked like Update.
func (s *LinkService) ToggleActive(ctx context.Context, code string, requester *domain.ApiKey) (*domain.Link, error) {
	link, err := s.loadOwned(ctx, code, requester)
	if err != nil {
		return nil, err
	}

	link.IsActive = !link.IsActive
	if err := s.storage.UpdateLink(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to toggle link: %w", err)
	}

	return link, nil
}

// Clone copies a link's target, metadata, expiry and password hash into a
// new link owned by the requester, under a fresh or explicitly supplied
// code. Consumes one quota unit.
func (s *LinkService) Clone(ctx context.Context, sourceCode, newCode string, requester *domain.ApiKey) (*domain.Link, error) {
	source, err := s.storage.GetLink(ctx, sourceCode)
	if errors.Is(err, repository.ErrCodeNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source link: %w", err)
	}

	if newCode != "" && !requester.CanCustomCode {
		return nil, fmt.Errorf("%w: tier does not allow custom codes", ErrForbidden)
	}

	if err := s.ledger.CheckAndConsume(ctx, requester.Key, 1); err != nil {
		return nil, err
	}

	clone := &domain.Link{
		Target:       source.Target,
		IsActive:     true,
		OwnerKey:     &requester.Key,
		Title:        source.Title,
		Description:  source.Description,
		Tags:         source.Tags,
		ExpiresAt:    source.ExpiresAt,
		PasswordHash: source.PasswordHash,
	}

	if err := s.persistWithCode(ctx, clone, newCode); err != nil {
		return nil, err
	}

	s.log.Info("cloned link",
		zap.String("source", sourceCode),
		zap.String("code", clone.Code))
	return clone, nil
}

// BulkResult is one item of a bulk create partition.
type BulkResult struct {
	Target string
	Link   *domain.Link
	Reused bool
	Err    error
}

// BulkCreate creates up to MaxBulkItems links in one call. Items fail
// independently; one bad target does not abort the batch, and quota is
// charged per successfully created item only.
func (s *LinkService) BulkCreate(ctx context.Context, targets []string, requester *domain.ApiKey) ([]BulkResult, error) {
	if !requester.CanBulkCreate {
		return nil, fmt.Errorf("%w: tier does not allow bulk create", ErrForbidden)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidInput)
	}
	if len(targets) > MaxBulkItems {
		return nil, fmt.Errorf("%w: batch exceeds %d items", ErrInvalidInput, MaxBulkItems)
	}

	results := make([]BulkResult, len(targets))
	for i, target := range targets {
		link, created, err := s.Create(ctx, target, CreateOptions{}, requester)
		results[i] = BulkResult{
			Target: target,
			Link:   link,
			Reused: err == nil && !created,
			Err:    err,
		}
	}

	return results, nil
}

// Get returns a link for its owner, regardless of active or expired state.
func (s *LinkService) Get(ctx context.Context, code string, requester *domain.ApiKey) (*domain.Link, error) {
	return s.loadOwned(ctx, code, requester)
}

// List returns the requester's non-deleted links, newest first.
func (s *LinkService) List(ctx context.Context, requester *domain.ApiKey) ([]*domain.Link, error) {
	links, err := s.storage.ListLinksByOwner(ctx, requester.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

// Inspect returns a link regardless of owner or state, soft-deleted rows
// included. This is the privileged admin audit read; the HTTP layer gates
// it behind the admin token.
func (s *LinkService) Inspect(ctx context.Context, code string) (*domain.Link, error) {
	link, err := s.storage.GetLinkAnyState(ctx, code)
	if errors.Is(err, repository.ErrCodeNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to inspect link: %w", err)
	}
	return link, nil
}

// PermanentDelete physically removes a link and its click events. This is
// the privileged admin path; soft delete is the normal lifecycle.
func (s *LinkService) PermanentDelete(ctx context.Context, code string) error {
	if err := s.storage.PermanentDeleteLink(ctx, code); err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to permanently delete link: %w", err)
	}

	s.log.Info("permanently deleted link", zap.String("code", code))
	return nil
}

func (s *LinkService) loadOwned(ctx context.Context, code string, requester *domain.ApiKey) (*domain.Link, error) {
	link, err := s.storage.GetLink(ctx, code)
	if errors.Is(err, repository.ErrCodeNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	if !link.OwnedBy(requester.Key) {
		return nil, fmt.Errorf("%w: not the link owner", ErrForbidden)
	}

	return link, nil
}

func (s *LinkService) validateTarget(target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("%w: target URL is required", ErrInvalidInput)
	}
	if len(target) > maxTargetLength {
		return "", fmt.Errorf("%w: target URL exceeds %d characters", ErrInvalidInput, maxTargetLength)
	}

	normalized := strings.TrimRight(target, "/")

	parsed, err := url.Parse(normalized)
	if err != nil {
		return "", fmt.Errorf("%w: malformed URL", ErrInvalidInput)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: URL must start with http:// or https://", ErrInvalidInput)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: URL has no host", ErrInvalidInput)
	}

	host := strings.ToLower(parsed.Hostname())
	if blockedHost(host) {
		return "", fmt.Errorf("%w: host %q is blocked", ErrInvalidInput, host)
	}

	return normalized, nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
