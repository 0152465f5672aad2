package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"snipr/internal/domain"
	"snipr/internal/repository"
	"snipr/pkg/useragent"
)

// RequestContext is the client-side context of one redirect: raw headers
// plus externally supplied geo facts. Device, browser and OS are derived
// here, not by the caller.
type RequestContext struct {
	IPAddress string
	UserAgent string
	Referer   string
	Country   string
	City      string
	ClickedAt time.Time
}

// ClickService ingests redirect events and serves the aggregated
// breakdowns.
type ClickService struct {
	storage repository.Storage
	parser  *useragent.Parser
	log     *zap.Logger
}

func NewClickService(storage repository.Storage, parser *useragent.Parser, log *zap.Logger) *ClickService {
	return &ClickService{
		storage: storage,
		parser:  parser,
		log:     log,
	}
}

// Record persists one click event and increments the link's click count in
// the same transaction. User-Agent parsing is best effort; unparseable
// input records "unknown" facts rather than failing.
func (s *ClickService) Record(ctx context.Context, code string, rc RequestContext) error {
	info := s.parser.Parse(rc.UserAgent)

	click := &domain.ClickEvent{
		DeviceType: info.DeviceType,
		Browser:    info.Browser,
		OS:         info.OS,
		ClickedAt:  rc.ClickedAt,
		IPAddress:  optionalString(rc.IPAddress),
		UserAgent:  optionalString(rc.UserAgent),
		Referer:    optionalString(rc.Referer),
		Country:    optionalString(rc.Country),
		City:       optionalString(rc.City),
	}

	if err := s.storage.RecordClick(ctx, code, click); err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to record click: %w", err)
	}

	s.log.Debug("recorded click",
		zap.String("code", code),
		zap.String("device_type", info.DeviceType))
	return nil
}

// LinkStats is the per-link analytics read model.
type LinkStats struct {
	Link      *domain.Link
	Breakdown *domain.ClickBreakdown
}

// Stats aggregates the stored events for a link the requester owns.
func (s *ClickService) Stats(ctx context.Context, code string, requester *domain.ApiKey) (*LinkStats, error) {
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

	breakdown, err := s.storage.AggregateClicks(ctx, link.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate clicks: %w", err)
	}

	return &LinkStats{Link: link, Breakdown: breakdown}, nil
}

// ClientIP picks the client address preferring the first X-Forwarded-For
// entry, then X-Real-IP, then the transport-level peer address.
func ClientIP(remoteAddr, forwardedFor, realIP string) string {
	if forwardedFor != "" {
		parts := strings.Split(forwardedFor, ",")
		if first := strings.TrimSpace(parts[0]); first != "" {
			return first
		}
	}

	if realIP != "" {
		return strings.TrimSpace(realIP)
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
