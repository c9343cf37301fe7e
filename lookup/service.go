package lookup

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/itsneelabh/gomind/cache"
	"github.com/itsneelabh/gomind/core"
	"github.com/itsneelabh/gomind/correlation"
	"github.com/itsneelabh/gomind/db"
	"github.com/itsneelabh/gomind/llmintel"
	"github.com/itsneelabh/gomind/manager"
	"github.com/itsneelabh/gomind/providers"
)

// Result is one lookup outcome, used both for the single-IP path and as
// the per-entry shape inside bulk/CIDR results (spec.md §4.5's "never
// throws for per-IP failures - carried as {ip, success=false, error}").
type Result struct {
	IP           string              `json:"ip"`
	Success      bool                `json:"success"`
	Error        string              `json:"error,omitempty"`
	Record       *correlation.Record `json:"data,omitempty"`
	ResolvedFrom *ResolvedFrom       `json:"resolvedFrom,omitempty"`
}

// ResolvedFrom is populated when the input required a DNS resolution step
// (spec.md §4.5 point 1 / §6's optional `resolvedFrom` response field).
type ResolvedFrom struct {
	Hostname   string `json:"hostname"`
	ResolvedIP string `json:"resolvedIp"`
}

// Service is the lookup pipeline's single entry point plus its bulk/CIDR
// variants. It owns the in-flight coalescing map (as a singleflight.Group,
// satisfying spec.md §9's "guard with a mutex or equivalent single-flight
// primitive" design note directly) and the background best-effort
// daily-stats sink.
type Service struct {
	cache     *cache.Cache
	store     *db.Store
	manager   *manager.Manager
	trustRank map[string]int
	enricher  llmintel.Enricher
	logger    core.Logger

	cacheTTL              time.Duration
	cacheRefreshThreshold time.Duration
	globalTimeout         time.Duration

	coalesce singleflight.Group
}

// Config carries the subset of core.Config the lookup service needs.
type Config struct {
	CacheTTLSeconds              int
	CacheRefreshThresholdSeconds int
	GlobalTimeoutMs              int
}

func New(c *cache.Cache, store *db.Store, mgr *manager.Manager, trustRank map[string]int, enricher llmintel.Enricher, cfg Config, logger core.Logger) *Service {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Service{
		cache:                 c,
		store:                 store,
		manager:               mgr,
		trustRank:             trustRank,
		enricher:              enricher,
		logger:                logger,
		cacheTTL:              time.Duration(cfg.CacheTTLSeconds) * time.Second,
		cacheRefreshThreshold: time.Duration(cfg.CacheRefreshThresholdSeconds) * time.Second,
		globalTimeout:         time.Duration(cfg.GlobalTimeoutMs) * time.Millisecond,
	}
}

// Lookup implements spec.md §4.5's full pipeline for a single IP.
func (s *Service) Lookup(ctx context.Context, input string, forceRefresh, includeLLMAnalysis bool) (*Result, error) {
	ip, resolvedFrom, err := s.normalizeOrResolve(ctx, input)
	if err != nil {
		return nil, err
	}

	if !forceRefresh {
		if rec := s.tryCache(ctx, ip); rec != nil {
			rec = s.maybeEnrich(ctx, rec, includeLLMAnalysis)
			return &Result{IP: ip, Success: true, Record: rec, ResolvedFrom: resolvedFrom}, nil
		}

		if rec := s.tryDB(ctx, ip); rec != nil {
			_ = s.cache.Set(ctx, ip, rec, s.cacheTTL)
			rec = s.maybeEnrich(ctx, rec, includeLLMAnalysis)
			return &Result{IP: ip, Success: true, Record: rec, ResolvedFrom: resolvedFrom}, nil
		}
	}

	key := fmt.Sprintf("%s|%v|%v", ip, forceRefresh, includeLLMAnalysis)
	v, err, _ := s.coalesce.Do(key, func() (interface{}, error) {
		return s.liveLookup(ctx, ip, includeLLMAnalysis)
	})
	if err != nil {
		return nil, err
	}
	rec := v.(*correlation.Record)
	return &Result{IP: ip, Success: true, Record: rec, ResolvedFrom: resolvedFrom}, nil
}

// normalizeOrResolve implements spec.md §4.5 point 1: canonicalize/reject,
// or resolve a hostname's first A record.
func (s *Service) normalizeOrResolve(ctx context.Context, input string) (string, *ResolvedFrom, error) {
	if looksLikeIP(input) {
		ip, err := normalizeIP(input)
		return ip, nil, err
	}

	resolver := net.DefaultResolver
	addrs, err := resolver.LookupIPAddr(ctx, input)
	if err != nil || len(addrs) == 0 {
		return "", nil, newValidationError("DNS_RESOLUTION_FAILED", "could not resolve hostname to an IP address", "check the hostname for typos or pass an IP address directly")
	}
	resolvedIP := addrs[0].IP.String()
	ip, err := normalizeIP(resolvedIP)
	if err != nil {
		return "", nil, err
	}
	return ip, &ResolvedFrom{Hostname: input, ResolvedIP: ip}, nil
}

// tryCache implements spec.md §4.5 point 2, including the touch-on-access
// TTL extension flagged in §9 as an open question (preserved, not fixed).
func (s *Service) tryCache(ctx context.Context, ip string) *correlation.Record {
	var rec correlation.Record
	found, ttl, err := s.cache.Get(ctx, ip, &rec)
	if err != nil {
		s.logger.Warn("cache read failed", map[string]interface{}{"ip": ip, "error": err.Error()})
		return nil
	}
	if !found {
		return nil
	}
	if ttl < s.cacheRefreshThreshold {
		if err := s.cache.Touch(ctx, ip, s.cacheTTL); err != nil {
			s.logger.Warn("cache ttl extension failed", map[string]interface{}{"ip": ip, "error": err.Error()})
		}
	}
	rec.Metadata.Source = "cache"
	return &rec
}

// tryDB implements spec.md §4.5 point 3.
func (s *Service) tryDB(ctx context.Context, ip string) *correlation.Record {
	if s.store == nil {
		return nil
	}
	row, found, err := s.store.Get(ctx, ip)
	if err != nil {
		s.logger.Warn("db read failed", map[string]interface{}{"ip": ip, "error": err.Error()})
		return nil
	}
	if !found || time.Now().After(row.ExpiresAt) {
		return nil
	}
	return fromDBRecord(row, int(s.cacheTTL.Seconds()))
}

// liveLookup implements spec.md §4.5 points 5-8: the provider stage,
// correlation, optional enrichment, and best-effort parallel persistence.
// It is only ever invoked once per coalescing key concurrently, because
// callers reach it exclusively through s.coalesce.Do.
func (s *Service) liveLookup(ctx context.Context, ip string, includeLLMAnalysis bool) (*correlation.Record, error) {
	results := s.manager.QueryAll(ctx, ip, func(evt manager.ProgressEvent) {
		go s.recordProviderOutcome(evt.Provider, evt.Result)
	})

	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}
	if successful == 0 {
		return nil, fmt.Errorf("all providers failed or timed out: %w", core.NewFrameworkError("lookup.Service.liveLookup", "providers_unavailable", fmt.Errorf("0/%d providers succeeded", len(results))))
	}

	record := correlation.Correlate(results, s.trustRank, "live", int(s.cacheTTL.Seconds()))
	record.IP = ip

	if includeLLMAnalysis && s.enricher != nil {
		if analysis := s.enricher.Analyze(ctx, &record); analysis != nil {
			record.Metadata.LLMAnalysis = analysis
		}
	}

	s.persist(ip, &record)

	return &record, nil
}

// maybeEnrich adds LLM analysis to a cache/db-sourced record when it was
// requested but not already present, per spec.md §4.5 point 2/3.
func (s *Service) maybeEnrich(ctx context.Context, rec *correlation.Record, includeLLMAnalysis bool) *correlation.Record {
	if !includeLLMAnalysis || rec.Metadata.LLMAnalysis != nil || s.enricher == nil {
		return rec
	}
	if analysis := s.enricher.Analyze(ctx, rec); analysis != nil {
		rec.Metadata.LLMAnalysis = analysis
		_ = s.cache.Set(ctx, rec.IP, rec, s.cacheTTL)
	}
	return rec
}

// persist writes cache and database in parallel, best-effort, per spec.md
// §4.5 point 8. Failures are logged, never returned.
func (s *Service) persist(ip string, record *correlation.Record) {
	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		if err := s.cache.Set(context.Background(), ip, record, s.cacheTTL); err != nil {
			s.logger.Warn("persisting to cache failed", map[string]interface{}{"ip": ip, "error": err.Error()})
		}
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		if s.store == nil {
			return
		}
		if err := s.store.Upsert(context.Background(), toDBRecord(record)); err != nil {
			s.logger.Warn("persisting to database failed", map[string]interface{}{"ip": ip, "error": err.Error()})
		}
	}()

	<-done
	<-done
}

// recordProviderOutcome updates daily per-provider stats in the
// background, never blocking the foreground response (spec.md §4.5 point
// 5, §5's "metrics counters and daily provider stats ... updated from
// background tasks").
func (s *Service) recordProviderOutcome(providerName string, r providers.Result) {
	if s.store == nil {
		return
	}
	timedOut := !r.Success && r.Error != "" && (strings.Contains(r.Error, "deadline") || strings.Contains(r.Error, "timeout"))
	s.store.RecordProviderOutcome(context.Background(), providerName, r.Success, timedOut, r.LatencyMs, r.Error)
}
