package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/bighogz/secform/internal/aggregator"
	"github.com/bighogz/secform/internal/cache"
	"github.com/bighogz/secform/internal/config"
	"github.com/bighogz/secform/internal/feed"
	"github.com/bighogz/secform/internal/filing"
	"github.com/bighogz/secform/internal/httpclient"
	"github.com/bighogz/secform/internal/models"
	"github.com/bighogz/secform/internal/telemetry"
)

const maxCount = 1000

type server struct {
	feed      *feed.Client
	extractor *filing.Extractor
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/filings", securityHeaders(s.handleFilings))
	mux.HandleFunc("/api/filings/details", securityHeaders(requireAdminKey(rateLimitDetails(s.handleDetails))))
	mux.HandleFunc("/api/filings/summary", securityHeaders(requireAdminKey(rateLimitDetails(s.handleSummary))))
	mux.HandleFunc("/api/health", securityHeaders(handleHealth))
	return mux
}

func main() {
	telemetry.InitSlog(config.Debug)

	fetcher := httpclient.New()
	var docs httpclient.Fetcher = fetcher
	if config.CachePath != "" {
		store, err := cache.Open(config.CachePath)
		if err != nil {
			slog.Error("open document cache", "path", config.CachePath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		docs = &cache.Fetcher{Next: fetcher, Store: store}
	}

	s := &server{
		feed:      feed.New(fetcher, ""),
		extractor: filing.New(docs),
	}
	slog.Info("listening", "port", config.Port)
	if err := http.ListenAndServe(":"+config.Port, s.routes()); err != nil {
		slog.Error("server stopped", "error", err)
	}
}

// parseQuery reads the feed window from the request. The second return is
// a client-facing message when the query is unusable.
func parseQuery(r *http.Request) (feed.Query, string) {
	q := r.URL.Query()
	fq := feed.Query{
		Start:      max(parseInt(q.Get("start"), 0), 0),
		Count:      clamp(parseInt(q.Get("count"), feed.PageSize), 1, maxCount),
		FilingType: strings.TrimSpace(q.Get("type")),
		Owner:      strings.ToLower(strings.TrimSpace(q.Get("owner"))),
	}
	if fq.FilingType == "" {
		fq.FilingType = "4"
	}
	switch fq.Owner {
	case "":
		fq.Owner = "include"
	case "include", "exclude", "only":
	default:
		return fq, "owner must be include, exclude or only"
	}
	return fq, ""
}

func (s *server) entries(w http.ResponseWriter, r *http.Request) (feed.Query, []models.FilteredEntry, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return feed.Query{}, nil, false
	}
	q, msg := parseQuery(r)
	if msg != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": msg})
		return q, nil, false
	}
	return q, s.feed.GetRecentFilings(r.Context(), q), true
}

func (s *server) handleFilings(w http.ResponseWriter, r *http.Request) {
	q, entries, ok := s.entries(w, r)
	if !ok {
		return
	}
	jsonResponse(w, map[string]interface{}{
		"start":         q.Start,
		"count":         q.Count,
		"type":          q.FilingType,
		"entries_count": len(entries),
		"entries":       entries,
	})
}

func (s *server) handleDetails(w http.ResponseWriter, r *http.Request) {
	q, entries, ok := s.entries(w, r)
	if !ok {
		return
	}
	records := s.extractor.DetailEntries(r.Context(), entries)
	jsonResponse(w, map[string]interface{}{
		"start":         q.Start,
		"count":         q.Count,
		"type":          q.FilingType,
		"entries_count": len(entries),
		"records_count": len(records),
		"records":       records,
	})
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q, entries, ok := s.entries(w, r)
	if !ok {
		return
	}
	records := s.extractor.DetailEntries(r.Context(), entries)
	issuers := aggregator.Summarize(records)
	jsonResponse(w, map[string]interface{}{
		"start":         q.Start,
		"count":         q.Count,
		"type":          q.FilingType,
		"records_count": len(records),
		"issuers":       issuers,
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"})
}

func jsonResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
