// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package web

import (
	"encoding/json"
	"net/http"

	"github.com/contactdir/contactdir/internal/cache"
	"github.com/contactdir/contactdir/internal/session"
)

// cacheEntryRequest carries an arbitrary JSON value to store.
type cacheEntryRequest struct {
	Value json.RawMessage `json:"value"`
}

type cacheEntryResponse struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type cacheDeleteResponse struct {
	Deleted int `json:"deleted"`
}

// userCacheKey scopes a caller-chosen key to its owner so users cannot
// read or clobber each other's entries.
func userCacheKey(principal *session.Principal, key string) string {
	return "user:" + principal.UserID.String() + ":" + key
}

func (s *Server) recordCacheOp(operation, result string) {
	if s.metrics != nil {
		s.metrics.CacheOperations.WithLabelValues(operation, result).Inc()
	}
}

func (s *Server) handlePutCacheEntry(w http.ResponseWriter, r *http.Request) {
	principal := currentPrincipal(r)
	key := r.PathValue("key")

	var req cacheEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Value) == 0 {
		s.writeError(w, http.StatusBadRequest, "CACHE_EMPTY_VALUE", "value is required")
		return
	}

	if err := cache.Store(r.Context(), s.cache, userCacheKey(principal, key), req.Value); err != nil {
		s.recordCacheOp("store", "error")
		s.serverError(w, "cache store failed", err)
		return
	}

	s.recordCacheOp("store", "success")
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGetCacheEntry(w http.ResponseWriter, r *http.Request) {
	principal := currentPrincipal(r)
	key := r.PathValue("key")

	value, found, err := cache.Retrieve[json.RawMessage](r.Context(), s.cache, userCacheKey(principal, key))
	if err != nil {
		s.recordCacheOp("retrieve", "error")
		s.serverError(w, "cache retrieve failed", err)
		return
	}
	if !found {
		s.recordCacheOp("retrieve", "miss")
		s.writeError(w, http.StatusNotFound, "CACHE_MISS", "no such cache entry")
		return
	}

	s.recordCacheOp("retrieve", "hit")
	writeJSON(w, http.StatusOK, cacheEntryResponse{Key: key, Value: value})
}

func (s *Server) handleDeleteCacheEntry(w http.ResponseWriter, r *http.Request) {
	principal := currentPrincipal(r)
	key := r.PathValue("key")

	if err := s.cache.Delete(r.Context(), userCacheKey(principal, key)); err != nil {
		s.recordCacheOp("delete", "error")
		s.serverError(w, "cache delete failed", err)
		return
	}

	s.recordCacheOp("delete", "success")
	writeJSON(w, http.StatusNoContent, nil)
}

// handleDeleteCacheMatching deletes every entry of the caller whose key
// matches the glob pattern in the "pattern" query parameter.
func (s *Server) handleDeleteCacheMatching(w http.ResponseWriter, r *http.Request) {
	principal := currentPrincipal(r)

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		s.writeError(w, http.StatusBadRequest, "CACHE_EMPTY_PATTERN", "pattern query parameter is required")
		return
	}

	deleted, err := s.cache.DeleteMatching(r.Context(), userCacheKey(principal, pattern))
	if err != nil {
		s.recordCacheOp("delete_matching", "error")
		s.serverError(w, "cache pattern delete failed", err)
		return
	}

	s.recordCacheOp("delete_matching", "success")
	writeJSON(w, http.StatusOK, cacheDeleteResponse{Deleted: deleted})
}
