// Copyright 2025 Certen Protocol
//
// Ceremony Status API Handlers
// Provides read-only HTTP endpoints over the ceremony module and its
// closed-cycle archive, for dashboards and monitoring.

package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/humanproof-network/ceremonies/pkg/ceremony"
	"github.com/humanproof-network/ceremonies/pkg/database"
)

// CeremonyHandlers provides HTTP handlers for ceremony status and archive
// queries. archive is optional: when nil, HandleClosedCeremony reports it
// unavailable rather than failing the whole server.
type CeremonyHandlers struct {
	module  *ceremony.Module
	archive *database.ClosedCeremonyRepository
	chainID string
	logger  *log.Logger
}

// NewCeremonyHandlers creates new ceremony status handlers.
func NewCeremonyHandlers(module *ceremony.Module, archive *database.ClosedCeremonyRepository, chainID string, logger *log.Logger) *CeremonyHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[CeremonyAPI] ", log.LstdFlags)
	}
	return &CeremonyHandlers{module: module, archive: archive, chainID: chainID, logger: logger}
}

// HandleStatus handles GET /status: the current phase, ceremony index, and
// live participant/meetup counts for the open cycle.
func (h *CeremonyHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}

	index, err := h.module.CurrentCeremonyIndex()
	if err != nil {
		h.logger.Printf("status: current ceremony index: %v", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read ceremony index")
		return
	}
	phase, err := h.module.CurrentPhase()
	if err != nil {
		h.logger.Printf("status: current phase: %v", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read ceremony phase")
		return
	}
	participantCount, meetupCount, err := h.module.Stats()
	if err != nil {
		h.logger.Printf("status: stats: %v", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read ceremony stats")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"chainId":          h.chainID,
		"ceremonyIndex":    index,
		"phase":            phase.String(),
		"participantCount": participantCount,
		"meetupCount":      meetupCount,
	})
}

// HandleClosedCeremony handles GET /api/ceremonies/{index}: the archived
// ballot result and reward roll for a closed cycle.
func (h *CeremonyHandlers) HandleClosedCeremony(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/ceremonies/")
	indexStr := strings.TrimSuffix(strings.Split(path, "/")[0], "/")
	index, err := strconv.ParseUint(indexStr, 10, 32)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_CEREMONY_INDEX", "ceremony index must be a non-negative integer")
		return
	}
	if h.archive == nil {
		h.writeError(w, http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "ceremony archive is not configured")
		return
	}

	record, err := h.archive.Get(r.Context(), uint32(index))
	if err != nil {
		if err == database.ErrNotFound {
			h.writeError(w, http.StatusNotFound, "CEREMONY_NOT_FOUND", fmt.Sprintf("no closed ceremony at index %d", index))
			return
		}
		h.logger.Printf("closed ceremony %d: %v", index, err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve closed ceremony")
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// HandleRecentClosedCeremonies handles GET /api/ceremonies?limit=N.
func (h *CeremonyHandlers) HandleRecentClosedCeremonies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}
	if h.archive == nil {
		h.writeError(w, http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "ceremony archive is not configured")
		return
	}

	limit := 20
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.archive.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Printf("recent closed ceremonies: %v", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve closed ceremonies")
		return
	}

	h.writeJSON(w, http.StatusOK, records)
}

func (h *CeremonyHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("error encoding response: %v", err)
	}
}

func (h *CeremonyHandlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
