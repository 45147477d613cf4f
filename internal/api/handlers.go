// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/resarbiter/resourced/internal/arbiter"
	"github.com/resarbiter/resourced/internal/logging"
	ws "github.com/resarbiter/resourced/internal/websocket"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("api: encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// setResponse is the wire shape of one resource set's snapshot.
type setResponse struct {
	ManagerID  uint32 `json:"manager_id"`
	ClientID   string `json:"client_id"`
	ClientAddr string `json:"client_addr"`
	ClientPID  int    `json:"client_pid"`
	ClassName  string `json:"class_name"`
	Request    string `json:"request"`
	Block      bool   `json:"block"`
	Mandatory  string `json:"mandatory"`
	Optional   string `json:"optional"`
	Granted    string `json:"granted"`
	Advice     string `json:"advice"`
}

func toSetResponse(s arbiter.SetSnapshot) setResponse {
	return setResponse{
		ManagerID:  s.ManagerID,
		ClientID:   s.ClientID,
		ClientAddr: s.ClientAddr,
		ClientPID:  s.ClientPID,
		ClassName:  s.ClassName,
		Request:    s.Request,
		Block:      s.Block,
		Mandatory:  (s.All &^ s.Opt).String(),
		Optional:   s.Opt.String(),
		Granted:    s.Granted.String(),
		Advice:     s.Advice.String(),
	}
}

// handleHealth godoc
//
//	@Summary		Liveness probe
//	@Description	Reports that the daemon process is up and serving.
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/api/v1/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
//
//	@Summary		Readiness probe
//	@Description	Reports whether the client transport is connected.
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Failure		503	{object}	map[string]string
//	@Router			/api/v1/health/ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && !s.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "transport not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleSets godoc
//
//	@Summary		List live resource sets
//	@Description	Every registered resource set, ordered by manager id.
//	@Tags			sets
//	@Produce		json
//	@Success		200	{array}	setResponse
//	@Router			/api/v1/sets [get]
func (s *Server) handleSets(w http.ResponseWriter, r *http.Request) {
	snaps := s.manager.Snapshot()
	out := make([]setResponse, len(snaps))
	for i, snap := range snaps {
		out[i] = toSetResponse(snap)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSet godoc
//
//	@Summary		Get one resource set
//	@Tags			sets
//	@Produce		json
//	@Param			id	path		int	true	"manager id"
//	@Success		200	{object}	setResponse
//	@Failure		400	{object}	errorResponse
//	@Failure		404	{object}	errorResponse
//	@Router			/api/v1/sets/{id} [get]
func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid manager id"})
		return
	}
	snap, ok := s.manager.Get(uint32(id))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown manager id"})
		return
	}
	writeJSON(w, http.StatusOK, toSetResponse(snap))
}

// handleClasses godoc
//
//	@Summary		List policy classes
//	@Description	The compiled-in class directory, highest priority first.
//	@Tags			classes
//	@Produce		json
//	@Success		200	{array}	string
//	@Router			/api/v1/classes [get]
func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Classes())
}

// handleClassMembers godoc
//
//	@Summary		List one class's members
//	@Description	The class's live resource sets in priority order; the head is the current winner.
//	@Tags			classes
//	@Produce		json
//	@Param			name	path		string	true	"class name"
//	@Success		200		{array}		setResponse
//	@Failure		404		{object}	errorResponse
//	@Router			/api/v1/classes/{name} [get]
func (s *Server) handleClassMembers(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	members, ok := s.manager.ClassMembers(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown class"})
		return
	}
	out := make([]setResponse, len(members))
	for i, snap := range members {
		out[i] = toSetResponse(snap)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleTransactions godoc
//
//	@Summary		Transaction coordinator state
//	@Tags			transactions
//	@Produce		json
//	@Success		200	{object}	map[string]int
//	@Router			/api/v1/transactions [get]
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"open": s.txns.Pending()})
}

// handlePerformance godoc
//
//	@Summary		Endpoint latency statistics
//	@Description	Per-endpoint request counts and p50/p95/p99 latency over the recent window.
//	@Tags			debug
//	@Produce		json
//	@Success		200	{array}	middleware.EndpointStats
//	@Router			/api/v1/debug/performance [get]
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.perf.GetStats())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS already gates browser origins at the router level.
		return true
	},
}

// handleWebSocket godoc
//
//	@Summary		Grant/advice push stream
//	@Description	Upgrades to a websocket that receives every grant, advice, and release-request broadcast.
//	@Tags			ws
//	@Success		101
//	@Router			/api/v1/ws [get]
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("api: websocket upgrade failed")
		return
	}
	client := ws.NewClient(s.hub, conn)
	s.hub.Register <- client
	client.Start()
}
