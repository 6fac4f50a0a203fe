/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/entity"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/planner"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/schema"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/service"
)

const maxBodyBytes = 1 << 20

type QueryRequest struct {
	UserQuery string `json:"user_query"`
}

type QueryResponse struct {
	Query   string   `json:"query"`
	Columns []string `json:"columns"`
	Results [][]any  `json:"results"`
}

type SynthesizeRequest struct {
	Entities []entity.Entity `json:"entities"`
}

type SynthesizeResponse struct {
	Query      string               `json:"query"`
	Unresolved []planner.Diagnostic `json:"unresolved"`
}

type SchemaResponse struct {
	Tables []schema.Table `json:"tables"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SchemaResponse{Tables: s.svc.Catalog().Snapshot()})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.svc.Run(r.Context(), req.UserQuery)
	if err != nil {
		s.logger.Warn("query request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("query", res.Query),
			zap.Error(err),
		)
		writeError(w, statusFor(err), err)
		return
	}

	resp := QueryResponse{Query: res.Query, Columns: res.Columns, Results: res.Rows}
	if resp.Columns == nil {
		resp.Columns = []string{}
	}
	if resp.Results == nil {
		resp.Results = [][]any{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req SynthesizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res := s.svc.Synthesize(entity.Slice(req.Entities...))
	unresolved := res.Unresolved
	if unresolved == nil {
		unresolved = []planner.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, SynthesizeResponse{Query: res.Query, Unresolved: unresolved})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		invalid *service.ErrInvalidInput
		tagging *service.ErrTagging
		timeout *service.ErrTimeout
		conn    *service.ErrDatabaseConnection
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoTagger), errors.Is(err, service.ErrNoExecutor), errors.As(err, &conn):
		return http.StatusServiceUnavailable
	case errors.As(err, &tagging):
		return http.StatusBadGateway
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, err error) {
	writeJSON(w, statusCode, ErrorResponse{Error: err.Error()})
}
