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

// Package service ties the tagger, the planner, the SQL renderer and the
// database together for one deployment.
package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"iter"
	"net"
	"strings"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/database"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/entity"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/planner"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/resolver"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/schema"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/sqlgen"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/tagger"
)

var (
	// ErrNoTagger is returned by Translate and Run when no tagger is configured.
	ErrNoTagger = errors.New("no entity tagger configured")
	// ErrNoExecutor is returned by Run when no database is configured.
	ErrNoExecutor = errors.New("no database configured")
)

// Executor runs a synthesized query. *database.DB satisfies it.
type Executor interface {
	Query(ctx context.Context, query string) (*database.ResultSet, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

var _ Executor = (*database.DB)(nil)

// Result is the outcome of one request.
type Result struct {
	Query      string               `json:"query"`
	Unresolved []planner.Diagnostic `json:"unresolved,omitempty"`
	Columns    []string             `json:"columns,omitempty"`
	Rows       [][]any              `json:"results,omitempty"`
	Plan       *planner.Plan        `json:"-"`
}

// Service answers requests against one schema catalog. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	catalog  *schema.Catalog
	builder  *planner.Builder
	tagger   tagger.Tagger
	executor Executor
	retry    RetryOptions
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithTagger(t tagger.Tagger) Option {
	return func(s *Service) { s.tagger = t }
}

func WithExecutor(e Executor) Option {
	return func(s *Service) { s.executor = e }
}

func WithRetryOptions(opts RetryOptions) Option {
	return func(s *Service) { s.retry = opts }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a Service resolving words against catalog with mapper.
func New(catalog *schema.Catalog, mapper resolver.Mapper, opts ...Option) (*Service, error) {
	if catalog == nil {
		return nil, &ErrInvalidInput{Msg: "schema catalog is required"}
	}
	if mapper == nil {
		return nil, &ErrInvalidInput{Msg: "reference mapper is required"}
	}
	s := &Service{
		catalog: catalog,
		retry:   DefaultRetryOptions,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.builder = planner.NewBuilder(catalog, mapper, planner.WithLogger(s.logger))
	return s, nil
}

// Catalog returns the schema catalog the service resolves against.
func (s *Service) Catalog() *schema.Catalog {
	return s.catalog
}

// HasExecutor reports whether Run can execute queries.
func (s *Service) HasExecutor() bool {
	return s.executor != nil
}

// Ping checks the executor's connection, if it has one to check.
func (s *Service) Ping(ctx context.Context) error {
	p, ok := s.executor.(pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return &ErrDatabaseConnection{Msg: "ping failed", Err: err}
	}
	return nil
}

// Synthesize builds a plan from entities and renders it. It never fails.
func (s *Service) Synthesize(entities iter.Seq[entity.Entity]) Result {
	plan := s.builder.Build(entities)
	query := sqlgen.Render(plan)
	s.logger.Debug("synthesized query",
		zap.String("query", query),
		zap.Int("unresolved", len(plan.Unresolved)),
		zap.Bool("table_inferred", plan.TableInferred),
	)
	return Result{Query: query, Unresolved: plan.Unresolved, Plan: plan}
}

// Translate tags text and synthesizes a query from the tagged entities.
func (s *Service) Translate(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, &ErrInvalidInput{Msg: "user query cannot be empty"}
	}
	if s.tagger == nil {
		return Result{}, ErrNoTagger
	}

	entities, err := s.tagger.Tag(ctx, text)
	if err != nil {
		if ctxErr := contextError(ctx, err); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, &ErrTagging{Msg: "failed to tag user query", Err: err}
	}
	return s.Synthesize(entities), nil
}

// Run translates text and executes the resulting query. Transient database
// failures are retried according to the service's RetryOptions.
func (s *Service) Run(ctx context.Context, text string) (Result, error) {
	if s.executor == nil {
		return Result{}, ErrNoExecutor
	}
	res, err := s.Translate(ctx, text)
	if err != nil {
		return Result{}, err
	}

	rs, err := withRetry(ctx, s.retry, s.logger, func(ctx context.Context) (*database.ResultSet, error) {
		rs, err := s.executor.Query(ctx, res.Query)
		if err != nil {
			return nil, classifyQueryError(ctx, err)
		}
		return rs, nil
	})
	if err != nil {
		s.logger.Error("query execution failed", zap.String("query", res.Query), zap.Error(err))
		return res, err
	}

	res.Columns = rs.Columns
	res.Rows = rs.Rows
	s.logger.Info("executed query",
		zap.String("query", res.Query),
		zap.Int("rows", len(rs.Rows)),
	)
	return res, nil
}

func contextError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &ErrTimeout{Msg: "operation timed out", Err: err}
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return &ErrCancelled{Msg: "operation cancelled by context", Err: err}
	}
	return nil
}

// classifyQueryError maps an executor error onto the service error types so
// that withRetry can tell transient failures from rejected queries.
func classifyQueryError(ctx context.Context, err error) error {
	if ctxErr := contextError(ctx, err); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return &ErrDatabaseConnection{Msg: "lost connection while executing query", Err: err}
	}
	return &ErrQueryExecution{Msg: "database rejected query", Err: err}
}
