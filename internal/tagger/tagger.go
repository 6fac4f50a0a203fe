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

// Package tagger turns a natural-language request into labeled entities.
package tagger

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/config"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/entity"
)

// Tagger produces the labeled spans of a request.
type Tagger interface {
	Tag(ctx context.Context, text string) (iter.Seq[entity.Entity], error)
}

// New returns the tagger selected by cfg.Backend.
func New(ctx context.Context, cfg config.TaggerConfig, logger *zap.Logger) (Tagger, error) {
	switch strings.ToLower(cfg.Backend) {
	case "static":
		return Static{}, nil
	case "gemini", "":
		g, err := NewGemini(ctx, GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: cfg.Model}, logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unsupported tagger backend: %s", cfg.Backend)
	}
}

// Static reads entities written inline as "LABEL:text; LABEL:text". It is
// used for offline runs and tests where no model is available.
type Static struct{}

func (Static) Tag(_ context.Context, text string) (iter.Seq[entity.Entity], error) {
	entities, err := entity.ParseInline(text)
	if err != nil {
		return nil, err
	}
	return entity.Slice(entities...), nil
}
