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

package tagger

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/entity"
)

const defaultModel = "gemini-1.5-flash-latest"

// GeminiConfig holds configuration for the Gemini tagger.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Gemini asks a Gemini model to label the spans of a request.
type Gemini struct {
	client *genai.Client
	cfg    GeminiConfig
	logger *zap.Logger
}

// NewGemini creates a Gemini tagger. The caller must Close it.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cannot create Gemini tagger: API key is missing")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if cfg.Model == "" {
		cfg.Model = defaultModel
		logger.Info("Gemini model not specified, using default", zap.String("model", cfg.Model))
	}

	return &Gemini{client: client, cfg: cfg, logger: logger}, nil
}

// Close cleans up the underlying Gemini client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// IsAPIKeyValid checks the API key by listing one model.
func (g *Gemini) IsAPIKeyValid(ctx context.Context) error {
	if g.client == nil {
		return fmt.Errorf("gemini client not initialized")
	}

	_, err := g.client.ListModels(ctx).Next()
	if err != nil {
		if st, ok := status.FromError(err); ok {
			if st.Code() == codes.Unauthenticated || st.Code() == codes.PermissionDenied {
				return fmt.Errorf("invalid Gemini API key or insufficient permissions: %w", err)
			}
		}
		return fmt.Errorf("failed to verify Gemini API key by listing models: %w", err)
	}
	return nil
}

// Tag sends text to the model and parses the labeled spans it returns.
func (g *Gemini) Tag(ctx context.Context, text string) (iter.Seq[entity.Entity], error) {
	if g.client == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}
	if strings.TrimSpace(text) == "" {
		return entity.Slice(), nil
	}

	model := g.client.GenerativeModel(g.cfg.Model)
	model.SetTemperature(0)
	model.SetMaxOutputTokens(400)
	model.SetTopP(0.9)
	model.SetTopK(40)

	resp, err := model.GenerateContent(ctx, genai.Text(buildPrompt(text)))
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	body, err := getFirstTextPart(resp)
	if err != nil {
		return nil, err
	}
	content, found := extractContentBetween(body, "<entities>", "</entities>")
	if !found {
		g.logger.Warn("no entities block in Gemini response", zap.String("request", text))
		return entity.Slice(), nil
	}

	entities := parseEntityLines(content, g.logger)
	g.logger.Debug("tagged request",
		zap.String("model", g.cfg.Model),
		zap.Int("entities", len(entities)),
	)
	return entity.Slice(entities...), nil
}

func buildPrompt(text string) string {
	labels := make([]string, 0, len(entity.Labels()))
	for _, l := range entity.Labels() {
		labels = append(labels, l.String())
	}
	return fmt.Sprintf(`
	Your task is to extract the parts of a database question that are needed to write a SQL query.

	********** Question **********
	%s
	********** End Question **********

	**Instructions:**
	1. Find every span of the question that names a table, a column, a filter, an aggregate function or a clause.
	2. Label each span with exactly one of: %s.
	3. Use AGGREGATE only for COUNT, SUM, AVG, MIN or MAX. Use LIMIT only for a number of rows.
	4. Output one span per line as LABEL|text, in the order the spans appear in the question, within <entities></entities> tags.
	5. If nothing can be extracted, output empty <entities></entities> tags. Do NOT invent spans.

	**Example Output:** <entities>
	AGGREGATE|count
	COLUMN|student id
	TABLE|students
	</entities>
	`, text, strings.Join(labels, ", "))
}

// parseEntityLines reads LABEL|text lines. Lines with an unknown label or no
// text are skipped.
func parseEntityLines(content string, logger *zap.Logger) []entity.Entity {
	var entities []entity.Entity
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		labelPart, text, found := strings.Cut(line, "|")
		text = strings.TrimSpace(text)
		if !found || text == "" {
			logger.Debug("skipping malformed entity line", zap.String("line", line))
			continue
		}
		label, err := entity.ParseLabel(labelPart)
		if err != nil {
			logger.Debug("skipping entity with unknown label", zap.String("line", line))
			continue
		}
		entities = append(entities, entity.New(text, label))
	}
	return entities
}

// getFirstTextPart extracts the first text part from a Gemini response.
func getFirstTextPart(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if resp != nil && len(resp.Candidates) > 0 {
			finishReason = resp.Candidates[0].FinishReason.String()
		}
		return "", fmt.Errorf("empty or incomplete response from Gemini API. FinishReason: %s", finishReason)
	}
	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part type: %T", part)
	}
	return string(text), nil
}

// extractContentBetween extracts content between start and end tags from a string.
func extractContentBetween(text, startTag, endTag string) (string, bool) {
	startIndex := strings.Index(text, startTag)
	if startIndex == -1 {
		return "", false
	}
	startIndex += len(startTag)
	endIndex := strings.Index(text[startIndex:], endTag)
	if endIndex == -1 {
		return "", false
	}
	return strings.TrimSpace(text[startIndex : startIndex+endIndex]), true
}
