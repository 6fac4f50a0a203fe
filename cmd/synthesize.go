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

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/entity"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/service"
)

func (a *app) newSynthesizeCmd() *cobra.Command {
	var (
		inline string
		file   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Synthesize SQL from labeled entities",
		Long: `Resolves labeled entities against the schema catalog and prints the synthesized
SQL. Entities are given inline with --entities or as a JSON array of
{"text": ..., "label": ...} objects with --file ("-" reads stdin). Spans that
could not be used are reported on stderr.`,
		Example: `nl2sql synthesize --entities "AGGREGATE:count; COLUMN:student id; TABLE:students"
nl2sql synthesize --file entities.json --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entities, err := readEntities(cmd.InOrStdin(), inline, file)
			if err != nil {
				return err
			}

			c, err := a.setup(cmd.Context(), needs{})
			if err != nil {
				return err
			}
			defer c.close()

			res := c.svc.Synthesize(entity.Slice(entities...))
			return printResult(cmd, res, asJSON)
		},
	}
	cmd.Flags().StringVar(&inline, "entities", "", `Inline entities, "LABEL:text; LABEL:text"`)
	cmd.Flags().StringVar(&file, "file", "", "JSON file with an array of entities")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.MarkFlagsMutuallyExclusive("entities", "file")
	cmd.MarkFlagsOneRequired("entities", "file")
	return cmd
}

func readEntities(stdin io.Reader, inline, file string) ([]entity.Entity, error) {
	if file == "" {
		return entity.ParseInline(inline)
	}
	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read entities file: %w", err)
	}
	return entity.DecodeJSON(data)
}

// printResult writes the query (and rows, if any) to stdout and the dropped
// spans to stderr.
func printResult(cmd *cobra.Command, res service.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Query)
	for _, d := range res.Unresolved {
		fmt.Fprintf(cmd.ErrOrStderr(), "unresolved: %s: %s\n", d.Entity, d.Reason)
	}
	if len(res.Columns) > 0 {
		return printRows(cmd.OutOrStdout(), res.Columns, res.Rows)
	}
	return nil
}
