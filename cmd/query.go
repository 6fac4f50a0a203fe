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
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) newQueryCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "query [request]",
		Short: "Translate a request and run it against the database",
		Long:  `Tags the request, synthesizes SQL, executes it against the configured database and prints the rows.`,
		Example: `nl2sql query --dialect postgres --host localhost --username user --password pass --database school "list the first names of students"
nl2sql query --dialect sqlite --database ./school.db --introspect --tagger static "TABLE:students; COLUMN:first name"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.setup(cmd.Context(), needs{tagger: true, database: true})
			if err != nil {
				return err
			}
			defer c.close()

			res, err := c.svc.Run(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				if res.Query != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), res.Query)
				}
				return err
			}
			return printResult(cmd, res, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

// printRows writes rows as an aligned table with a header line.
func printRows(w io.Writer, columns []string, rows [][]any) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}
