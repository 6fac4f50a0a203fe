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
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) newTranslateCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "translate [request]",
		Short: "Translate a natural-language request into SQL",
		Long:  `Tags the request with the configured entity tagger and prints the synthesized SQL without executing it.`,
		Example: `nl2sql translate "how many students are there"
nl2sql translate --tagger static "AGGREGATE:count; TABLE:students"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.setup(cmd.Context(), needs{tagger: true})
			if err != nil {
				return err
			}
			defer c.close()

			res, err := c.svc.Translate(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printResult(cmd, res, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
