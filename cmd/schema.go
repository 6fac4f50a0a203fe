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
	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/schema"
)

func (a *app) newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the active schema catalog as YAML",
		Long: `Prints the schema catalog the resolver would use. The output can be pasted
under "schema:" in a config file. Use --introspect to read it from the database.`,
		Example: `nl2sql schema --dialect postgres --host localhost --username user --password pass --database school --introspect`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			catalog, err := a.buildCatalog(cmd.Context(), db)
			if err != nil {
				return err
			}
			out, err := schema.EncodeYAML(catalog)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
