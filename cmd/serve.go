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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/server"
)

func (a *app) newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		Long: `Starts the HTTP API: POST /query, POST /synthesize, GET /schema and GET /healthz.
The database connection pool is opened once at startup and shared by all requests.`,
		Example: `nl2sql serve --dialect mysql --host 127.0.0.1 --username root --password pass --database school --addr :8000`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := a.setup(ctx, needs{optionalTagger: true})
			if err != nil {
				return err
			}
			defer c.close()

			srvCfg := a.cfg.Server
			if addr != "" {
				srvCfg.Addr = addr
			}
			a.logger.Info("schema catalog loaded",
				zap.Int("tables", c.catalog.Len()),
				zap.Bool("database", c.db != nil),
			)
			return server.New(c.svc, srvCfg, a.logger).Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
