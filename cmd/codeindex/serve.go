package main

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/DeusData/codeindex/internal/config"
	"github.com/DeusData/codeindex/internal/pipeline"
	"github.com/DeusData/codeindex/internal/tools"
	"github.com/DeusData/codeindex/internal/watcher"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			// Env overrides still apply; per-repository files are not consulted.
			cfg := config.Default()
			if err := cfg.ApplyEnv(); err != nil {
				return err
			}
			opts := pipeline.OptionsFromConfig(cfg)
			srv := tools.NewServer(st, opts, version)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if watch, _ := cmd.Flags().GetBool("watch"); watch {
				w := watcher.New(st, func(ctx context.Context, project, root string) error {
					_, err := srv.Reindex(ctx, project, root)
					return err
				}, opts)
				go w.Run(ctx)
			}
			return srv.MCPServer().Run(ctx, &mcp.StdioTransport{})
		},
	}
	cmd.Flags().Bool("watch", true, "Re-index stored projects when their files change")
	return cmd
}
