package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spindrift-labs/statserve/config"
	"github.com/spindrift-labs/statserve/market"
	"github.com/spindrift-labs/statserve/tool"
)

// NewToolsCmd creates the "tools" subcommand, which lists the tool surface
// the server would expose with the current configuration.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools the server exposes",
		RunE:  runTools,
	}
	cmd.Flags().String("config", "", "Path to statserve.yaml")
	return cmd
}

func runTools(cmd *cobra.Command, _ []string) error {
	resolver := config.New()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := resolver.LoadFile(path); err != nil {
			return exitError(exitConfig, "loading config: %v", err)
		}
	}

	registry := tool.NewRegistry()
	registry.MustRegister(tool.Builtins(resolver)...)
	if resolver.GetString("market.base_url", "") != "" {
		provider, err := market.NewHTTPProvider(market.HTTPProviderConfig{
			BaseURL: resolver.GetString("market.base_url", ""),
			APIKey:  resolver.GetString("market.api_key", ""),
		})
		if err != nil {
			return exitError(exitConfig, "market provider: %v", err)
		}
		registry.MustRegister(market.Registrations(provider)...)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPARAMS\tDESCRIPTION")
	for _, reg := range registry.List() {
		params := make([]string, len(reg.Schema.Params))
		for i, p := range reg.Schema.Params {
			if p.Required {
				params[i] = p.Name + "*"
			} else {
				params[i] = p.Name
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", reg.Name, strings.Join(params, ","), reg.Description)
	}
	return tw.Flush()
}
