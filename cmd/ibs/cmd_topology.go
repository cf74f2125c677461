package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/ibs/config"
	"github.com/pthm-cable/ibs/geometry"
)

func newTopologyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Build a geometry and print its degree statistics",
		Long: `Topology builds the configured interaction geometry, optionally with
another kind, size or rewiring, and reports its degree statistics.

Available kinds are listed with --list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			list, _ := cmd.Flags().GetBool("list")
			kind, _ := cmd.Flags().GetString("kind")
			size, _ := cmd.Flags().GetInt("size")
			connectivity, _ := cmd.Flags().GetFloat64("connectivity")
			undirected, _ := cmd.Flags().GetFloat64("rewire-undirected")
			directed, _ := cmd.Flags().GetFloat64("rewire-directed")

			if list {
				for _, k := range geometry.Kinds() {
					fmt.Printf("%-4s %s\n", k.Key(), k.String())
				}
				return nil
			}

			cfg := config.Cfg()
			gc := cfg.Interaction
			if kind != "" {
				gc.Kind = kind
			}
			if size > 0 {
				gc.Size = size
			}
			if connectivity > 0 {
				gc.Connectivity = connectivity
			}
			spec, err := gc.Spec()
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
			g, err := geometry.Build(spec, rng, slog.Default())
			if err != nil {
				return err
			}
			if err := g.Rewire(undirected, directed); err != nil {
				return err
			}

			stats := g.Stats()
			connected := g.IsConnected()
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"kind":      g.Kind.String(),
					"size":      g.Size,
					"directed":  g.Directed,
					"links":     g.Links(),
					"connected": connected,
					"stats":     stats,
				})
			}

			fmt.Printf("%s, %d sites", g.Kind.String(), g.Size)
			if g.IsMeanField() {
				fmt.Println(" (well mixed)")
				return nil
			}
			fmt.Printf(", %d links, directed=%t, connected=%t\n", g.Links(), g.Directed, connected)
			fmt.Printf("out degree  min %d  max %d  avg %.3f\n", stats.MinOut, stats.MaxOut, stats.AvgOut)
			fmt.Printf("in degree   min %d  max %d  avg %.3f\n", stats.MinIn, stats.MaxIn, stats.AvgIn)
			fmt.Printf("total       min %d  max %d  avg %.3f\n", stats.MinTot, stats.MaxTot, stats.AvgTot)
			fmt.Printf("regular     %t\n", stats.Regular)
			return nil
		},
	}

	cmd.Flags().Bool("list", false, "List geometry kinds")
	cmd.Flags().String("kind", "", "Geometry kind key or name (empty = use config)")
	cmd.Flags().Int("size", 0, "Number of sites (0 = use config)")
	cmd.Flags().Float64("connectivity", 0, "Degree (0 = use config)")
	cmd.Flags().Float64("rewire-undirected", 0, "Fraction of undirected edges to rewire")
	cmd.Flags().Float64("rewire-directed", 0, "Fraction of directed links to rewire")

	return cmd
}
