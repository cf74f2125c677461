package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/ibs/config"
	"github.com/pthm-cable/ibs/store"
)

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path := config.Cfg().Store.Path
			if path == "" {
				return errors.New("no run archive configured (store.path)")
			}

			s, err := store.Open(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				type runJSON struct {
					ID        string    `json:"id"`
					Seed      uint64    `json:"seed"`
					CreatedAt time.Time `json:"created_at"`
					Snapshots int       `json:"snapshots"`
				}
				out := make([]runJSON, len(runs))
				for i, r := range runs {
					out[i] = runJSON{ID: r.ID, Seed: r.Seed, CreatedAt: r.CreatedAt, Snapshots: r.Snapshots}
				}
				return json.NewEncoder(os.Stdout).Encode(out)
			}

			if len(runs) == 0 {
				fmt.Println("No archived runs.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSEED\tCREATED\tSNAPSHOTS")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%d\t%s\t%d\n", r.ID, r.Seed, r.CreatedAt.Format(time.DateTime), r.Snapshots)
			}
			return w.Flush()
		},
	}
}
