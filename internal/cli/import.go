package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ewilliams-labs/trackfinder/internal/adapters/sqlite"
	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
)

func newImportCmd(g *globals) *cobra.Command {
	var catalogLocation, neighborsLocation, dbPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Snapshot the catalog and neighbor table into SQLite",
		Long: `Read both artifacts from their configured locations and replace the
contents of the SQLite snapshot used by data.driver=sqlite.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if catalogLocation == "" {
				catalogLocation = cfg.Data.Catalog
			}
			if neighborsLocation == "" {
				neighborsLocation = cfg.Data.Neighbors
			}
			if dbPath == "" {
				dbPath = cfg.Data.SQLitePath
			}

			reader := newArtifactReader(cfg, catalogLocation, neighborsLocation, g.logger)

			var (
				catalog *domain.Catalog
				table   *domain.NeighborTable
			)
			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.Go(func() error {
				var err error
				catalog, err = reader.ReadCatalog(ctx)
				return err
			})
			eg.Go(func() error {
				var err error
				table, err = reader.ReadNeighbors(ctx)
				return err
			})
			if err := eg.Wait(); err != nil {
				return err
			}

			db, err := sqlite.NewAdapter(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.SaveSnapshot(cmd.Context(), catalog, table); err != nil {
				return err
			}
			g.logger.Info("import: snapshot written", "db", dbPath, "tracks", catalog.Len(), "neighbor_lists", table.Len())
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d tracks and %d neighbor lists into %s\n", catalog.Len(), table.Len(), dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogLocation, "catalog", "", "Catalog location (overrides data.catalog)")
	cmd.Flags().StringVar(&neighborsLocation, "neighbors", "", "Neighbor table location (overrides data.neighbors)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides data.sqlite_path)")
	return cmd
}
