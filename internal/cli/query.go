package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
	"github.com/ewilliams-labs/trackfinder/internal/core/services"
)

// =============================================================================
// search
// =============================================================================

func newSearchCmd(g *globals) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search tracks by title and artist",
		Long: `Search the catalog. Every whitespace-separated word of the query must
appear, case-insensitively, in "artist title". Results keep catalog order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			tracks, err := a.svc.Search(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, toTrackViews(tracks))
			}
			if len(tracks) == 0 {
				fmt.Fprintf(out, "No tracks match %q\n", query)
				return nil
			}
			printTracks(out, tracks)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", services.DefaultSearchLimit, "Maximum results (at most 50)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// =============================================================================
// similar
// =============================================================================

func newSimilarCmd(g *globals) *cobra.Command {
	var (
		k       int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "similar <id>",
		Short: "List the nearest neighbors of a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.Similar(cmd.Context(), args[0], k)
			if err != nil && !errors.Is(err, domain.ErrNeighborsUnavailable) {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				view := similarView{Track: toTrackView(res.Track), Neighbors: make([]neighborView, 0, len(res.Neighbors))}
				for _, n := range res.Neighbors {
					view.Neighbors = append(view.Neighbors, neighborView{
						Track:      toTrackView(n.Track),
						Distance:   n.Distance,
						Similarity: n.Similarity(),
					})
				}
				return writeJSON(out, view)
			}

			fmt.Fprintf(out, "%s\n\n", res.Track.Key())
			if len(res.Neighbors) == 0 {
				fmt.Fprintln(out, "No similar tracks found")
				return nil
			}
			for i, n := range res.Neighbors {
				fmt.Fprintf(out, "%2d. %3d%%  %s\n", i+1, n.Similarity(), n.Track.Key())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "count", "k", services.DefaultNeighborCount, "Number of neighbors to consider (at most 50)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// =============================================================================
// random
// =============================================================================

func newRandomCmd(g *globals) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "random",
		Short: "Print a random track",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.svc.Random(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), toTrackView(t))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.ID, t.Key())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// =============================================================================
// Output
// =============================================================================

type trackView struct {
	ID       string                `json:"id"`
	Title    string                `json:"title"`
	Artist   string                `json:"artist"`
	Key      string                `json:"key"`
	Features *domain.AudioFeatures `json:"features,omitempty"`
}

type neighborView struct {
	Track      trackView `json:"track"`
	Distance   float64   `json:"distance"`
	Similarity int       `json:"similarity"`
}

type similarView struct {
	Track     trackView      `json:"track"`
	Neighbors []neighborView `json:"neighbors"`
}

func toTrackView(t domain.Track) trackView {
	return trackView{ID: t.ID, Title: t.Title, Artist: t.Artist, Key: t.Key(), Features: t.Features}
}

func toTrackViews(tracks []domain.Track) []trackView {
	views := make([]trackView, 0, len(tracks))
	for _, t := range tracks {
		views = append(views, toTrackView(t))
	}
	return views
}

func printTracks(w io.Writer, tracks []domain.Track) {
	for _, t := range tracks {
		fmt.Fprintf(w, "%s\t%s\n", t.ID, t.Key())
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
