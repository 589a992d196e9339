package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/trackfinder/internal/core/services"
)

func newBrowseCmd(g *globals) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Search as you type, one query per input line",
		Long: `Read queries from stdin, one per line, and print results for the latest
query once input pauses for search.debounce. Queries superseded within the
window are never run. The final query is always shown at end of input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			b := &browser{svc: a.svc, out: cmd.OutOrStdout(), limit: limit}
			return b.run(cmd.Context(), cmd.InOrStdin(), services.NewDebouncer(g.cfg.Search.Debounce))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", services.DefaultSearchLimit, "Maximum results per query (at most 50)")
	return cmd
}

// browser prints debounced search results.
type browser struct {
	svc   *services.Orchestrator
	out   io.Writer
	limit int

	mu       sync.Mutex
	shownSeq int
}

func (b *browser) run(ctx context.Context, in io.Reader, d *services.Debouncer) error {
	var (
		seq  int
		last string
	)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		seq++
		query, n := strings.TrimSpace(scanner.Text()), seq
		last = query
		d.Trigger("query", func() { b.show(ctx, n, query) })
	}
	d.Stop()
	if seq > 0 {
		b.show(ctx, seq, last)
	}
	return scanner.Err()
}

// show prints results for the query typed as line seq. Lines older than
// the last one shown are skipped.
func (b *browser) show(ctx context.Context, seq int, query string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq <= b.shownSeq {
		return
	}
	b.shownSeq = seq

	fmt.Fprintf(b.out, "> %s\n", query)
	tracks, err := b.svc.Search(ctx, query, b.limit)
	switch {
	case err != nil:
		fmt.Fprintf(b.out, "  error: %v\n", err)
	case len(tracks) == 0:
		fmt.Fprintln(b.out, "  no matches")
	default:
		for _, t := range tracks {
			fmt.Fprintf(b.out, "  %s\t%s\n", t.ID, t.Key())
		}
	}
}
