package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rocache/datarecording"
	"github.com/sarchlab/rocache/tracing"
)

type reportOptions struct {
	cache       string
	summaryOnly bool
}

func newReportCmd() *cobra.Command {
	opts := &reportOptions{}

	reportCmd := &cobra.Command{
		Use:   "report <record>",
		Short: "Print the loads and evictions of a recording.",
		Long: `Print the loads and evictions that "run --record <record>" wrote ` +
			`into <record>.sqlite3, in the order they happened, followed by ` +
			`the counters of each cache.`,
		Args: cobra.ExactArgs(1),
		RunE: opts.run,
	}

	f := reportCmd.Flags()
	f.StringVar(&opts.cache, "cache", "", "Only report the cache with this name")
	f.BoolVar(&opts.summaryOnly, "summary", false, "Only print the counters")

	return reportCmd
}

func (o *reportOptions) run(cmd *cobra.Command, args []string) error {
	filename := args[0]
	if !strings.HasSuffix(filename, ".sqlite3") {
		filename += ".sqlite3"
	}

	// Opening a missing file would create an empty database.
	if _, err := os.Stat(filename); err != nil {
		return fmt.Errorf("recording %s: %w", filename, err)
	}

	reader, err := datarecording.NewReader(filename)
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.MapTable(tracing.AccessTableName, tracing.AccessEntry{})
	reader.MapTable(tracing.EvictionTableName, tracing.EvictionEntry{})

	ctx := cmd.Context()

	accesses, err := o.query(ctx, reader, tracing.AccessTableName)
	if err != nil {
		return err
	}

	evictions, err := o.query(ctx, reader, tracing.EvictionTableName)
	if err != nil {
		return err
	}

	r := newRecordReport()
	for _, row := range accesses {
		r.addAccess(row.(*tracing.AccessEntry))
	}

	for _, row := range evictions {
		r.addEviction(row.(*tracing.EvictionEntry))
	}

	out := cmd.OutOrStdout()
	if !o.summaryOnly {
		r.printRows(out)
	}
	r.printCounts(out)

	return nil
}

func (o *reportOptions) query(
	ctx context.Context,
	reader datarecording.DataReader,
	table string,
) ([]any, error) {
	params := datarecording.QueryParams{OrderBy: "Seq, ID"}
	if o.cache != "" {
		params.Where = "Location = ?"
		params.Args = []any{o.cache}
	}

	rows, _, err := reader.Query(ctx, table, params)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	return rows, nil
}

// recordReport groups the rows of a recording by access. Evictions share the
// sequence number of the load that caused them.
type recordReport struct {
	accesses  []*tracing.AccessEntry
	evictions map[uint64][]*tracing.EvictionEntry
	counts    map[string]*tracing.AccessCount
	names     []string
}

func newRecordReport() *recordReport {
	return &recordReport{
		evictions: make(map[uint64][]*tracing.EvictionEntry),
		counts:    make(map[string]*tracing.AccessCount),
	}
}

func (r *recordReport) addEviction(e *tracing.EvictionEntry) {
	r.evictions[e.Seq] = append(r.evictions[e.Seq], e)
	r.countOf(e.Location).Evictions++
}

func (r *recordReport) addAccess(e *tracing.AccessEntry) {
	r.accesses = append(r.accesses, e)

	count := r.countOf(e.Location)
	if e.Hit {
		count.Hits++
	} else {
		count.Misses++
	}
}

func (r *recordReport) countOf(name string) *tracing.AccessCount {
	count, ok := r.counts[name]
	if !ok {
		count = &tracing.AccessCount{}
		r.counts[name] = count
		r.names = append(r.names, name)
	}

	return count
}

func (r *recordReport) printRows(w io.Writer) {
	for _, a := range r.accesses {
		for _, e := range r.evictions[a.Seq] {
			fmt.Fprintf(w, "%d %s evict 0x%x set %d way %d\n",
				e.Seq, e.Location, e.BlockAddress, e.SetID, e.WayID)
		}

		fmt.Fprintf(w, "%d %s 0x%x %s 0x%02x set %d way %d\n",
			a.Seq, a.Location, a.Address, hitOrMiss(a.Hit), a.Value,
			a.SetID, a.WayID)
	}
}

func (r *recordReport) printCounts(w io.Writer) {
	for _, name := range r.names {
		printCount(w, name, *r.counts[name])
	}
}
