package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"markestedt/keyroute/storage"
)

var (
	statsDays  int
	statsLimit int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show activation statistics from the activation log",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path, err := resolveConfigPath()
		if err != nil {
			fatal("Error locating configuration", err)
		}

		db, err := storage.Open(filepath.Dir(path))
		if err != nil {
			fatal("Error opening activation log", err)
		}
		defer db.Close()

		overall, err := db.GetOverallStats(statsDays)
		if err != nil {
			fatal("Error reading statistics", err)
		}
		keys, err := db.GetKeyStats(statsDays)
		if err != nil {
			fatal("Error reading statistics", err)
		}

		since := "all time"
		if statsDays > 0 {
			since = "since " + humanize.Time(time.Now().AddDate(0, 0, -statsDays))
		}
		fmt.Printf("%s presses %s across %s sessions\n",
			humanize.Comma(int64(overall.Total)), since, humanize.Comma(int64(overall.Sessions)))
		fmt.Printf("emitted %s, suppressed %s, blocked %s, forwarded %s, diverted %s, failed %s, window timeouts %s\n",
			humanize.Comma(int64(overall.Emitted)), humanize.Comma(int64(overall.Suppressed)),
			humanize.Comma(int64(overall.Blocked)), humanize.Comma(int64(overall.Forwarded)),
			humanize.Comma(int64(overall.Diverted)),
			humanize.Comma(int64(overall.Failures)), humanize.Comma(int64(overall.ContextTimeouts)))
		fmt.Printf("latency avg %s, max %s\n\n", micros(overall.AvgLatencyUs), micros(float64(overall.MaxLatencyUs)))

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "KEY\tTOTAL\tEMITTED\tSUPPRESSED\tBLOCKED\tFORWARDED\tDIVERTED\tAVG LATENCY\t")
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t\n",
				k.Key, humanize.Comma(int64(k.Total)), k.Emitted, k.Suppressed, k.Blocked, k.Forwarded, k.Diverted, micros(k.AvgLatencyUs))
		}
		w.Flush()

		if statsLimit <= 0 {
			return
		}
		recent, err := db.GetActivations(statsLimit, 0)
		if err != nil {
			fatal("Error reading history", err)
		}
		fmt.Println()
		for _, a := range recent {
			window := ""
			if a.WindowTitle != nil {
				window = fmt.Sprintf(" in %q", *a.WindowTitle)
			}
			fmt.Printf("%-14s %-5s %-10s %s%s\n", humanize.Time(a.Timestamp), a.Key, a.Outcome, a.Action, window)
		}
	},
}

// micros renders a latency in microseconds with an SI prefix
func micros(us float64) string {
	return humanize.SIWithDigits(us/1e6, 1, "s")
}

func init() {
	statsCmd.Flags().IntVarP(&statsDays, "days", "d", 7, "Number of days to include (0 for all)")
	statsCmd.Flags().IntVarP(&statsLimit, "recent", "n", 10, "Number of recent activations to list")
	rootCmd.AddCommand(statsCmd)
}
