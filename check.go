package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"markestedt/keyroute/config"
	"markestedt/keyroute/rules"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print the bindings",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path, err := resolveConfigPath()
		if err != nil {
			fatal("Error locating configuration", err)
		}

		snap, err := config.LoadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		keys := snap.Keys()
		conditional := lo.CountBy(keys, func(k rules.KeyID) bool {
			b, _ := snap.Binding(k)
			return b.Conditional()
		})
		fmt.Printf("%s: OK, %d bindings (%d conditional), %d debounce profiles\n\n",
			snap.Source(), len(keys), conditional, len(snap.ProfileNames()))

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tDEBOUNCE\tACTION")
		for _, k := range keys {
			b, _ := snap.Binding(k)
			debounce := lo.Ternary(b.Debounce == "", "-", b.Debounce)
			if a, single := b.Action(); single {
				fmt.Fprintf(w, "%s\t%s\t%s\n", k, debounce, a)
				continue
			}
			for i, r := range b.Rules() {
				key := lo.Ternary(i == 0, string(k), "")
				fmt.Fprintf(w, "%s\t%s\t%s -> %s\n", key, debounce, describeCondition(r.Condition), r.Action)
				debounce = ""
			}
			fmt.Fprintf(w, "\t\totherwise -> %s\n", rules.Passthrough)
		}
		w.Flush()

		for _, name := range snap.ProfileNames() {
			p, _ := snap.Profile(name)
			fmt.Printf("\ndebounce %q: hold %s, repeat window %s", name, p.InitialHold, p.RepeatWindow)
			for _, dir := range []rules.Scroll{rules.ScrollUp, rules.ScrollDown} {
				if a, ok := p.Divert(dir); ok {
					fmt.Printf(", %s while held -> %s", dir, a)
				}
			}
		}
		if len(snap.ProfileNames()) > 0 {
			fmt.Println()
		}
	},
}

type criterion struct {
	name string
	opt  rules.Optional
}

func describeCondition(c rules.Condition) string {
	if c.IsEmpty() {
		return "always"
	}
	criteria := []criterion{
		{"title", c.Title}, {"not_title", c.NotTitle},
		{"class", c.Class}, {"not_class", c.NotClass},
		{"binary", c.Binary}, {"not_binary", c.NotBinary},
	}
	parts := lo.FilterMap(criteria, func(f criterion, _ int) (string, bool) {
		v, ok := f.opt.Get()
		return fmt.Sprintf("%s=%q", f.name, v), ok
	})
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
