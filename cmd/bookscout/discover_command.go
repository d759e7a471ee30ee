package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bookscout/internal/discovery"
)

func newDiscoverCommand(ctx *commandContext) *cobra.Command {
	var flags searchFlags
	cmd := &cobra.Command{
		Use:   "discover <prompt>",
		Short: "Ask for recommendations and find them in the catalogs",
		Long: "Sends the prompt to the recommendation model, looks each suggestion up in the catalogs " +
			"and tops the list up with a regular search. Without a model key this is a plain search.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := commandCtx(cmd)
			a, err := ctx.ensureApp(runCtx)
			if err != nil {
				return err
			}
			prompt := strings.Join(args, " ")
			params := flags.params("")
			result, err := a.discovery.Discover(runCtx, prompt, params)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			if result.Mode == discovery.ModeSearch {
				reason := result.FallbackReason
				if reason == "" {
					reason = "plain search"
				}
				fmt.Fprintf(out, "Recommendations skipped: %s\n", reason)
			} else if len(result.Suggestions) > 0 {
				matched := make(map[string]float64, len(result.Matches))
				for _, m := range result.Matches {
					matched[m.Suggestion.Title] = m.Score
				}
				rows := make([][]string, 0, len(result.Suggestions))
				for i, s := range result.Suggestions {
					score := "-"
					if v, ok := matched[s.Title]; ok {
						score = strconv.FormatFloat(v, 'f', 2, 64)
					}
					rows = append(rows, []string{strconv.Itoa(i + 1), s.Title, s.Author, score})
				}
				fmt.Fprintln(out, "Suggestions:")
				fmt.Fprintln(out, renderTable(out,
					[]string{"#", "Title", "Author", "Match"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
				))
			}
			printResults(out, result.SearchResults)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().Lookup("in").Hidden = true
	return cmd
}
