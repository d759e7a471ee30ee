package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bookscout/internal/book"
)

type searchFlags struct {
	author          string
	maxResults      int
	startIndex      int
	searchIn        string
	language        string
	publishedAfter  int
	publishedBefore int
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.author, "author", "a", "", "Restrict results to an author")
	cmd.Flags().IntVarP(&f.maxResults, "max", "n", book.DefaultMaxResults, "Maximum results to return")
	cmd.Flags().IntVar(&f.startIndex, "start", 0, "Zero-based offset into the result set")
	cmd.Flags().StringVar(&f.searchIn, "in", string(book.ScopeAll), "Fields to match: all, title or author")
	cmd.Flags().StringVarP(&f.language, "language", "l", "", "Language code such as en or fr")
	cmd.Flags().IntVar(&f.publishedAfter, "after", 0, "Only books first published in or after this year")
	cmd.Flags().IntVar(&f.publishedBefore, "before", 0, "Only books first published in or before this year")
}

func (f *searchFlags) params(query string) book.SearchParams {
	return book.SearchParams{
		Query:           query,
		AuthorQuery:     f.author,
		MaxResults:      f.maxResults,
		StartIndex:      f.startIndex,
		SearchIn:        book.ParseScope(f.searchIn),
		Language:        f.language,
		PublishedAfter:  f.publishedAfter,
		PublishedBefore: f.publishedBefore,
	}
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var flags searchFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search both catalogs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := commandCtx(cmd)
			a, err := ctx.ensureApp(runCtx)
			if err != nil {
				return err
			}
			results, err := a.search.SearchBooks(runCtx, flags.params(strings.Join(args, " ")))
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, results)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for one book",
		Long:  "Show details for one book. The id is either prefixed (google-..., openlibrary-...) or paired with --source.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src book.Source
			if strings.TrimSpace(source) != "" {
				parsed, ok := book.ParseSource(source)
				if !ok {
					return fmt.Errorf("unknown source %q (use google or openlibrary)", source)
				}
				src = parsed
			}
			runCtx := commandCtx(cmd)
			a, err := ctx.ensureApp(runCtx)
			if err != nil {
				return err
			}
			record, err := a.search.GetBookDetails(runCtx, args[0], src)
			if err != nil {
				return err
			}
			if record == nil {
				return fmt.Errorf("book %s not found", args[0])
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, record)
			}
			printBook(cmd.OutOrStdout(), *record)
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "Catalog the id belongs to: google or openlibrary")
	return cmd
}

func printResults(out io.Writer, results book.SearchResults) {
	if len(results.Books) == 0 {
		fmt.Fprintf(out, "No books found for %q\n", results.Query)
		return
	}
	rows := make([][]string, 0, len(results.Books))
	for i, b := range results.Books {
		year := ""
		if y := b.PublishedYear(); y > 0 {
			year = strconv.Itoa(y)
		}
		rows = append(rows, []string{
			strconv.Itoa(results.StartIndex + i + 1),
			b.Title,
			strings.Join(b.Authors, ", "),
			year,
			b.ID,
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"#", "Title", "Authors", "Year", "ID"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))
	first := results.StartIndex + 1
	last := results.StartIndex + len(results.Books)
	more := ""
	if results.HasMore {
		more = fmt.Sprintf(" (next page: --start %d)", last)
	}
	fmt.Fprintf(out, "Showing %d-%d of about %d from %s%s\n", first, last, results.TotalItems, results.Source, more)
}

func printBook(out io.Writer, b book.Book) {
	line := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(out, "%-12s %s\n", label+":", value)
		}
	}
	line("Title", b.Title)
	line("Subtitle", b.Subtitle)
	line("Authors", strings.Join(b.Authors, ", "))
	line("Published", b.PublishedDate)
	line("Publisher", b.Publisher)
	if b.PageCount > 0 {
		line("Pages", strconv.Itoa(b.PageCount))
	}
	line("Language", b.Language)
	line("ISBN-13", b.ISBN13)
	line("ISBN-10", b.ISBN10)
	line("Categories", strings.Join(b.Categories, ", "))
	if b.RatingsCount > 0 {
		line("Rating", fmt.Sprintf("%.1f (%d ratings)", b.AverageRating, b.RatingsCount))
	}
	line("Cover", b.Covers.Best())
	line("Link", b.InfoLink)
	line("ID", b.ID)
	if b.Description != "" {
		fmt.Fprintf(out, "\n%s\n", b.Description)
	}
}
