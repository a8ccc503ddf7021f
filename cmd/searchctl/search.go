package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
)

var (
	searchFilter string
	searchLimit  int
	searchJSON   bool
)

type searchResponse struct {
	Query     string          `json:"query"`
	Filter    string          `json:"filter"`
	Limit     int             `json:"limit"`
	Results   []result.Result `json:"results"`
	CacheHit  bool            `json:"cache_hit"`
	Degraded  bool            `json:"degraded"`
	LatencyMs int64           `json:"latency_ms"`
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Run one search",
	Long:  `Search posts, authors and tags. Prefix the term with # for a tag search.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := url.Values{}
		params.Set("q", strings.Join(args, " "))
		params.Set("filter", searchFilter)
		if searchLimit > 0 {
			params.Set("limit", strconv.Itoa(searchLimit))
		}

		var resp searchResponse
		if err := newClient().do("GET", "/api/v1/search?"+params.Encode(), nil, &resp); err != nil {
			return err
		}
		if searchJSON {
			return printJSON(resp)
		}

		fmt.Printf("%d results for %q (filter=%s, cache_hit=%t, %dms)\n",
			len(resp.Results), resp.Query, resp.Filter, resp.CacheHit, resp.LatencyMs)
		if resp.Degraded {
			fmt.Println("warning: some sources failed, results may be incomplete")
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RELEVANCE\tKIND\tID\tLABEL")
		for _, r := range resp.Results {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Relevance, r.Kind, r.ID(), label(r))
		}
		return w.Flush()
	},
}

func label(r result.Result) string {
	switch {
	case r.Post != nil:
		return r.Post.Title
	case r.Author != nil:
		return r.Author.Name + " (@" + r.Author.Username + ")"
	case r.Tag != nil:
		return fmt.Sprintf("#%s (%d posts)", r.Tag.Name, r.Tag.Count)
	default:
		return ""
	}
}

func init() {
	searchCmd.Flags().StringVarP(&searchFilter, "filter", "f", "all",
		"Filter: all, posts, title, content, tags, authors")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum results (service default when 0)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print the raw JSON response")
	rootCmd.AddCommand(searchCmd)
}
