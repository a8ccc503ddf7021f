package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/feed"
)

var (
	feedTopN       int
	feedAffinity   []string
	feedCandidates string
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Build a recommendation feed",
	Long: `Build a recommendation feed. Affinities are genre=weight pairs in [0,1].
Candidates are read from a JSON file of posts; without one the service uses
its newest posts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := parseAffinities(feedAffinity)
		if err != nil {
			return err
		}
		req := feed.Request{Profile: profile, TopN: feedTopN}
		if feedCandidates != "" {
			raw, err := os.ReadFile(feedCandidates)
			if err != nil {
				return fmt.Errorf("reading candidates: %w", err)
			}
			var posts []content.Post
			if err := json.Unmarshal(raw, &posts); err != nil {
				return fmt.Errorf("parsing candidates: %w", err)
			}
			req.Candidates = posts
		}

		var resp feed.Response
		if err := newClient().do("POST", "/api/v1/feed", req, &resp); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tID\tGENRE\tTITLE")
		for _, item := range resp.Items {
			fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", item.Score, item.Post.ID, item.Post.Genre, item.Post.Title)
		}
		return w.Flush()
	},
}

func parseAffinities(pairs []string) (feed.ViewerProfile, error) {
	p := feed.ViewerProfile{GenreAffinity: make(map[string]float64, len(pairs))}
	for _, pair := range pairs {
		genre, weight, ok := strings.Cut(pair, "=")
		if !ok || genre == "" {
			return p, fmt.Errorf("affinity %q must be genre=weight", pair)
		}
		var v float64
		if _, err := fmt.Sscanf(weight, "%g", &v); err != nil || v < 0 || v > 1 {
			return p, fmt.Errorf("affinity weight %q must be a number in [0,1]", weight)
		}
		p.GenreAffinity[strings.ToLower(genre)] = v
	}
	return p, nil
}

func init() {
	feedCmd.Flags().IntVarP(&feedTopN, "top", "n", 0, "Feed size (service default when 0)")
	feedCmd.Flags().StringSliceVarP(&feedAffinity, "affinity", "a", nil, "Genre affinity, e.g. tech=0.8")
	feedCmd.Flags().StringVar(&feedCandidates, "candidates", "", "JSON file with candidate posts")
	rootCmd.AddCommand(feedCmd)
}
