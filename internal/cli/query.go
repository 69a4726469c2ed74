package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/DRSN-tech/style-recommender/internal/domain"
	"github.com/DRSN-tech/style-recommender/internal/usecase"
	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/spf13/cobra"
)

func newRecommendCommand(factory ServicesFactory) *cobra.Command {
	var (
		liked    []string
		disliked []string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend images from liked and disliked image ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if both := domain.Overlap(liked, disliked); len(both) > 0 {
				return fmt.Errorf("%w: %s", e.ErrPreferenceOverlap, strings.Join(both, ", "))
			}

			prefs := domain.NewPreferenceSet()
			for _, id := range liked {
				prefs.Like(id)
			}
			for _, id := range disliked {
				prefs.Dislike(id)
			}

			return withServices(cmd, factory, func(svc *Services) error {
				hits, err := svc.Recommend.Recommend(cmd.Context(), usecase.NewRecommendReq(prefs.LikedIDs(), prefs.DislikedIDs(), limit))
				if err != nil {
					return err
				}
				return printScored(cmd.OutOrStdout(), hits)
			})
		},
	}

	cmd.Flags().StringSliceVar(&liked, "like", nil, "liked image id (repeatable)")
	cmd.Flags().StringSliceVar(&disliked, "dislike", nil, "disliked image id (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of images to return")

	return cmd
}

func newSearchCommand(factory ServicesFactory) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <image>",
		Short: "Find images similar to a query image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, factory, func(svc *Services) error {
				hits, err := svc.Recommend.SearchSimilar(cmd.Context(), usecase.NewSearchReq(args[0], limit))
				if err != nil {
					return err
				}
				return printScored(cmd.OutOrStdout(), hits)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of images to return")

	return cmd
}

func newCatalogCommand(factory ServicesFactory) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Refresh and print the catalog snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, factory, func(svc *Services) error {
				snap := svc.Catalog.Refresh(cmd.Context())
				return printCatalog(cmd.OutOrStdout(), snap, limit)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of images to print, 0 prints none")

	return cmd
}

func printScored(w io.Writer, hits []domain.ScoredImage) error {
	if len(hits) == 0 {
		_, err := fmt.Fprintln(w, "No images found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tID\tPATH")
	for _, h := range hits {
		fmt.Fprintf(tw, "%.4f\t%s\t%s\n", h.Score, h.ID, h.ImagePath)
	}
	return tw.Flush()
}

func printCatalog(w io.Writer, snap domain.CatalogSnapshot, limit int) error {
	fmt.Fprintf(w, "Catalog: %d images (%s)\n", snap.Count, snap.Status)
	if snap.Degraded() && snap.Cause != nil {
		fmt.Fprintf(w, "Cause: %v\n", snap.Cause)
	}

	head := snap.Head(limit)
	if len(head) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH")
	for _, rec := range head {
		fmt.Fprintf(tw, "%s\t%s\n", rec.ID, rec.ImagePath)
	}
	return tw.Flush()
}
