package cmd

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/cv-coach/internal/filtering"
	"github.com/spigell/cv-coach/internal/session"
)

const sourceLookups = 4

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your interviews with progress and score",
	Run: func(cmd *cobra.Command, _ []string) {
		list(cmd)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("output", "o", outputText, "output format: text, json or yaml")
	listCmd.Flags().String("status", filtering.StatusAll, "show only interviews in this state: all, completed or in-progress")
	listCmd.Flags().StringSlice("cv", nil, "show only interviews started from these CV ids")
}

func list(cmd *cobra.Command) {
	ctx := context.Background()
	log, config := setup()

	format, _ := cmd.Flags().GetString("output")
	if err := checkOutput(format); err != nil {
		log.Fatal("parsing flags", zap.Error(err))
	}

	steps, err := listFilters(cmd)
	if err != nil {
		log.Fatal("parsing flags", zap.Error(err))
	}
	log.Debug("list filters", zap.Any("filters", filtering.Describe(steps)))

	client := newClient(config, log)

	sessions, err := client.List(ctx)
	if err != nil {
		log.Fatal("listing interviews", zap.Error(err), fatalHint(err))
	}

	sessions, err = filtering.Run(ctx, log, steps, sessions)
	if err != nil {
		log.Fatal("filtering interviews", zap.Error(err))
	}

	sources, err := lookupSources(ctx, client, sessions, log)
	if err != nil {
		log.Fatal("getting cv details", zap.Error(err), fatalHint(err))
	}

	if err := renderList(os.Stdout, format, newListRows(sessions, sources)); err != nil {
		log.Fatal("rendering list", zap.Error(err))
	}
}

func listFilters(cmd *cobra.Command) ([]filtering.Filter, error) {
	raw, _ := cmd.Flags().GetString("status")
	status, err := filtering.NewStatus(raw)
	if err != nil {
		return nil, err
	}

	cvs, _ := cmd.Flags().GetStringSlice("cv")

	return []filtering.Filter{status, filtering.NewSources(cvs)}, nil
}

type sourceGetter interface {
	Source(ctx context.Context, id string) (*session.Source, error)
}

// lookupSources fetches the CV behind every listed interview. A missing CV only
// costs its file name; a rejected credential aborts the lookup.
func lookupSources(ctx context.Context, client sourceGetter, sessions []*session.Session, log *zap.Logger) (map[string]*session.Source, error) {
	var (
		mu      sync.Mutex
		sources = make(map[string]*session.Source)
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sourceLookups)

	seen := make(map[string]bool)
	for _, s := range sessions {
		id := s.SourceID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		g.Go(func() error {
			src, err := client.Source(ctx, id)
			if err != nil {
				if errors.Is(err, session.ErrUnauthorized) {
					return err
				}
				log.Warn("cv details unavailable", zap.String("source_id", id), zap.Error(err))
				return nil
			}

			mu.Lock()
			sources[id] = src
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return sources, nil
}
