package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/meghashyamc/churnsearch/api"
	"github.com/meghashyamc/churnsearch/client"
	"github.com/meghashyamc/churnsearch/config"
	"github.com/meghashyamc/churnsearch/domain"
	"github.com/meghashyamc/churnsearch/logger"
	"github.com/meghashyamc/churnsearch/services/grid"
	"github.com/meghashyamc/churnsearch/services/ingest"
	"github.com/meghashyamc/churnsearch/services/notify"
	"github.com/meghashyamc/churnsearch/services/search"
	"github.com/meghashyamc/churnsearch/services/session"
	"github.com/meghashyamc/churnsearch/ui"
	"github.com/spf13/cobra"
)

const (
	ingestPollInterval = 200 * time.Millisecond
	ingestTimeout      = 5 * time.Minute
)

func serveCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the search API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return api.Run(cmd.Context(), cfg)
		},
	}
}

func seedCmd(cfg *config.Config) *cobra.Command {
	var (
		index   string
		file    string
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Index churn records from a YAML, JSON or NDJSON file or directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewWithLevel(cfg.GetLogLevel())
			c := client.New(log, serverURL(cmd, cfg))

			records, err := ingest.LoadRecordsFrom(file)
			if err != nil {
				return fmt.Errorf("could not load records from %s: %w", file, err)
			}
			if len(records) == 0 {
				return fmt.Errorf("no records found in %s", file)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), ingestTimeout)
			defer cancel()

			id, err := c.Ingest(ctx, index, records, replace)
			if err != nil {
				return err
			}
			if err := waitForIngest(ctx, c, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d records into %s\n", len(records), index)
			return nil
		},
	}

	cmd.Flags().StringVarP(&index, "index", "i", cfg.GetDefaultIndexPattern(), "index to write to")
	cmd.Flags().StringVarP(&file, "file", "f", "", "record file or directory")
	cmd.Flags().BoolVar(&replace, "replace", false, "delete documents missing from the file")
	cmd.MarkFlagRequired("file")

	return cmd
}

func waitForIngest(ctx context.Context, c *client.Client, id string) error {
	ticker := time.NewTicker(ingestPollInterval)
	defer ticker.Stop()
	for {
		progress, err := c.IngestStatus(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case progress >= 100:
			return nil
		case progress < 0:
			return fmt.Errorf("ingest request %s failed", id)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("ingest request %s did not finish: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

func searchCmd(cfg *config.Config) *cobra.Command {
	var (
		strategyName string
		pageIndex    int
		pageSize     int
		sort         string
		columnList   string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one query and print a page of the results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sortColumns, err := parseSort(sort)
			if err != nil {
				return err
			}
			columns, err := parseColumns(columnList)
			if err != nil {
				return err
			}

			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			log := logger.NewWithLevel(cfg.GetLogLevel())
			c := client.New(log, serverURL(cmd, cfg))
			toasts := notify.NewRecorder()
			toasts.Listen(func(toast notify.Toast) {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s: %s\n", toast.Kind, toast.Title, toast.Text)
			})

			s := newSession(log, c, toasts, session.NewQueryState(session.Query{QueryString: query}), cfg, strategyName)
			defer s.Close()

			sub, err := s.SubmitCurrent(cmd.Context())
			if err != nil {
				return err
			}
			<-sub.Done()
			<-sub.SideDone()

			if _, ok := sub.Outcome().(search.Succeeded); !ok {
				return errors.New("search did not complete")
			}
			results := s.Results()
			page := grid.Paginate(grid.SortRows(results.Documents, sortColumns), grid.PageOptions{
				PageIndex: pageIndex,
				PageSize:  pageSize,
			})
			fmt.Fprintln(cmd.OutOrStdout(), renderPage(page, columns))
			fmt.Fprintf(cmd.OutOrStdout(), "page %d, %d of %d rows\n", pageIndex+1, len(page.Items), page.TotalItemCount)
			return nil
		},
	}

	cmd.Flags().StringVarP(&strategyName, "strategy", "s", "", "search strategy (default: es)")
	cmd.Flags().IntVar(&pageIndex, "page", 0, "zero based page index")
	cmd.Flags().IntVar(&pageSize, "page-size", cfg.GetGridPageSize(), "rows per page")
	cmd.Flags().StringVar(&sort, "sort", "", "comma separated sort columns with optional directions, e.g. churn,call_charges:desc")
	cmd.Flags().StringVar(&columnList, "columns", "", "comma separated columns to print (default: all)")

	return cmd
}

// parseSort reads "column[:direction]" entries, earlier entries sorting first.
// The grid reducer decides which sorts are valid.
func parseSort(value string) ([]grid.SortColumn, error) {
	if value == "" {
		return nil, nil
	}
	var sort []grid.SortColumn
	for _, entry := range strings.Split(value, ",") {
		name, direction, _ := strings.Cut(entry, ":")
		column, ok := domain.ParseColumn(name)
		if !ok {
			return nil, fmt.Errorf("unknown sort column %q", name)
		}
		d := grid.Direction(strings.ToLower(strings.TrimSpace(direction)))
		if d == "" {
			d = grid.Ascending
		}
		sort = append(sort, grid.SortColumn{Column: column, Direction: d})
	}

	state, err := grid.Reduce(grid.NewState(grid.DefaultPageSize), grid.SetSort{Columns: sort})
	if err != nil {
		return nil, fmt.Errorf("invalid sort %q: %w", value, err)
	}
	return state.SortColumns, nil
}

// parseColumns reads the comma separated columns to print, in the given order.
func parseColumns(value string) ([]domain.Column, error) {
	if value == "" {
		return domain.Columns, nil
	}
	var columns []domain.Column
	for _, name := range strings.Split(value, ",") {
		column, ok := domain.ParseColumn(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		columns = append(columns, column)
	}

	state, err := grid.Reduce(grid.NewState(grid.DefaultPageSize), grid.SetVisibleColumns{Columns: columns})
	if err != nil {
		return nil, fmt.Errorf("invalid columns %q: %w", value, err)
	}
	return state.VisibleColumns, nil
}

func renderPage(page grid.Page, columns []domain.Column) string {
	headers := make([]string, 0, len(columns))
	for _, column := range columns {
		headers = append(headers, string(column))
	}
	rows := make([][]string, 0, len(page.Items))
	for _, document := range page.Items {
		cells := make([]string, 0, len(columns))
		for _, column := range columns {
			cells = append(cells, document.Cell(column))
		}
		rows = append(rows, cells)
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		Render()
}

func browseCmd(cfg *config.Config) *cobra.Command {
	var strategyName string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse search results in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// the program owns the terminal, so only errors go to stderr
			log := logger.NewWithLevel("error")
			c := client.New(log, serverURL(cmd, cfg))
			toasts := notify.NewRecorder()
			queryState := session.NewQueryState(session.Query{})

			s := newSession(log, c, toasts, queryState, cfg, strategyName)
			defer s.Close()

			model := ui.NewModel(ui.Dependencies{
				Session:    s,
				QueryState: queryState,
				Controller: grid.NewController(log, grid.NewState(cfg.GetGridPageSize())),
				Toasts:     toasts,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&strategyName, "strategy", "s", "", "search strategy (default: es)")
	return cmd
}

func newSession(log logger.Logger, c *client.Client, toasts notify.Notifier, queryState *session.QueryState, cfg *config.Config, strategyName string) *session.Session {
	s := session.New(session.Dependencies{
		Logger:      log,
		Strategies:  c,
		Notifier:    notify.Multi{toasts, notify.NewLogNotifier(log)},
		Indices:     c,
		SideChannel: c,
		QueryState:  queryState,
	}, session.Options{
		Strategy:  strategyName,
		Size:      cfg.GetSearchResultSize(),
		TimeField: cfg.GetSearchTimeField(),
	})
	s.Start()
	return s
}

func serverURL(cmd *cobra.Command, cfg *config.Config) string {
	if url, _ := cmd.Flags().GetString("server"); url != "" {
		return url
	}
	return cfg.GetServerURL()
}
