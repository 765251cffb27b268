// Package cli wires the config, store, task service, sync engine, and
// server into a cobra command tree.
package cli

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ash-bergs/localtask/internal/model"
	"github.com/ash-bergs/localtask/internal/server"
	"github.com/ash-bergs/localtask/internal/stats"
	"github.com/ash-bergs/localtask/internal/store"
	"github.com/ash-bergs/localtask/internal/sync"
	"github.com/ash-bergs/localtask/internal/task"
)

// NewRootCmd builds the localtask command tree.
func NewRootCmd(stdout, stderr io.Writer, cfg *model.AppConfig) *cobra.Command {
	root := &cobra.Command{
		Use:           "localtask",
		Short:         "Offline-first task manager with batch sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		newAddCmd(stdout, cfg),
		newListCmd(stdout, cfg),
		newDoneCmd(stdout, cfg),
		newRmCmd(stdout, cfg),
		newSyncCmd(stdout, cfg),
		newTagsCmd(stdout, cfg),
		newStatsCmd(stdout, cfg),
		newServeCmd(cfg),
	)

	return root
}

// openService opens the local store and builds the task service. The
// returned closer releases the store.
func openService(cfg *model.AppConfig) (*task.Service, func(), error) {
	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening local store: %w", err)
	}

	client := sync.NewClient(cfg.Sync.BaseURL, time.Duration(cfg.Sync.TimeoutSec)*time.Second)
	engine := sync.NewEngine(st, client)
	svc := task.New(st, engine, nil)

	return svc, func() { _ = st.Close() }, nil
}

func newAddCmd(stdout io.Writer, cfg *model.AppConfig) *cobra.Command {
	var (
		due      string
		priority int
		tagIDs   []string
		color    string
	)

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := openService(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			opts := task.AddOptions{TagIDs: tagIDs, Color: color}
			if due != "" {
				d, err := time.Parse("2006-01-02", due)
				if err != nil {
					return fmt.Errorf("parsing due date %q: %w", due, err)
				}
				opts.DueDate = &d
			}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}

			t, err := svc.Add(cmd.Context(), cfg.UserID, args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "added %s (position %.1f)\n", t.ID, t.Position)
			return nil
		},
	}

	cmd.Flags().StringVarP(&due, "due", "d", "", "due date (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "priority (lower is more urgent)")
	cmd.Flags().StringSliceVarP(&tagIDs, "tag", "t", nil, "tag ids to attach")
	cmd.Flags().StringVarP(&color, "color", "c", "", "display color")
	return cmd
}

func newListCmd(stdout io.Writer, cfg *model.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := openService(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			tasks, err := svc.All(cmd.Context(), cfg.UserID)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				mark := " "
				if t.Completed {
					mark = "x"
				}
				fmt.Fprintf(stdout, "[%s] %s  %s (%s)", mark, t.ID, t.Text, t.SyncState)
				for _, tag := range t.Tags {
					fmt.Fprintf(stdout, " #%s", tag.Name)
				}
				fmt.Fprintln(stdout)
			}
			return nil
		},
	}
}

func newDoneCmd(stdout io.Writer, cfg *model.AppConfig) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task complete (or open again with --undo)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := openService(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := svc.ToggleComplete(cmd.Context(), args[0], cfg.UserID, !undo); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "updated %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "mark the task open again")
	return cmd
}

func newRmCmd(stdout io.Writer, cfg *model.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := openService(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := svc.DeleteMany(cmd.Context(), args); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "deleted %d task(s)\n", len(args))
			return nil
		},
	}
}

func newSyncCmd(stdout io.Writer, cfg *model.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push pending local changes to the sync server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := openService(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			count, err := svc.Sync(cmd.Context(), cfg.UserID)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "synced %d task(s)\n", count)
			return nil
		},
	}
}

func newTagsCmd(stdout io.Writer, cfg *model.AppConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List local tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening local store: %w", err)
			}
			defer st.Close()

			tags, err := st.GetTags(cmd.Context(), cfg.UserID)
			if err != nil {
				return err
			}

			tree, err := model.NewTagTree(tags)
			if err != nil {
				return err
			}
			for _, id := range tree.Roots() {
				printTagSubtree(stdout, tree, id, 0)
			}
			return nil
		},
	}

	cmd.AddCommand(newTagCreateCmd(stdout, cfg))
	return cmd
}

func printTagSubtree(stdout io.Writer, tree *model.TagTree, id string, depth int) {
	tag, ok := tree.Get(id)
	if !ok {
		return
	}
	for i := 0; i < depth; i++ {
		fmt.Fprint(stdout, "  ")
	}
	fmt.Fprintf(stdout, "%s  %s\n", tag.ID, tag.Name)
	for _, child := range tree.Children(id) {
		printTagSubtree(stdout, tree, child, depth+1)
	}
}

func newTagCreateCmd(stdout io.Writer, cfg *model.AppConfig) *cobra.Command {
	var (
		color  string
		parent string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a local tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening local store: %w", err)
			}
			defer st.Close()

			tag := model.Tag{
				ID:        uuid.New().String(),
				Name:      args[0],
				Color:     color,
				UserID:    cfg.UserID,
				CreatedAt: time.Now().UTC(),
			}
			if parent != "" {
				tag.ParentID = &parent
			}

			if err := st.CreateTag(cmd.Context(), tag); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "created tag %s\n", tag.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&color, "color", "c", "", "display color")
	cmd.Flags().StringVar(&parent, "parent", "", "parent tag id")
	return cmd
}

func newStatsCmd(stdout io.Writer, cfg *model.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := openService(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			tasks, err := svc.All(cmd.Context(), cfg.UserID)
			if err != nil {
				return err
			}

			s := stats.Compute(tasks, time.Now())
			fmt.Fprintf(stdout, "total: %d  open: %d  completed: %d (%.0f%%)\n",
				s.Total, s.Open, s.Completed, s.CompletionRate*100)
			fmt.Fprintf(stdout, "due today: %d  overdue: %d  unsynced: %d\n",
				s.DueToday, s.Overdue, s.Unsynced)
			return nil
		},
	}
}

func newServeCmd(cfg *model.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := server.NewStore(cfg.Server.DBPath)
			if err != nil {
				return fmt.Errorf("opening server store: %w", err)
			}
			defer st.Close()

			srv := &http.Server{
				Addr:    cfg.Server.Addr,
				Handler: server.New(st),
			}

			log.Printf("sync server listening on %s", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("running sync server: %w", err)
			}
			return nil
		},
	}
}
