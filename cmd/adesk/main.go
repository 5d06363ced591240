package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agent-desk/internal/app"
	"agent-desk/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

func main() {
	root := &cobra.Command{
		Use:     "adesk",
		Short:   "adesk - desktop agent chat client",
		Long:    "adesk streams agent sessions in the terminal: live tool activity, background tasks, and persisted chat history.\n\nRun without arguments to open the chat. Use 'sessions' to browse history.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(app.DefaultConfigPath())
			if err != nil {
				return err
			}
			if cfg.APIKey == "" {
				return fmt.Errorf("no API key configured. Set ADESK_API_KEY or api_key in %s", app.DefaultConfigPath())
			}

			logger := app.NewFileLogger(defaultLogPath())
			store := app.OpenStore(cfg, logger)
			client := app.NewStreamClient(logger)

			sessionFlag, _ := cmd.Flags().GetString("session")
			session, err := resolveSession(store, sessionFlag)
			if err != nil {
				return err
			}

			changeCh := make(chan string, 64)
			dispatcher := app.NewDispatcher(app.DispatcherOptions{
				Store:         store,
				Stopper:       &app.HTTPTaskStopper{Client: client, Config: cfg},
				Notifier:      app.CommandNotifier{},
				Logger:        logger,
				Notifications: cfg.Notifications,
				OnChange: func(sessionID string) {
					select {
					case changeCh <- sessionID:
					default:
						// UI is behind; it re-snapshots on the next wakeup anyway.
					}
				},
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go dispatcher.Run(ctx)

			model := tui.NewMainModel(tui.ModelDeps{
				Dispatcher: dispatcher,
				Client:     client,
				Store:      store,
				Config:     cfg,
				Logger:     logger,
				Session:    *session,
				ChangeCh:   changeCh,
			})
			p := tea.NewProgram(model, tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	root.Flags().StringP("session", "s", "", "Resume an existing session by id")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(app.DefaultConfigPath())
			if err != nil {
				return err
			}
			logger := app.NewFileLogger(defaultLogPath())
			store := app.OpenStore(cfg, logger)

			sessions, err := store.ListSessions()
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("no sessions yet")
				return nil
			}
			for _, s := range sessions {
				title := s.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Printf("%s  %s  %s\n", s.ID, s.UpdatedAt.Format("2006-01-02 15:04"), title)
			}
			return nil
		},
	}
	root.AddCommand(sessionsCmd)

	classifyCmd := &cobra.Command{
		Use:   "classify [tool] [input-json]",
		Short: "Show the admission decision for a tool call",
		Long:  "Classify a tool invocation the way the chat client would: auto-allow, needs-decision, or dangerous.\n\nExamples:\n  - adesk classify Read '{\"file_path\":\"main.go\"}'\n  - adesk classify Bash '{\"command\":\"rm -rf build\"}'",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &input); err != nil {
					return fmt.Errorf("input is not valid JSON: %w", err)
				}
			}
			fmt.Println(app.ClassifyTool(args[0], input).String())
			return nil
		},
	}
	root.AddCommand(classifyCmd)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(app.DefaultConfigPath())
			if err != nil {
				return err
			}
			key := cfg.APIKey
			if len(key) > 8 {
				key = key[:4] + "..." + key[len(key)-4:]
			}
			fmt.Printf("config:  %s\n", app.DefaultConfigPath())
			fmt.Printf("api_key: %s\n", key)
			fmt.Printf("url:     %s\n", cfg.BaseURL)
			fmt.Printf("model:   %s\n", cfg.Model)
			fmt.Printf("store:   %s\n", cfg.StoreBackend)
			fmt.Printf("perms:   %s\n", cfg.Permissions)
			return nil
		},
	}
	root.AddCommand(configCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveSession(store app.SessionStore, id string) (*app.Session, error) {
	if id == "" {
		wd, _ := os.Getwd()
		return store.CreateSession(wd)
	}
	sessions, err := store.ListSessions()
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ID == id || strings.HasPrefix(sessions[i].ID, id) {
			return &sessions[i], nil
		}
	}
	return nil, fmt.Errorf("session %q not found", id)
}

func defaultLogPath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "agent-desk", "adesk.log")
}
