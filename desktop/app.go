package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"agent-desk/internal/app"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// App is the wails binding surface. All session state lives in the
// dispatcher; the frontend snapshots it through the bound getters and
// re-renders on "session:changed" events.
type App struct {
	ctx     context.Context
	mu      sync.Mutex
	ready   bool
	readyAt time.Time

	cfg        app.Config
	logger     *app.Logger
	store      app.SessionStore
	client     *app.StreamClient
	dispatcher *app.Dispatcher

	sessionID    string
	streamCancel context.CancelFunc
	loopCancel   context.CancelFunc
}

type DesktopStatus struct {
	Ready            bool      `json:"ready"`
	ReadyAt          time.Time `json:"ready_at"`
	APIKeyConfigured bool      `json:"api_key_configured"`
	Model            string    `json:"model"`
	BaseURL          string    `json:"base_url"`
	SessionID        string    `json:"session_id"`
	Permissions      string    `json:"permissions"`
}

type DesktopSessionCard struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	WorkDir      string    `json:"work_dir"`
	LastActivity time.Time `json:"last_activity"`
}

type DesktopStreamSnapshot struct {
	Live       bool                   `json:"live"`
	State      app.SessionStreamState `json:"state"`
	Activities []app.ActivityNode     `json:"activities"`
}

func NewApp() *App {
	return &App{readyAt: time.Now()}
}

func (a *App) startup(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	if err := a.ensureCore(); err != nil {
		runtime.EventsEmit(ctx, "desktop:status", map[string]interface{}{
			"ready": false,
			"error": err.Error(),
		})
		return
	}
	a.emitStatus()
	a.emitSessions()
}

func (a *App) shutdown(ctx context.Context) {
	a.mu.Lock()
	cancel := a.loopCancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (a *App) ensureCore() error {
	a.mu.Lock()
	if a.ready {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	cfg, err := app.LoadConfig(app.DefaultConfigPath())
	if err != nil {
		return err
	}

	logger := app.NewFileLogger(desktopLogPath())
	store := app.OpenStore(cfg, logger)
	client := app.NewStreamClient(logger)

	dispatcher := app.NewDispatcher(app.DispatcherOptions{
		Store:         store,
		Stopper:       &app.HTTPTaskStopper{Client: client, Config: cfg},
		Notifier:      app.CommandNotifier{},
		Logger:        logger,
		Notifications: cfg.Notifications,
		OnChange: func(sessionID string) {
			a.mu.Lock()
			ctx := a.ctx
			a.mu.Unlock()
			if ctx != nil {
				runtime.EventsEmit(ctx, "session:changed", sessionID)
			}
		},
	})

	loopCtx, cancel := context.WithCancel(context.Background())
	go dispatcher.Run(loopCtx)

	wd, _ := os.Getwd()
	sess, err := store.CreateSession(wd)
	if err != nil {
		cancel()
		return err
	}

	a.mu.Lock()
	a.cfg = cfg
	a.logger = logger
	a.store = store
	a.client = client
	a.dispatcher = dispatcher
	a.sessionID = sess.ID
	a.loopCancel = cancel
	a.ready = true
	a.readyAt = time.Now()
	a.mu.Unlock()
	return nil
}

func desktopLogPath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "agent-desk", "desktop.log")
}

func (a *App) emitStatus() {
	a.mu.Lock()
	ctx := a.ctx
	st := a.buildStatus()
	a.mu.Unlock()
	if ctx != nil {
		runtime.EventsEmit(ctx, "desktop:status", st)
	}
}

func (a *App) buildStatus() DesktopStatus {
	return DesktopStatus{
		Ready:            a.ready,
		ReadyAt:          a.readyAt,
		APIKeyConfigured: strings.TrimSpace(a.cfg.APIKey) != "",
		Model:            a.cfg.Model,
		BaseURL:          a.cfg.BaseURL,
		SessionID:        a.sessionID,
		Permissions:      a.cfg.Permissions,
	}
}

func (a *App) emitSessions() {
	a.mu.Lock()
	ctx := a.ctx
	a.mu.Unlock()
	if ctx == nil {
		return
	}
	cards, err := a.ListSessions()
	if err != nil {
		return
	}
	runtime.EventsEmit(ctx, "desktop:sessions", cards)
}

func (a *App) GetStatus() DesktopStatus {
	_ = a.ensureCore()
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buildStatus()
}

func (a *App) ListSessions() ([]DesktopSessionCard, error) {
	if err := a.ensureCore(); err != nil {
		return nil, err
	}
	sessions, err := a.store.ListSessions()
	if err != nil {
		return nil, err
	}
	cards := make([]DesktopSessionCard, 0, len(sessions))
	for _, s := range sessions {
		cards = append(cards, DesktopSessionCard{
			ID:           s.ID,
			Title:        s.Title,
			WorkDir:      s.WorkDir,
			LastActivity: s.UpdatedAt,
		})
	}
	return cards, nil
}

func (a *App) NewSession() (string, error) {
	if err := a.ensureCore(); err != nil {
		return "", err
	}
	wd, _ := os.Getwd()
	sess, err := a.store.CreateSession(wd)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	a.sessionID = sess.ID
	a.mu.Unlock()
	a.emitStatus()
	a.emitSessions()
	return sess.ID, nil
}

func (a *App) SwitchSession(sessionID string) ([]app.StoredMessage, error) {
	if err := a.ensureCore(); err != nil {
		return nil, err
	}
	msgs, err := a.store.LoadMessages(sessionID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.sessionID = sessionID
	a.mu.Unlock()
	a.dispatcher.SetMessages(sessionID, msgs)
	a.emitStatus()
	return msgs, nil
}

func (a *App) GetChatHistory() ([]app.StoredMessage, error) {
	if err := a.ensureCore(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	sid := a.sessionID
	a.mu.Unlock()
	return a.dispatcher.Messages(sid), nil
}

// SendPrompt persists the user message and starts one streaming turn.
// Returns immediately; progress arrives through session:changed events.
func (a *App) SendPrompt(prompt string) (string, error) {
	if err := a.ensureCore(); err != nil {
		return "", err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("empty prompt")
	}

	a.mu.Lock()
	sid := a.sessionID
	if st, live := a.dispatcher.State(sid); live && st.Running {
		a.mu.Unlock()
		return "", fmt.Errorf("a stream is already running")
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	a.streamCancel = cancel
	a.mu.Unlock()

	userMsg := app.StoredMessage{
		ID:        uuid.NewString(),
		SessionID: sid,
		Role:      "user",
		Content:   prompt,
		CreatedAt: time.Now(),
	}
	if err := a.store.AppendMessage(userMsg); err != nil {
		a.logger.Warn("failed to persist user message", map[string]any{"error": err.Error()})
	}
	a.dispatcher.SetMessages(sid, append(a.dispatcher.Messages(sid), userMsg))

	go func() {
		if err := app.RunSessionStream(streamCtx, a.client, a.cfg, a.dispatcher, sid, prompt); err != nil {
			a.logger.Error("stream ended with error", map[string]any{
				"session": sid,
				"error":   err.Error(),
			})
		}
	}()
	go a.maybeGenerateTitle(sid, prompt)

	return sid, nil
}

func (a *App) maybeGenerateTitle(sessionID, firstMessage string) {
	sessions, err := a.store.ListSessions()
	if err != nil {
		return
	}
	for _, s := range sessions {
		if s.ID == sessionID && s.Title != "" {
			return
		}
	}
	title := app.GenerateSessionTitle(context.Background(), a.client, a.cfg, firstMessage)
	if title == "" {
		return
	}
	if err := a.store.SetSessionTitle(sessionID, title); err == nil {
		a.emitSessions()
	}
}

func (a *App) CancelStream() bool {
	a.mu.Lock()
	cancel := a.streamCancel
	a.streamCancel = nil
	a.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

func (a *App) GetStreamSnapshot() DesktopStreamSnapshot {
	a.mu.Lock()
	sid := a.sessionID
	a.mu.Unlock()
	st, live := a.dispatcher.State(sid)
	return DesktopStreamSnapshot{
		Live:       live,
		State:      st,
		Activities: a.dispatcher.GroupedActivities(sid),
	}
}

func (a *App) GetBackgroundTasks() []app.BackgroundTask {
	a.mu.Lock()
	sid := a.sessionID
	a.mu.Unlock()
	return a.dispatcher.BackgroundTasks(context.Background(), sid)
}

func (a *App) StopBackgroundTask(id, taskType string) string {
	a.mu.Lock()
	sid := a.sessionID
	a.mu.Unlock()
	if err := a.dispatcher.StopTask(context.Background(), sid, id, app.TaskType(taskType)); err != nil {
		return err.Error()
	}
	return ""
}

func (a *App) GetPermissionQueue() []app.PermissionRequest {
	a.mu.Lock()
	sid := a.sessionID
	a.mu.Unlock()
	return a.dispatcher.PermissionQueue(sid)
}

func (a *App) ResolvePermission(requestID string) {
	a.mu.Lock()
	sid := a.sessionID
	a.mu.Unlock()
	a.dispatcher.ResolvePermission(sid, requestID)
}

func (a *App) GetAskQueue() []app.AskUserRequest {
	a.mu.Lock()
	sid := a.sessionID
	a.mu.Unlock()
	return a.dispatcher.AskQueue(sid)
}

func (a *App) ResolveAsk(requestID string) {
	a.mu.Lock()
	sid := a.sessionID
	a.mu.Unlock()
	a.dispatcher.ResolveAsk(sid, requestID)
}

func (a *App) GetPromptSuggestions() []string {
	a.mu.Lock()
	sid := a.sessionID
	a.mu.Unlock()
	return a.dispatcher.PromptSuggestions(sid)
}

// ClassifyToolCall exposes the admission verdict so the frontend can badge
// dangerous calls before the user confirms them.
func (a *App) ClassifyToolCall(toolName string, input map[string]any) string {
	return app.ClassifyTool(toolName, input).String()
}

func (a *App) SetApiKey(apiKey string) string {
	if err := a.ensureCore(); err != nil {
		return err.Error()
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "api key is empty"
	}
	a.mu.Lock()
	a.cfg.APIKey = apiKey
	cfg := a.cfg
	a.mu.Unlock()
	if err := app.SaveConfig(cfg, app.DefaultConfigPath()); err != nil {
		return err.Error()
	}
	a.emitStatus()
	return ""
}

func (a *App) SetModel(model string) string {
	if err := a.ensureCore(); err != nil {
		return err.Error()
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return "model is empty"
	}
	a.mu.Lock()
	a.cfg.Model = model
	cfg := a.cfg
	a.mu.Unlock()
	if err := app.SaveConfig(cfg, app.DefaultConfigPath()); err != nil {
		return err.Error()
	}
	a.emitStatus()
	return ""
}

func (a *App) SetPermissions(mode string) string {
	if err := a.ensureCore(); err != nil {
		return err.Error()
	}
	parsed, ok := app.ParsePermissionsMode(mode)
	if !ok {
		return fmt.Sprintf("unknown permissions mode %q", mode)
	}
	a.mu.Lock()
	a.cfg.Permissions = parsed
	cfg := a.cfg
	a.mu.Unlock()
	if err := app.SaveConfig(cfg, app.DefaultConfigPath()); err != nil {
		return err.Error()
	}
	a.emitStatus()
	return ""
}
