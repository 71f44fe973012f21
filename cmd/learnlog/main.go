package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pbaille/learnlog/internal/cache"
	"github.com/pbaille/learnlog/internal/client"
	"github.com/pbaille/learnlog/internal/completion"
	"github.com/pbaille/learnlog/internal/config"
	"github.com/pbaille/learnlog/internal/session"
	"github.com/pbaille/learnlog/internal/views"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	apiURL     string
	dbPath     string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "learnlog",
		Short:         "Track learning resources and the time spent on them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path for serve (overrides config)")

	rootCmd.AddCommand(signupCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(completeCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(1)
	}
}

// describe turns API errors into the message the server sent
func describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == 401 {
			return apiErr.Message + " (run 'learnlog login')"
		}
		return apiErr.Message
	}
	return err.Error()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIURL = strings.TrimRight(apiURL, "/")
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// app is the wiring shared by the client commands
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	session *session.Session
	api     *client.Client
	cache   *cache.Cache
	views   *views.Views
}

func newApp(requireLogin bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	sess, err := session.Load(cfg.SessionPath)
	if err != nil {
		return nil, err
	}
	if requireLogin && !sess.LoggedIn() {
		return nil, errors.New("not logged in (run 'learnlog login' or 'learnlog signup')")
	}

	api, err := client.New(cfg.APIURL, client.WithTokenSource(sess), client.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	api.OnUnauthorized = func() {
		if err := sess.Clear(); err != nil {
			logger.Warn("clear session", zap.Error(err))
		}
	}

	c := cache.New(logger)
	v, err := views.New(views.Deps{
		API:         api,
		Cache:       c,
		Coordinator: completion.New(logger),
		Notifier:    views.NewTerminalNotifier(os.Stdout, logger),
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, session: sess, api: api, cache: c, views: v}, nil
}

func (a *app) close() {
	a.logger.Sync()
}

// resolveID expands an id prefix against the resource list
func (a *app) resolveID(ctx context.Context, prefix string) (string, error) {
	resources, err := cache.Query(ctx, a.cache, cache.KeyResources, a.api.ListResources)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, r := range resources {
		if r.ID == prefix {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, prefix) {
			matches = append(matches, r.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("resource not found: %s", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous id %s matches %d resources", prefix, len(matches))
	}
}
