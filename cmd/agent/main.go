// Command tabsync-agent is the headless client: it keeps a live connection
// to the server, mirrors the saved URL collection locally, and offers
// manual add/delete/list operations.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/Anshumanformal/Tab-SyncAR/internal/agent"
	"github.com/Anshumanformal/Tab-SyncAR/internal/errs"
	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "tabsync")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tabsync")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }
func cachePath() string { return filepath.Join(cfgDir(), "cache.json") }

func saveToken(tok string, exp time.Time) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.Create(tokenPath())
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

func dropToken() { _ = os.Remove(tokenPath()) }

func deviceDescriptor() model.DeviceInfo {
	host, _ := os.Hostname()
	return model.DeviceInfo{
		Name:     fmt.Sprintf("agent on %s", host),
		Browser:  "headless",
		Platform: runtime.GOOS,
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: tabsync-agent [flags] <command>

commands:
  login    --email <email> [--provider p]   obtain and store a token
  run                                        keep the local mirror in sync
  list                                       print the cached URL collection
  add      <url> [title]                     save a URL manually
  delete   <id> [id...]                      delete URLs by id
  devices                                    print the cached device roster

flags:
  --server <url>   server base URL (default http://localhost:3000)`)
	os.Exit(2)
}

func main() {
	server := flag.String("server", "http://localhost:3000", "server base URL")
	email := flag.String("email", "", "email for login")
	provider := flag.String("provider", "google", "identity provider name")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, args, *server, *email, *provider, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, args []string, server, email, provider string, logger *zap.Logger) error {
	switch args[0] {
	case "login":
		return cmdLogin(ctx, server, email, provider)
	case "run":
		return cmdRun(ctx, server, logger)
	case "list":
		return cmdList()
	case "add":
		return cmdAdd(ctx, server, args[1:])
	case "delete":
		return cmdDelete(ctx, server, args[1:])
	case "devices":
		return cmdDevices()
	default:
		usage()
		return nil
	}
}

func apiClient(server string) (*agent.APIClient, error) {
	token, err := loadToken()
	if err != nil {
		return nil, err
	}
	return agent.NewAPIClient(server, token), nil
}

func cmdLogin(ctx context.Context, server, email, provider string) error {
	if email == "" {
		return errors.New("--email required")
	}
	c := agent.NewAPIClient(server, "")
	tokens, err := c.MintToken(ctx, email, provider)
	if err != nil {
		return err
	}
	if err := saveToken(tokens.AccessToken, tokens.ExpiresAt); err != nil {
		return err
	}
	fmt.Println("logged in; token valid until", tokens.ExpiresAt.Format(time.RFC3339))
	return nil
}

func cmdRun(ctx context.Context, server string, logger *zap.Logger) error {
	token, err := loadToken()
	if err != nil {
		return err
	}
	cache, err := agent.OpenCache(cachePath())
	if err != nil {
		return err
	}
	a := agent.New(agent.Config{
		ServerURL: server,
		Token:     token,
		Device:    deviceDescriptor(),
	}, cache, logger)

	err = a.Run(ctx)
	if errors.Is(err, errs.ErrUnauthorized) {
		dropToken()
		return errors.New("token rejected; run login again")
	}
	return err
}

func cmdList() error {
	cache, err := agent.OpenCache(cachePath())
	if err != nil {
		return err
	}
	for _, u := range cache.URLs() {
		fmt.Printf("%s  [%s]  %s  %s\n", u.ID, u.Source, u.CreatedAt.Format(time.RFC3339), u.URL)
	}
	return nil
}

func cmdAdd(ctx context.Context, server string, args []string) error {
	if len(args) == 0 {
		return errors.New("url required")
	}
	title := ""
	if len(args) > 1 {
		title = args[1]
	}
	c, err := apiClient(server)
	if err != nil {
		return err
	}
	inserted, err := c.AddURLs(ctx, []model.NewURL{{URL: args[0], Title: title, Source: model.SourceManual}})
	if err != nil {
		return err
	}
	if len(inserted) == 0 {
		fmt.Println("already saved")
		return nil
	}
	for _, u := range inserted {
		fmt.Println("saved", u.ID, u.URL)
	}
	return nil
}

func cmdDelete(ctx context.Context, server string, args []string) error {
	if len(args) == 0 {
		return errors.New("at least one id required")
	}
	ids := make([]uuid.UUID, 0, len(args))
	for _, s := range args {
		id, err := uuid.FromString(s)
		if err != nil {
			return fmt.Errorf("bad id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	c, err := apiClient(server)
	if err != nil {
		return err
	}
	if err := c.DeleteURLs(ctx, ids); err != nil {
		return err
	}
	fmt.Println("deleted", len(ids))
	return nil
}

func cmdDevices() error {
	cache, err := agent.OpenCache(cachePath())
	if err != nil {
		return err
	}
	for _, d := range cache.Devices() {
		fmt.Printf("%s  %-24s %-10s %-10s last seen %s\n",
			d.ID, d.Name, d.Browser, d.Platform, d.LastSeen.Format(time.RFC3339))
	}
	return nil
}
