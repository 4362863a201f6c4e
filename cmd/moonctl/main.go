// Package main provides the entry point for the moonctl tool, an interactive
// client for the Nintendo parental-controls API. It drives the browser login
// flow, verifies a stored session token, and dumps the paired devices with
// their play activity.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/moonctl/nintendoparental/internal/browser"
	"github.com/moonctl/nintendoparental/internal/buildinfo"
	"github.com/moonctl/nintendoparental/internal/config"
	"github.com/moonctl/nintendoparental/internal/logging"
	"github.com/moonctl/nintendoparental/internal/util"
	"github.com/moonctl/nintendoparental/sdk/auth"
	"github.com/moonctl/nintendoparental/sdk/parental"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

// main parses command-line flags, loads configuration, and either runs the
// interactive login flow or lists the account's devices using a stored
// session token.
func main() {
	fmt.Printf("moonctl Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	var login bool
	var noBrowser bool
	var sessionToken string
	var configPath string

	flag.BoolVar(&login, "login", false, "Login to a Nintendo account interactively")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open the browser automatically for login")
	flag.StringVar(&sessionToken, "session-token", "", "Use a previously stored session token (defaults to NINTENDO_SESSION_TOKEN)")
	flag.StringVar(&configPath, "config", "config.yaml", "Configure file path")
	flag.Parse()

	// Load environment variables from a .env file when present.
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded environment variables from .env file")
	}

	cfg, err := config.LoadConfigOptional(configPath, true)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if cfg.LoggingToFile {
		if errLog := logging.EnableFileOutput(cfg.LogDir); errLog != nil {
			log.Warnf("failed to enable file logging: %v", errLog)
		}
	}

	ctx := context.Background()
	httpClient := util.NewHTTPClient(cfg)

	var authenticator *auth.Authenticator
	if login {
		authenticator, err = doInteractiveLogin(ctx, cfg, noBrowser)
		if err != nil {
			log.Fatalf("login failed: %v", err)
		}
	} else {
		if sessionToken == "" {
			sessionToken = os.Getenv("NINTENDO_SESSION_TOKEN")
		}
		if sessionToken == "" {
			fmt.Println("No session token provided. Run with -login first, or set NINTENDO_SESSION_TOKEN.")
			os.Exit(1)
		}
		authenticator = auth.NewWithSessionToken(httpClient, sessionToken)
		if err = authenticator.CompleteLoginWithStoredToken(ctx, sessionToken); err != nil {
			if auth.IsReauthenticationError(err) {
				log.Fatalf("session token rejected, run with -login to obtain a new one: %v", err)
			}
			log.Fatalf("failed to authenticate: %v", err)
		}
	}

	if err = dumpDevices(ctx, cfg, authenticator); err != nil {
		log.Fatalf("failed to fetch devices: %v", err)
	}
}

// doInteractiveLogin walks the user through the browser login and completes
// the token exchange from the pasted redirect URL. The resulting session
// token is printed for the user to store; the library itself never persists
// it.
func doInteractiveLogin(ctx context.Context, cfg *config.Config, noBrowser bool) (*auth.Authenticator, error) {
	authenticator, err := auth.NewLogin(util.NewHTTPClient(cfg))
	if err != nil {
		return nil, err
	}

	loginURL := authenticator.LoginURL()
	fmt.Printf("Please open the following URL and sign in:\n\n%s\n\n", loginURL)
	if !noBrowser && browser.IsAvailable() {
		if errOpen := browser.OpenURL(loginURL); errOpen != nil {
			log.Warnf("failed to open browser: %v", errOpen)
		}
	} else if errClip := clipboard.WriteAll(loginURL); errClip == nil {
		fmt.Println("The URL has been copied to your clipboard.")
	}

	fmt.Println("After signing in, right-click the red \"Select this account\" button,")
	fmt.Println("copy the link address, and paste it here.")
	fmt.Print("Redirect URL: ")

	reader := bufio.NewReader(os.Stdin)
	redirectURL, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read redirect URL: %w", err)
	}

	if err = authenticator.CompleteLogin(ctx, strings.TrimSpace(redirectURL)); err != nil {
		return nil, err
	}

	snapshot := authenticator.Session().Snapshot()
	fmt.Printf("\nLogged in as %s (%s).\n", snapshot.Identity.Nickname, snapshot.Identity.UserID)
	fmt.Printf("Session token (store it somewhere safe):\n%s\n\n", snapshot.SessionToken)
	return authenticator, nil
}

// dumpDevices prints the device list with per-player and per-application
// play time for today.
func dumpDevices(ctx context.Context, cfg *config.Config, authenticator *auth.Authenticator) error {
	client := parental.NewClient(authenticator,
		parental.WithTimezone(cfg.Timezone),
		parental.WithLanguage(cfg.Language),
		parental.WithHTTPClient(util.NewHTTPClient(cfg)),
	)

	if err := client.Update(ctx); err != nil {
		return err
	}

	devices := client.Devices()
	fmt.Printf("Found %d device(s) on account %s.\n", len(devices), client.AccountID())
	for _, device := range devices {
		fmt.Printf("\n%s (%s)\n", device.Label(), device.DeviceID)
		fmt.Printf("  played today: %d minute(s)\n", device.TodayPlayingTime())
		for _, player := range device.Players() {
			fmt.Printf("  player %s: %d minute(s)\n", player.Nickname, player.PlayingTime)
		}
		for _, application := range device.Applications() {
			fmt.Printf("  app %s: %d minute(s) today\n", application.Name, application.TodayPlayingTime)
		}
	}
	return nil
}
