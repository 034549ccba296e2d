package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"novacontent/internal/publish"
	"novacontent/pkg/config"
)

var (
	authInfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	authSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	authErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with external services",
	Long:  `Authenticate with YouTube or check which services are configured in .env`,
}

var authYouTubeCmd = &cobra.Command{
	Use:   "youtube",
	Short: "Authenticate with YouTube (OAuth)",
	Long:  `Complete the YouTube OAuth flow using credentials from the .env file and store the token.`,
	RunE:  runAuthYouTube,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check authentication status for all services",
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authYouTubeCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println(authInfoStyle.Render("\nService Authentication Status:\n"))

	status := func(ok bool, optional bool, line string) {
		switch {
		case ok:
			fmt.Println(authSuccessStyle.Render("✓ " + line))
		case optional:
			fmt.Println(authInfoStyle.Render("○ " + line))
		default:
			fmt.Println(authErrorStyle.Render("✗ " + line))
		}
	}

	switch cfg.Generation.Provider {
	case "groq":
		status(cfg.GroqAPIKey != "", false, "Groq (script generation): GROQ_API_KEY")
	default:
		status(cfg.GeminiAPIKey != "", false, "Gemini (script generation): GEMINI_API_KEY")
	}
	status(cfg.ElevenLabsAPIKey != "", true, "ElevenLabs (voiceover): ELEVENLABS_API_KEY, silent stub audio otherwise")
	status(cfg.GoogleSearchAPIKey != "" && cfg.GoogleSearchEngineID != "", true, "Google Search (scene images): placeholders otherwise")
	status(cfg.GCSBucket != "", cfg.Storage.Backend != "gcs", "Cloud Storage (rendered videos): GCS_BUCKET")
	status(cfg.RedisAddr != "", cfg.Quota.Backend != "redis", "Redis (quota counter): REDIS_ADDR")

	if cfg.YouTubeClientID != "" && cfg.YouTubeClientSecret != "" {
		auth := publish.NewAuth(cfg.YouTubeClientID, cfg.YouTubeClientSecret, cfg.YouTubeTokenPath)
		if auth.Authenticated() {
			status(true, false, "YouTube: authenticated")
		} else {
			status(false, false, "YouTube: credentials set, but not authenticated")
			fmt.Println(authInfoStyle.Render("  Run: novacontent auth youtube"))
		}
	} else {
		status(false, cfg.Publish.Platform != "youtube", "YouTube: YOUTUBE_CLIENT_ID and YOUTUBE_CLIENT_SECRET")
	}

	fmt.Println()
	return nil
}

func runAuthYouTube(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.YouTubeClientID == "" || cfg.YouTubeClientSecret == "" {
		return errors.New("YOUTUBE_CLIENT_ID and YOUTUBE_CLIENT_SECRET must be set in .env")
	}
	return runYouTubeAuth(cmd.Context(), publish.NewAuth(cfg.YouTubeClientID, cfg.YouTubeClientSecret, cfg.YouTubeTokenPath), cfg.YouTubeTokenPath)
}

// runYouTubeAuth serves the OAuth redirect locally and exchanges the code it
// receives for a token.
func runYouTubeAuth(ctx context.Context, auth *publish.Auth, tokenPath string) error {
	redirect, err := url.Parse(publish.DefaultRedirect)
	if err != nil {
		return err
	}

	state, err := randomState()
	if err != nil {
		return err
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}

	server := &http.Server{ReadHeaderTimeout: 10 * time.Second}
	server.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != redirect.Path {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- errors.New("no code in callback")
			_, _ = fmt.Fprintf(w, "<html><body><h1>Error</h1><p>No authorization code received.</p></body></html>")
			return
		}

		codeChan <- code
		_, _ = fmt.Fprintf(w, "<html><body><h1>Success!</h1><p>You can close this window and return to the terminal.</p></body></html>")
	})

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	fmt.Println(authInfoStyle.Render("\nVisit this URL to authorize YouTube uploads:\n" + auth.AuthURL(state)))
	fmt.Println(authInfoStyle.Render("\nWaiting for authentication..."))

	select {
	case code := <-codeChan:
		if err := auth.Exchange(ctx, code); err != nil {
			return err
		}
		fmt.Println(authSuccessStyle.Render("✓ YouTube authentication complete"))
		fmt.Println(authSuccessStyle.Render("  Token saved to: " + tokenPath))
		return nil

	case err := <-errChan:
		return err

	case <-ctx.Done():
		return ctx.Err()

	case <-time.After(5 * time.Minute):
		return errors.New("authentication timed out")
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
