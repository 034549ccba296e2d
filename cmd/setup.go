package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"novacontent/internal/niche"
	"novacontent/internal/store"
	"novacontent/pkg/config"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Long:  `Check external tools, create directories, write .env and config.yaml, and seed the database.`,
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Println(titleStyle.Render("🎬 NovaContent Setup"))

	cfg := config.Default()
	steps := []struct {
		name string
		fn   func() error
	}{
		{"Checking tools", checkTools},
		{"Creating directories", func() error { return createDirectories(cfg) }},
		{"Configuring pipeline", func() error { return configurePipeline(cfg) }},
		{"Configuring environment", func() error { return configureEnv(cfg) }},
		{"Initializing database", func() error { return initDatabase(cmd.Context(), cfg) }},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	printNextSteps()
	return nil
}

func checkTools() error {
	tools := []struct{ name, purpose string }{
		{"npx", "runs the Remotion compositor"},
		{"ffprobe", "measures voiceover durations"},
	}
	for _, tool := range tools {
		if commandExists(tool.name) {
			fmt.Println(successStyle.Render("✓ Found " + tool.name))
			continue
		}
		fmt.Println(warnStyle.Render(fmt.Sprintf("%s not found (%s)", tool.name, tool.purpose)))
	}
	return nil
}

func createDirectories(cfg *config.Config) error {
	dirs := []string{filepath.Dir(cfg.Database.Path), cfg.Cache.Dir, cfg.Render.OutputDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	fmt.Println(successStyle.Render("✓ Created directories"))
	return nil
}

func configurePipeline(cfg *config.Config) error {
	path := config.Path()
	if _, err := os.Stat(path); err == nil {
		var overwrite bool
		if err := huh.NewConfirm().
			Title("Found existing " + path).
			Description("Overwrite?").
			Value(&overwrite).
			Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println(infoStyle.Render("Kept existing " + path))
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Script generation backend").
				Options(
					huh.NewOption("Gemini", "gemini"),
					huh.NewOption("Groq", "groq"),
				).
				Value(&cfg.Generation.Provider),
			huh.NewSelect[string]().
				Title("Voiceover").
				Options(
					huh.NewOption("ElevenLabs", "elevenlabs"),
					huh.NewOption("Silent placeholder audio", "stub"),
				).
				Value(&cfg.Speech.Provider),
			huh.NewSelect[string]().
				Title("Scene images").
				Options(
					huh.NewOption("Placeholder cards", "placeholder"),
					huh.NewOption("Google image search", "search"),
				).
				Value(&cfg.Visuals.Provider),
			huh.NewSelect[string]().
				Title("Rendered video storage").
				Options(
					huh.NewOption("Local directory", "local"),
					huh.NewOption("Google Cloud Storage", "gcs"),
				).
				Value(&cfg.Storage.Backend),
			huh.NewSelect[string]().
				Title("Publishing").
				Options(
					huh.NewOption("Log only", "log"),
					huh.NewOption("YouTube", "youtube"),
				).
				Value(&cfg.Publish.Platform),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	if cfg.Generation.Provider == "groq" {
		cfg.Generation.Model = cfg.Groq.Model
	}

	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ Wrote " + path))
	return nil
}

func configureEnv(cfg *config.Config) error {
	if _, err := os.Stat(".env"); err == nil {
		var overwrite bool
		if err := huh.NewConfirm().
			Title("Found existing .env file").
			Description("Overwrite?").
			Value(&overwrite).
			Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println(infoStyle.Render("Kept existing .env"))
			return nil
		}
	}

	env := make(map[string]string)

	keyName, keyURL := "GEMINI_API_KEY", "https://aistudio.google.com/apikey"
	if cfg.Generation.Provider == "groq" {
		keyName, keyURL = "GROQ_API_KEY", "https://console.groq.com/keys"
	}

	var genKey, elevenKey string
	fields := []huh.Field{
		huh.NewInput().
			Title(keyName).
			Description(keyURL).
			EchoMode(huh.EchoModePassword).
			Value(&genKey).
			Validate(required(keyName)),
	}
	if cfg.Speech.Provider == "elevenlabs" {
		fields = append(fields, huh.NewInput().
			Title("ELEVENLABS_API_KEY").
			Description("https://elevenlabs.io/app/settings/api-keys").
			EchoMode(huh.EchoModePassword).
			Value(&elevenKey).
			Validate(required("ElevenLabs API Key")))
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}
	env[keyName] = strings.TrimSpace(genKey)
	env["ELEVENLABS_API_KEY"] = strings.TrimSpace(elevenKey)

	if cfg.Visuals.Provider == "search" {
		if err := promptPair(env, "GOOGLE_SEARCH_API_KEY", "GOOGLE_SEARCH_ENGINE_ID", `
To create Custom Search credentials:
1. Go to https://console.cloud.google.com/apis/credentials
2. Click "Create Credentials" → "API Key"
3. Go to https://programmablesearchengine.google.com/
4. Create a search engine with image search enabled and copy its ID
`); err != nil {
			return err
		}
	}

	if cfg.Storage.Backend == "gcs" {
		var bucket string
		if err := huh.NewInput().Title("GCS_BUCKET").Value(&bucket).Validate(required("Bucket")).Run(); err != nil {
			return err
		}
		env["GCS_BUCKET"] = strings.TrimSpace(bucket)
	}

	if cfg.Publish.Platform == "youtube" {
		if err := promptPair(env, "YOUTUBE_CLIENT_ID", "YOUTUBE_CLIENT_SECRET", `
To create OAuth credentials:
1. Go to https://console.cloud.google.com/apis/credentials
2. Click "Create Credentials" → "OAuth client ID"
3. Choose "Web application" and add `+"http://localhost:8080/callback"+` as a redirect URI
4. Copy the Client ID and Client Secret, then run: novacontent auth youtube
`); err != nil {
			return err
		}
	}

	return writeEnvFile(env)
}

func promptPair(env map[string]string, first, second, help string) error {
	fmt.Println(infoStyle.Render(help))

	var a, b string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title(first).Value(&a),
			huh.NewInput().Title(second).EchoMode(huh.EchoModePassword).Value(&b),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	env[first] = strings.TrimSpace(a)
	env[second] = strings.TrimSpace(b)
	return nil
}

func writeEnvFile(env map[string]string) error {
	f, err := os.Create(".env")
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	order := []string{
		"GEMINI_API_KEY",
		"GROQ_API_KEY",
		"ELEVENLABS_API_KEY",
		"GOOGLE_SEARCH_API_KEY",
		"GOOGLE_SEARCH_ENGINE_ID",
		"GCS_BUCKET",
		"YOUTUBE_CLIENT_ID",
		"YOUTUBE_CLIENT_SECRET",
	}

	for _, key := range order {
		if val, ok := env[key]; ok && val != "" {
			_, _ = fmt.Fprintf(f, "%s=%s\n", key, val)
		}
	}

	fmt.Println(successStyle.Render("✓ Created .env file"))
	return nil
}

func initDatabase(ctx context.Context, cfg *config.Config) error {
	return runWithSpinner("Seeding built-in niches", func() error {
		st, err := store.Open(ctx, store.Config{Driver: cfg.Database.Driver, Path: cfg.Database.Path})
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		_, err = niche.Seed(ctx, st, niche.Builtin())
		return err
	})
}

func printNextSteps() {
	fmt.Println()
	fmt.Println(titleStyle.Render("Next steps:"))
	fmt.Println("  1. Start the API and workers: novacontent serve")
	fmt.Println("  2. Queue a video: novacontent trigger --topic \"Future of AI\" --niche 1")
	fmt.Println("  3. Watch the queue: novacontent queue")
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runWithSpinner(title string, fn func() error) error {
	var err error
	_ = spinner.New().
		Title(title).
		Action(func() { err = fn() }).
		Run()
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ " + title))
	return nil
}
