package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"novacontent/internal/niche"
	"novacontent/internal/store"
	"novacontent/pkg/config"
)

var nicheFile string

var nichesCmd = &cobra.Command{
	Use:   "niches",
	Short: "Manage content niches",
}

var nichesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert or update niches by name",
	Long: `Seed the built-in niches, or the niches listed in a YAML file given with
--file (or niche_file in config.yaml). Existing niches with the same name are
updated in place, so seeding twice is harmless.`,
	RunE: runNichesSeed,
}

var nichesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored niches",
	RunE:  runNichesList,
}

func init() {
	nichesSeedCmd.Flags().StringVarP(&nicheFile, "file", "f", "", "YAML file with niche definitions")
	nichesCmd.AddCommand(nichesSeedCmd)
	nichesCmd.AddCommand(nichesListCmd)
	rootCmd.AddCommand(nichesCmd)
}

func openStore(cmd *cobra.Command) (*store.Store, *config.Config, error) {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cmd.Context(), store.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.DatabaseURL,
	})
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}

func runNichesSeed(cmd *cobra.Command, args []string) error {
	st, cfg, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	path := nicheFile
	if path == "" {
		path = cfg.NicheFile
	}

	niches := niche.Builtin()
	if path != "" {
		if niches, err = niche.LoadFile(path); err != nil {
			return err
		}
	}

	ids, err := niche.Seed(cmd.Context(), st, niches)
	if err != nil {
		return err
	}
	for i, n := range niches {
		fmt.Printf("%d\t%s\n", ids[i], n.Name)
	}
	return nil
}

func runNichesList(cmd *cobra.Command, args []string) error {
	st, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	niches, err := st.ListNiches(cmd.Context())
	if err != nil {
		return err
	}
	if len(niches) == 0 {
		fmt.Println("No niches. Run: novacontent niches seed")
		return nil
	}

	rows := make([][]string, 0, len(niches))
	for _, n := range niches {
		rows = append(rows, []string{strconv.FormatInt(n.ID, 10), n.Name, truncate(n.Tone, 32), truncate(n.TargetAudience, 32)})
	}
	fmt.Println(renderTable([]string{"ID", "Name", "Tone", "Audience"}, rows, 1))
	return nil
}
