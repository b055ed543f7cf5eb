package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/subculture-collective/spywatcher/internal/config"
	"github.com/subculture-collective/spywatcher/pkg/extension"
)

var extensionsCmd = &cobra.Command{
	Use:   "extensions",
	Short: "Inspect installed extensions",
}

var extensionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List extension directories and their manifests",
	Long: `List every extension directory under the configured extensions
root with its validated manifest, without loading anything. Directories
with invalid manifests are reported with the validation failure.`,
	RunE: runExtensionsList,
}

func init() {
	extensionsCmd.AddCommand(extensionsListCmd)
	rootCmd.AddCommand(extensionsCmd)
}

func runExtensionsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	manifests, failures, err := extension.Inspect(cfg.Extensions.Dir)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tVERSION\tPERMISSIONS")
	for _, m := range manifests {
		perms, _ := json.Marshal(m.Permissions)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Version, perms)
	}
	w.Flush()

	for dir, ferr := range failures {
		fmt.Fprintf(os.Stderr, "invalid: %s: %v\n", dir, ferr)
	}
	return nil
}
