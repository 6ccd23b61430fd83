package cli

import (
	"errors"

	"codeinject-go-server/domain/entity"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop cached bundles on a running server",
	Long: `Send POST /cache/purge to the server for one target.

Without --location both head and body entries are purged.

Examples:
  injectctl purge --id 3
  injectctl purge --type site --id 64f1c0ffee --location body`,
	RunE: runPurge,
}

var (
	purgeType     string
	purgeID       string
	purgeLocation string
)

func init() {
	purgeCmd.Flags().StringVar(&purgeType, "type", "page", "Target type (page|site)")
	purgeCmd.Flags().StringVar(&purgeID, "id", "", "Target ID")
	purgeCmd.Flags().StringVar(&purgeLocation, "location", "", "head|body (default: both)")
	_ = purgeCmd.MarkFlagRequired("id")
}

func runPurge(cmd *cobra.Command, args []string) error {
	if globalSecret == "" {
		return errors.New("purge secret required (--secret or $PURGE_SECRET)")
	}
	kind, err := entity.ParseTargetKind(purgeType)
	if err != nil {
		return err
	}
	locations := entity.Locations
	if purgeLocation != "" {
		loc, err := entity.ParseLocation(purgeLocation)
		if err != nil {
			return err
		}
		locations = []entity.Location{loc}
	}

	client := NewPurgeClient(globalServer, globalSecret, zap.NewNop())
	for _, loc := range locations {
		target := entity.Target{Kind: kind, ID: purgeID, Location: loc}
		msg, err := client.Purge(cmd.Context(), target)
		switch {
		case errors.Is(err, ErrNotCached):
			printf(cmd, "%s: not cached\n", target.Key())
		case err != nil:
			return err
		default:
			printf(cmd, "%s\n", msg)
		}
	}
	return nil
}
