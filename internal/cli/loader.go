package cli

import (
	"fmt"

	"codeinject-go-server/domain/entity"
	"codeinject-go-server/internal/loader"

	"github.com/spf13/cobra"
)

var loaderCmd = &cobra.Command{
	Use:   "loader",
	Short: "Print the loader script for a target",
	Long: `Print the inline script that would be registered on the platform.

The endpoint defaults to --server.

Examples:
  injectctl loader --id 3 --location head
  injectctl loader --type site --id 64f1c0ffee --endpoint https://inject.example.com`,
	RunE: runLoader,
}

var (
	loaderType     string
	loaderID       string
	loaderLocation string
	loaderEndpoint string
)

func init() {
	loaderCmd.Flags().StringVar(&loaderType, "type", "page", "Target type (page|site)")
	loaderCmd.Flags().StringVar(&loaderID, "id", "", "Target ID")
	loaderCmd.Flags().StringVar(&loaderLocation, "location", "head", "head|body")
	loaderCmd.Flags().StringVar(&loaderEndpoint, "endpoint", "", "Public base URL of the server")
	_ = loaderCmd.MarkFlagRequired("id")
}

func runLoader(cmd *cobra.Command, args []string) error {
	kind, err := entity.ParseTargetKind(loaderType)
	if err != nil {
		return err
	}
	loc, err := entity.ParseLocation(loaderLocation)
	if err != nil {
		return err
	}
	endpoint := loaderEndpoint
	if endpoint == "" {
		endpoint = globalServer
	}

	src, err := loader.Generate(loader.Params{
		TargetID:     loaderID,
		Kind:         kind,
		Location:     loc,
		EndpointBase: endpoint,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), src)
	return nil
}
