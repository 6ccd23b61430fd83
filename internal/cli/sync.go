package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"codeinject-go-server/bootstrap"
	"codeinject-go-server/domain/entity"
	"codeinject-go-server/internal/platform"
	"codeinject-go-server/usecase"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile local pages with the platform page list",
	Long: `Fetch the platform page list and apply inserts, renames and deletions locally.

Deleted pages are purged from the running server's cache when --secret is set.

Examples:
  injectctl sync --site 64f1c0ffee
  injectctl sync --all --secret $PURGE_SECRET`,
	RunE: runSync,
}

var (
	syncSite string
	syncAll  bool
)

func init() {
	syncCmd.Flags().StringVar(&syncSite, "site", "", "Site ID to reconcile")
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Reconcile every connected site")
	syncCmd.MarkFlagsMutuallyExclusive("site", "all")
	syncCmd.MarkFlagsOneRequired("site", "all")
}

// logInvalidator 没有 purge 密钥时只记录需要清理的目标
type logInvalidator struct {
	logger *zap.Logger
}

func (l logInvalidator) InvalidateTarget(_ context.Context, kind entity.TargetKind, id string) {
	l.logger.Info("[Sync] cache purge skipped (no --secret)", zap.String("target", string(kind)+":"+id))
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap.LoadEnv()
	if err != nil {
		return err
	}
	logger, err := bootstrap.NewLogger(env.Environment, env.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if env.DBType == bootstrap.DBTypeMemory {
		return errors.New("sync needs a persistent database (DB_TYPE=postgres)")
	}
	repos, err := bootstrap.NewRepositories(env, logger)
	if err != nil {
		return err
	}
	defer repos.Close()

	var invalidator usecase.CacheInvalidator = logInvalidator{logger: logger}
	if globalSecret != "" {
		invalidator = NewPurgeClient(globalServer, globalSecret, logger)
	}

	source := platform.NewClient(platform.Config{
		BaseURL: env.PlatformAPIBase,
		Token:   env.PlatformToken,
		Timeout: env.UpstreamTimeout,
	}, logger)
	syncer := usecase.NewSyncUseCase(repos.Pages, repos.Sites, source, invalidator, nil, logger, env.SyncConcurrency)

	if syncSite != "" {
		result, err := syncer.SyncSite(ctx, syncSite)
		printResult(cmd, result)
		return err
	}

	reports, err := syncer.SyncAll(ctx)
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range reports {
		printResult(cmd, r.SyncResult)
		if r.Error != "" {
			failed++
			printf(cmd, "  ❌ %s\n", r.Error)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sites failed", failed, len(reports))
	}
	return nil
}

func printResult(cmd *cobra.Command, r usecase.SyncResult) {
	printf(cmd, "site %s: remote=%d added=%d updated=%d deleted=%d\n",
		r.SiteID, r.Remote, r.Added, r.Updated, r.Deleted)
}
