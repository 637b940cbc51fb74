// tossigd is the signer registry ledger daemon. It executes signed batches
// against the registry programs and serves the JSON-RPC API.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tos-network/tossig/cmd/utils"
	"github.com/tos-network/tossig/core"
	"github.com/tos-network/tossig/internal/flags"
	"github.com/tos-network/tossig/log"
	"github.com/tos-network/tossig/rpc"
	"github.com/tos-network/tossig/secprecover"
	"github.com/tos-network/tossig/sigreg"
)

const clientIdentifier = "tossigd"

var (
	// Git SHA1 commit hash and date of the release (set via linker flags)
	gitCommit = ""
	gitDate   = ""

	app = flags.NewApp(gitCommit, gitDate, "the tossig signer registry daemon")

	nodeFlags = []cli.Flag{
		utils.ConfigFileFlag,
		utils.DataDirFlag,
		utils.CacheFlag,
		utils.CacheAccountsFlag,
		utils.RegistryIdentityFlag,
		utils.RecoveryIdentityFlag,
		utils.VerbosityFlag,
	}
	rpcFlags = []cli.Flag{
		utils.HTTPListenAddrFlag,
		utils.HTTPPortFlag,
		utils.HTTPCORSDomainFlag,
		utils.JWTSecretFlag,
	}
	metricsFlags = []cli.Flag{
		utils.MetricsEnabledFlag,
		utils.MetricsEnableInfluxDBFlag,
		utils.MetricsInfluxDBEndpointFlag,
		utils.MetricsInfluxDBTokenFlag,
		utils.MetricsInfluxDBBucketFlag,
		utils.MetricsInfluxDBOrganizationFlag,
		utils.MetricsInfluxDBTagsFlag,
	}
)

func init() {
	app.Name = clientIdentifier
	app.Action = tossigd
	app.Commands = []*cli.Command{
		versionCommand,
		dumpConfigCommand,
	}
	sort.Sort(cli.CommandsByName(app.Commands))
	app.Flags = flags.Merge(nodeFlags, rpcFlags, metricsFlags)
	app.Before = func(ctx *cli.Context) error {
		utils.SetupLogging(ctx)
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// tossigd starts the ledger daemon and blocks until it is shut down.
func tossigd(ctx *cli.Context) error {
	if args := ctx.Args().Slice(); len(args) > 0 {
		return fmt.Errorf("invalid command: %q", args[0])
	}
	cfg := makeConfig(ctx)
	utils.SetupMetrics(ctx)

	db := utils.MakeLedgerDatabase(ctx, cfg.Node.DataDir)
	defer db.Close()

	ledger, err := core.NewLedger(db, cfg.Ledger)
	if err != nil {
		utils.Fatalf("Failed to open ledger: %v", err)
	}
	if err := ledger.RegisterProgram(cfg.Node.recoveryIdentity, secprecover.Program{}); err != nil {
		utils.Fatalf("Failed to register recovery program: %v", err)
	}
	if err := ledger.RegisterProgram(cfg.Node.registryIdentity, sigreg.NewProcessor(cfg.Node.recoveryIdentity)); err != nil {
		utils.Fatalf("Failed to register signer registry: %v", err)
	}
	log.Info("Registered programs", "registry", cfg.Node.registryIdentity, "recovery", cfg.Node.recoveryIdentity)

	handler := rpc.NewServer(ledger, rpc.ServerConfig{
		Origins:   cfg.Node.HTTPCors,
		JWTSecret: utils.LoadJWTSecret(cfg.Node.JWTSecret),
	})
	endpoint := net.JoinHostPort(cfg.Node.HTTPHost, strconv.Itoa(cfg.Node.HTTPPort))
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		utils.Fatalf("Failed to listen on %s: %v", endpoint, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("HTTP server started", "endpoint", "http://"+listener.Addr().String())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	group, gctx := errgroup.WithContext(context.Background())
	group.Go(func() error {
		if err := srv.Serve(listener); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		select {
		case <-sigc:
			log.Info("Got interrupt, shutting down...")
		case <-gctx.Done():
			// Serve failed, nothing left to shut down.
			return nil
		}
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	})
	return group.Wait()
}
