package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"petshop/config"
	"petshop/database"
	"petshop/loader"
	"petshop/logging"
	"petshop/payment"
	"petshop/render"
)

var (
	cfgFile string
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "petshop",
	Short:         "Pet supply storefront",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Development)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
			config.SetConfig(cfg)
		}
		open, _ := cmd.Flags().GetBool("open")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, open)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()
		down, _ := cmd.Flags().GetInt("down")
		if down > 0 {
			return loader.MigrateDown(cfg.Database.Driver, cfg.Database.DSN, down)
		}
		return loader.Migrate(cfg.Database.Driver, cfg.Database.DSN)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo catalog and demo users",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(config.GetConfig())
		if err != nil {
			return err
		}
		defer db.Close()

		src := loader.DefaultCatalog()
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			src = f
		}
		res, err := loader.Seed(db, src)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "categories: %d, products created: %d, updated: %d, users created: %d\n",
			res.Categories, res.ProductsCreated, res.ProductsUpdated, res.UsersCreated)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <products.csv>",
	Short: "Bulk import products from CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(config.GetConfig())
		if err != nil {
			return err
		}
		defer db.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		encoding, _ := cmd.Flags().GetString("encoding")
		res, err := loader.ImportProductsCSV(db, f, encoding)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "created: %d, updated: %d, skipped: %d\n", res.Created, res.Updated, len(res.Skipped))
		for _, e := range res.Skipped {
			fmt.Fprintf(out, "  %s\n", e.Error())
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./petshop.yaml or $PETSHOP_CONFIG)")
	serveCmd.Flags().String("addr", "", "listen address, overrides server.addr")
	serveCmd.Flags().Bool("open", false, "open the storefront in a browser")
	migrateCmd.Flags().Int("down", 0, "roll back this many migrations instead of applying")
	seedCmd.Flags().String("file", "", "YAML catalog to load instead of the bundled one")
	importCmd.Flags().String("encoding", "", "CSV encoding: utf-8 (default) or gb18030")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openDB migrates the configured database and opens it.
func openDB(cfg config.Config) (*sqlx.DB, error) {
	if err := loader.Migrate(cfg.Database.Driver, cfg.Database.DSN); err != nil {
		return nil, err
	}
	return database.Open(cfg.Database.Driver, cfg.Database.DSN)
}

// initOrderSequence aligns the order number counter with existing orders,
// e.g. after a restore from backup.
func initOrderSequence(db *sqlx.DB) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := database.InitializeOrderSequence(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// newHandler wires the application for cfg. It is shared by serve and the
// route tests.
func newHandler(db *sqlx.DB, cfg config.Config) (http.Handler, error) {
	gw, err := payment.NewGateway(cfg.Payment)
	if err != nil {
		return nil, err
	}
	rr, err := render.New()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	pay := payment.NewService(db, gw)
	mux := http.NewServeMux()
	SetupRoutes(mux, db, pay, render.NewPages(db, rr, pay))
	return logging.Middleware(zap.L(), mux), nil
}

func serve(ctx context.Context, cfg config.Config, open bool) error {
	if err := cfg.ValidateProduction(); err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := initOrderSequence(db); err != nil {
		return fmt.Errorf("failed to initialize order sequence: %w", err)
	}

	handler, err := newHandler(db, cfg)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("addr", cfg.Server.Addr),
			zap.String("driver", cfg.Database.Driver), zap.String("payment", cfg.Payment.Provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	if open {
		host := cfg.Server.Addr
		if strings.HasPrefix(host, ":") {
			host = "localhost" + host
		}
		openBrowser("http://" + host + "/")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openBrowser(url string) {
	var err error
	switch runtime.GOOS {
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = exec.Command("xdg-open", url).Start()
	}
	if err != nil {
		zap.L().Warn("failed to open browser", zap.Error(err))
	}
}
