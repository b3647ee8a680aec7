package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/devgateway/dozer-model/internal/adapters/db/sqldb"
	httpadapter "github.com/devgateway/dozer-model/internal/adapters/http"
	"github.com/devgateway/dozer-model/internal/adapters/orm"
	rpcadapter "github.com/devgateway/dozer-model/internal/adapters/rpcjson"
	"github.com/devgateway/dozer-model/internal/application"
	"github.com/devgateway/dozer-model/internal/config"
	"github.com/devgateway/dozer-model/internal/domain"
	"github.com/devgateway/dozer-model/internal/logs"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "dozer",
		Usage: "Detachable ORM model server and CLI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file (yaml, toml or json)", Sources: cli.EnvVars("DOZER_CONFIG")},
		},
		Commands: []*cli.Command{
			serverCommand(),
			migrateCommand(),
			seedCommand(),
			demoCommand(),
			modelsCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

// setup loads the config and initializes logging; every local command starts here.
func setup(c *cli.Command) (config.Config, *config.Loader, *zap.Logger, error) {
	cfg, loader, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, loader, logs.Init("dozer", cfg.Log), nil
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP and JSON-RPC servers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address (overrides http.addr)"},
			&cli.StringFlag{Name: "rpc-socket", Usage: "JSON-RPC unix socket path (overrides rpc.socket)"},
			&cli.BoolFlag{Name: "seed", Usage: "insert demo data when the database is empty"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, loader, logger, err := setup(c)
			if err != nil {
				return err
			}
			defer func() { _ = logs.Sync() }()
			if c.IsSet("addr") {
				cfg.HTTP.Addr = c.String("addr")
			}
			if c.IsSet("rpc-socket") {
				cfg.RPC.Socket = c.String("rpc-socket")
			}
			loader.Watch(func(next config.Config) {
				logs.SetLevel(next.Log.Level)
			})
			return runServer(ctx, cfg, logger, c.Bool("seed"))
		},
	}
}

func runServer(ctx context.Context, cfg config.Config, logger *zap.Logger, seed bool) error {
	db, err := sqldb.Open(cfg.DB, logger)
	if err != nil {
		return err
	}
	if _, err := sqldb.RunMigrations(ctx, db); err != nil {
		return err
	}
	repo := sqldb.NewShopRepository(db)
	if seed {
		if _, err := repo.Seed(ctx); err != nil {
			return err
		}
	}

	sessions, err := orm.NewSessionFactory(db, sqldb.Entities(),
		orm.WithLogger(logger),
		orm.WithBatchSize(cfg.DB.BatchSize),
	)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := application.NewMetrics(reg)
	store := application.NewModelStore(cfg.Models.TTL, metrics)
	service := application.NewDetachService(store,
		application.WithLogger(logger),
		application.WithMetrics(metrics),
		application.WithMapKeys(cfg.Walk.MapKeys),
	)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go store.Run(runCtx, cfg.Models.SweepInterval)

	router := httpadapter.NewRouter(httpadapter.Deps{
		Sessions: sessions,
		Service:  service,
		Orders:   repo,
		Gatherer: reg,
		Log:      logger,
	})
	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(cfg.RPC.Socket, service, sessions, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = rpcSrv.Close()
	}()
	logger.Info("json-rpc listening", zap.String("socket", cfg.RPC.Socket))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, _, logger, err := setup(c)
			if err != nil {
				return err
			}
			db, err := sqldb.Open(cfg.DB, logger)
			if err != nil {
				return err
			}
			version, err := sqldb.RunMigrations(ctx, db)
			if err != nil {
				return err
			}
			printKV([][2]string{{"driver", cfg.DB.Driver}, {"version", fmt.Sprint(version)}})
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Insert demo customers, orders and invoices",
		Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, _, logger, err := setup(c)
			if err != nil {
				return err
			}
			db, err := sqldb.Open(cfg.DB, logger)
			if err != nil {
				return err
			}
			if _, err := sqldb.RunMigrations(ctx, db); err != nil {
				return err
			}
			out, err := sqldb.NewShopRepository(db).Seed(ctx)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(out)
			}
			printSeed(out)
			return nil
		},
	}
}

func demoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Detach an order in one session and reattach it in another",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "order-id", Usage: "order to load (defaults to the seeded one)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, _, logger, err := setup(c)
			if err != nil {
				return err
			}
			return runDemo(ctx, cfg, logger, c.Uint("order-id"))
		},
	}
}

func modelsCommand() *cli.Command {
	withTransport := func(flags ...cli.Flag) []cli.Flag {
		return append(flags,
			&cli.StringFlag{Name: "transport", Usage: "uds or http"},
			&cli.StringFlag{Name: "server", Usage: "HTTP base URL"},
			&cli.StringFlag{Name: "socket", Usage: "JSON-RPC unix socket"},
			&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
		)
	}

	return &cli.Command{
		Name:  "models",
		Usage: "Detached model commands against a running server",
		Commands: []*cli.Command{
			{
				Name:  "open",
				Usage: "Load an entity and keep it as a detached model",
				Flags: withTransport(
					&cli.StringFlag{Name: "entity", Value: "Order"},
					&cli.UintFlag{Name: "id", Required: true},
				),
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := clientConfig(c)
					if err != nil {
						return err
					}
					var out application.OpenResult
					if err := doModelOpen(ctx, cfg, c.String("entity"), c.Uint("id"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printKV([][2]string{{"handle", out.Handle}, {"entity", out.Entity}, {"nodes", fmt.Sprint(out.Nodes)}})
					printDefinitions(out.Definitions)
					return nil
				},
			},
			{
				Name:  "resolve",
				Usage: "Reattach a model and print its object graph",
				Flags: withTransport(
					&cli.StringFlag{Name: "handle", Required: true},
					&cli.BoolFlag{Name: "initialize", Usage: "load lazy collections and proxies"},
				),
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := clientConfig(c)
					if err != nil {
						return err
					}
					var out resolveResult
					if err := doModelResolve(ctx, cfg, c.String("handle"), c.Bool("initialize"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					return printRoot(out.Root)
				},
			},
			{
				Name:  "definitions",
				Usage: "Show the detached properties of a model",
				Flags: withTransport(&cli.StringFlag{Name: "handle", Required: true}),
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := clientConfig(c)
					if err != nil {
						return err
					}
					var out []domain.DefinitionRecord
					if err := doModelDefinitions(ctx, cfg, c.String("handle"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printDefinitions(out)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List live models",
				Flags: withTransport(),
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := clientConfig(c)
					if err != nil {
						return err
					}
					var out []application.StoredModel
					if err := doModelList(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printModels(out)
					return nil
				},
			},
			{
				Name:  "close",
				Usage: "Drop a model",
				Flags: withTransport(&cli.StringFlag{Name: "handle", Required: true}),
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := clientConfig(c)
					if err != nil {
						return err
					}
					if err := doModelClose(ctx, cfg, c.String("handle")); err != nil {
						return err
					}
					fmt.Printf("closed %s\n", c.String("handle"))
					return nil
				},
			},
		},
	}
}

func jsonMarshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
