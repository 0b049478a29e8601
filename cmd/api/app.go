package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/bryanwahyu/horusec-scan/internal/application"
	appai "github.com/bryanwahyu/horusec-scan/internal/application/ai"
	appscans "github.com/bryanwahyu/horusec-scan/internal/application/scans"
	"github.com/bryanwahyu/horusec-scan/internal/config"
	"github.com/bryanwahyu/horusec-scan/internal/domain/ai"
	"github.com/bryanwahyu/horusec-scan/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
	"github.com/bryanwahyu/horusec-scan/internal/infra/ai/openai"
	"github.com/bryanwahyu/horusec-scan/internal/infra/ai/prompt"
	"github.com/bryanwahyu/horusec-scan/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/horusec-scan/internal/infra/db/mysql"
	"github.com/bryanwahyu/horusec-scan/internal/infra/db/postgres"
	"github.com/bryanwahyu/horusec-scan/internal/infra/executor/git"
	"github.com/bryanwahyu/horusec-scan/internal/infra/executor/horusec"
	minioStore "github.com/bryanwahyu/horusec-scan/internal/infra/storage"
	"github.com/bryanwahyu/horusec-scan/internal/infra/workspace"
	"github.com/bryanwahyu/horusec-scan/internal/middleware"
)

// app holds everything built from the config.
type app struct {
	Scans      *appscans.Service
	Workspaces *workspace.Manager
	Janitor    *workspace.Janitor
	Checkers   map[string]middleware.HealthChecker
	db         *sql.DB
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{
		Workspaces: workspace.NewManager(cfg.Workspace.BaseDir),
		Checkers:   map[string]middleware.HealthChecker{},
	}

	svc := &appscans.Service{
		Cloner:            git.NewCloner(cfg.Git.Binary, cfg.Git.Depth),
		Engine:            horusec.NewRunner(cfg.Engine.Binary, cfg.Engine.Mode, cfg.Engine.DockerImage, cfg.Engine.Timeout, cfg.Engine.ExtraArgs),
		Workspaces:        a.Workspaces,
		OutputToFile:      cfg.Engine.OutputMode == config.OutputFile,
		BlockPrivateHosts: cfg.Server.BlockPrivateHosts,
		Clock:             application.SystemClock{},
		Log:               log,
	}

	repo, errRepo, err := a.history(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if repo != nil {
		svc.Repo, svc.Errors = repo, errRepo
		log.Info("scan history enabled", zap.String("driver", cfg.Database.Driver))
	}

	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("minio init error: %w", err)
		}
		svc.Artifacts = store
		a.Checkers["minio"] = middleware.CheckFunc(store.Ping)
	}

	var client ai.Client
	switch cfg.AI.Provider {
	case "openai":
		client = openai.NewClient(cfg.AI.APIKey, cfg.AI.Model)
	case "local":
		client = prompt.LocalAnalyzer{}
	}
	if client != nil {
		svc.Analyst = appai.NewService(client, cfg.AI.MaxReportBytes)
		log.Info("report analysis enabled", zap.String("provider", cfg.AI.Provider))
	}

	if cfg.Workspace.JanitorInterval > 0 {
		a.Janitor = workspace.NewJanitor(a.Workspaces, cfg.Workspace.JanitorInterval, cfg.Workspace.JanitorMaxAge, log)
	}

	a.Scans = svc
	return a, nil
}

func (a *app) history(ctx context.Context, cfg *config.Config) (domain.Repository, scanerrors.Repository, error) {
	switch cfg.Database.Driver {
	case "memory":
		return memory.NewScanRepository(), memory.NewScanErrorRepository(), nil
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("mysql connect error: %w", err)
		}
		a.db = db
		if err := mysqlp.EnsureSchema(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("mysql schema: %w", err)
		}
		a.Checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
		return mysqlp.NewScanRepository(db), mysqlp.NewScanErrorRepository(db), nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect error: %w", err)
		}
		a.db = db
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		a.Checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
		return postgres.NewScanRepository(db), postgres.NewScanErrorRepository(db), nil
	}
	return nil, nil, nil
}
