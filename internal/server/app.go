// Package server wires the auth API together: database and migrations,
// credential primitives, session services, mail delivery, Google OAuth and
// the HTTP transport, and runs them until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/notify"
	"github.com/dmitrijs2005/authkeeper/internal/server/oauth"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/hibiken/asynq"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

const oauthStateTTL = 10 * time.Minute

type App struct {
	config *config.Config
	logger logging.Logger

	db          *sql.DB
	rdb         *redis.Client
	queueClient *asynq.Client

	httpServer *httpapi.Server
	worker     *notify.Worker
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)
	app := &App{config: c, logger: logger}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	if err := db.PingContext(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	hasher, err := auth.NewBcryptHasher(c.BcryptCost)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("hasher init error: %w", err)
	}
	tokens := auth.NewTokenIssuer([]byte(c.SecretKey), c.AccessTokenValidityDuration)

	if c.MailQueueEnabled || c.GoogleEnabled() {
		app.rdb = redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
		if err := app.rdb.Ping(ctx).Err(); err != nil {
			app.Close()
			return nil, fmt.Errorf("redis ping error: %w", err)
		}
	}

	notifier := app.buildNotifier()

	us := services.NewUserService(db, rm, hasher, logger)
	ss := services.NewSessionService(services.SessionDeps{
		DB:          db,
		Tx:          dbx.NewSQLTransactor(db, nil),
		Repomanager: rm,
		Hasher:      hasher,
		TOTP:        auth.NewTOTP(c.AppName),
		Tokens:      tokens,
		Notifier:    notifier,
		Logger:      logger,
	}, c)

	deps := httpapi.Deps{Users: us, Sessions: ss, Tokens: tokens, Logger: logger}
	if c.GoogleEnabled() {
		deps.Google = oauth.NewGoogleProvider(c.GoogleClientID, c.GoogleClientSecret, c.GoogleRedirectURL)
		deps.States = oauth.NewStateStore(app.rdb, oauthStateTTL)
	}
	app.httpServer = httpapi.NewServer(c.HTTPAddr, c.AllowedOrigins, deps)

	return app, nil
}

// buildNotifier returns the inline SMTP notifier, or a queue-backed one plus
// the worker that drains it when the mail queue is enabled.
func (app *App) buildNotifier() services.Notifier {
	c := app.config
	mailer := notify.NewMailNotifier(notify.NewSMTPSender(notify.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUser,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
	}), c.AppName, c.FrontendURL, app.logger)

	if !c.MailQueueEnabled {
		return mailer
	}

	redisOpt := asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
	app.queueClient = asynq.NewClient(redisOpt)
	app.worker = notify.NewWorker(redisOpt, mailer, app.logger)
	return notify.NewQueueNotifier(app.queueClient, app.logger)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startWorker(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.worker.Start(ctx); err != nil {
		app.logger.Error(ctx, "mail worker error", "error", err)
		cancelFunc()
		return
	}
	<-ctx.Done()
	app.worker.Stop()
}

// Run blocks until a termination signal arrives or a component fails, then
// releases every resource the app holds.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.worker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startWorker(ctx, cancelFunc)
		}()
	}

	wg.Wait()
	app.Close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) Close() {
	ctx := context.Background()
	if app.queueClient != nil {
		if err := app.queueClient.Close(); err != nil {
			app.logger.Error(ctx, "queue client close error", "error", err)
		}
	}
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error(ctx, "redis close error", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close error", "error", err)
		}
	}
}
