// Command server runs the address credential issuer.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	addressservice "domicile/internal/address/service"
	addressstore "domicile/internal/address/store"
	"domicile/internal/audit"
	"domicile/internal/clientregistry"
	"domicile/internal/credential"
	"domicile/internal/cryptoboundary"
	"domicile/internal/keyoracle"
	"domicile/internal/platform/config"
	"domicile/internal/platform/httpserver"
	"domicile/internal/platform/logger"
	"domicile/internal/platform/metrics"
	platformredis "domicile/internal/platform/redis"
	sessionservice "domicile/internal/session/service"
	sessionstore "domicile/internal/session/store"
	"domicile/internal/token"
	httptransport "domicile/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)
	m := metrics.New(prometheus.DefaultRegisterer)

	oracle, err := newOracle(ctx, cfg, log)
	if err != nil {
		return err
	}

	registry, err := newRegistry(cfg, log)
	if err != nil {
		return err
	}

	sessions, redisClient, err := newSessionStore(cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	addresses, db, err := newAddressStore(cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	emitter, kafkaEmitter, err := newEmitter(cfg, log, m)
	if err != nil {
		return err
	}
	if kafkaEmitter != nil {
		defer kafkaEmitter.Close()
	}

	boundary := cryptoboundary.New(oracle, cfg.DecryptionKeyID)
	engine := sessionservice.NewEngine(boundary, registry, sessions, emitter, m, log, cfg.SessionTTL)
	addressSvc := addressservice.New(engine, addresses, emitter, m, log)
	minter := token.NewMinter(cfg.AccessTokenSecret, cfg.VCIssuer, cfg.AccessTokenTTL)
	exchange := token.NewExchange(sessions, minter, m, log)
	issuer := credential.NewIssuer(boundary, sessions, addresses, minter, emitter, m, log,
		cfg.VCIssuer, cfg.VCTTL, cfg.VCSigningKeyID)

	health := map[string]httptransport.HealthCheck{}
	if redisClient != nil {
		health["redis"] = redisClient.Health
	}
	if db != nil {
		health["postgres"] = db.PingContext
	}

	handler := httptransport.NewHandler(log, m, engine, addressSvc, exchange, issuer,
		oracle, cfg.VCSigningKeyID, health)
	server := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func newOracle(ctx context.Context, cfg config.Config, log *slog.Logger) (keyoracle.Oracle, error) {
	if cfg.UseLocalKeys {
		log.Warn("using in-process development keys, not KMS")
		return keyoracle.NewLocalDev(cfg.VCSigningKeyID, cfg.DecryptionKeyID)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}
	return keyoracle.NewKMS(awsCfg), nil
}

func newRegistry(cfg config.Config, log *slog.Logger) (clientregistry.Registry, error) {
	if cfg.ClientPolicyFile == "" {
		log.Warn("no client policy file configured, all clients will be rejected")
		return clientregistry.NewStatic(nil), nil
	}
	return clientregistry.LoadFile(cfg.ClientPolicyFile)
}

func newSessionStore(cfg config.Config, log *slog.Logger) (sessionstore.Store, *platformredis.Client, error) {
	client, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Warn("redis not configured, sessions held in memory")
		return sessionstore.NewMemory(), nil, nil
	}
	return sessionstore.NewRedis(client), client, nil
}

func newAddressStore(cfg config.Config, log *slog.Logger) (addressstore.Store, *sql.DB, error) {
	if cfg.PostgresDSN == "" {
		log.Warn("postgres not configured, addresses held in memory")
		return addressstore.NewMemory(), nil, nil
	}
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, err
	}
	return addressstore.NewPostgres(db), db, nil
}

func newEmitter(cfg config.Config, log *slog.Logger, m *metrics.Metrics) (audit.Emitter, *audit.KafkaEmitter, error) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Warn("kafka not configured, audit events captured in memory")
		return audit.NewCapture(), nil, nil
	}
	kafkaEmitter, err := audit.NewKafka(cfg.KafkaBrokers, cfg.AuditTopic, log, m)
	if err != nil {
		return nil, nil, err
	}
	return kafkaEmitter, kafkaEmitter, nil
}
