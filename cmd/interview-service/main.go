// rolevate interview-service
//
// Runs AI interviews in LiveKit rooms:
//   - ad-hoc candidate sessions (room + join token on first contact)
//   - scheduled interviews managed by companies
//   - the agent surface (room lifecycle, transcripts, recordings)
//
// Serves REST on INTERVIEW_PORT, the AgentService gRPC API on GRPC_PORT and
// a cron sweep that closes interviews past their maxDuration.
// Publishes EVENT_INTERVIEW_STATUS to Redis (and RabbitMQ when configured).
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"rolevate/interview-service/internal/auth"
	"rolevate/interview-service/internal/config"
	"rolevate/interview-service/internal/db"
	"rolevate/interview-service/internal/events"
	"rolevate/interview-service/internal/grpcserver"
	"rolevate/interview-service/internal/interview"
	"rolevate/interview-service/internal/livekit"
	"rolevate/interview-service/internal/recording"
	"rolevate/interview-service/internal/scheduler"
	"rolevate/interview-service/internal/util"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[interview-service] .env: %v", err)
	}
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("[interview-service] Config error: %v", err)
	}
	util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Store ────────────────────────────────────────────────────────────────
	var store interview.Store
	switch cfg.Store {
	case config.StoreMemory:
		log.Println("[interview-service] Using in-memory store")
		store = interview.NewMemoryStore()
	default:
		log.Println("[interview-service] Connecting to PostgreSQL…")
		pool, err := db.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[interview-service] PostgreSQL: %v", err)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("[interview-service] Migrate: %v", err)
		}
		store = interview.NewPostgresStore(pool)
		log.Println("[interview-service] PostgreSQL connected ✓")
	}

	// ── Redis + events ───────────────────────────────────────────────────────
	log.Println("[interview-service] Connecting to Redis…")
	rdb, err := db.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[interview-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[interview-service] Redis connected ✓")

	publishers := events.Multi{events.NewRedisPublisher(rdb)}
	if cfg.AMQP.URL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatalf("[interview-service] RabbitMQ: %v", err)
		}
		defer amqpPub.Close()
		publishers = append(publishers, amqpPub)
		log.Println("[interview-service] RabbitMQ connected ✓")
	}

	// ── Recordings ───────────────────────────────────────────────────────────
	var recordings interview.RecordingStore
	if cfg.Minio.Enabled() {
		ms, err := recording.NewMinioStore(ctx, recording.Options{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			log.Fatalf("[interview-service] MinIO: %v", err)
		}
		recordings = ms
		log.Printf("[interview-service] MinIO bucket %s ready ✓", cfg.Minio.Bucket)
	} else {
		log.Println("[interview-service] MinIO not configured; recording uploads disabled")
	}

	// ── LiveKit ──────────────────────────────────────────────────────────────
	signer, err := livekit.NewTokenSigner(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.TokenTTL)
	if err != nil {
		log.Fatalf("[interview-service] LiveKit signer: %v", err)
	}
	rooms, err := livekit.NewRoomClient(cfg.LiveKit.URL, signer)
	if err != nil {
		log.Fatalf("[interview-service] LiveKit client: %v", err)
	}

	svc := interview.NewService(interview.Config{
		Store:      store,
		Rooms:      rooms,
		Tokens:     signer,
		Events:     publishers,
		Recordings: recordings,
		LiveKitURL: cfg.LiveKit.URL,
	})

	// ── HTTP server ──────────────────────────────────────────────────────────
	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		log.Fatalf("[interview-service] Auth: %v", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	h := interview.NewHandler(svc, cfg.MaxUploadBytes)
	h.RegisterCompanyRoutes(mux, verifier.Middleware)
	h.RegisterAgentRoutes(mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           util.WithRequestID(util.WithRequestLog("interview", mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── gRPC server ──────────────────────────────────────────────────────────
	gs := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.LogInterceptor))
	grpcserver.Register(gs, grpcserver.NewServer(svc))
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatalf("[interview-service] gRPC listen: %v", err)
	}

	// ── Scheduler ────────────────────────────────────────────────────────────
	sched := scheduler.New(svc, rdb, cfg.ExpirySchedule)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[interview-service] Scheduler: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("[interview-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Printf("[interview-service] gRPC listening on :%s", cfg.GRPCPort)
		if err := gs.Serve(lis); err != nil {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})

	// ── Graceful shutdown ────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Println("[interview-service] Shutting down…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		sched.Stop()
		stopped := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			gs.Stop()
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("[interview-service] Stopped with error: %v", err)
		os.Exit(1)
	}
	log.Println("[interview-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	util.JSONOK(w, map[string]string{
		"status":  "ok",
		"service": "interview-service",
		"version": version,
	})
}
