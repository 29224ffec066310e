package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slidedeck/config"
	"slidedeck/core"
	"slidedeck/events"
	"slidedeck/handlers/api/documents"
	"slidedeck/handlers/api/export"
	identity "slidedeck/middleware"
	"slidedeck/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

func setupRouter(store core.DocumentStore, pub events.Publisher) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "If-Match", identity.UsernameHeader, "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	r.Use(identity.Identity)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", documents.HandleList(store))
		r.Post("/", documents.HandleCreate(store, pub))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", documents.HandleGet(store))
			r.Put("/", documents.HandleReplace(store, pub))
			r.Patch("/", documents.HandlePatch(store, pub))
			r.Post("/viewers", documents.HandleRegisterViewer(store, pub))
			r.Get("/export.pdf", export.HandlePDF(store))
			r.Get("/slides/{index}/thumbnail.png", export.HandleThumbnail(store))
		})
	})

	return r
}

func setupPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		logrus.Info("No kafka brokers configured, document events are only logged")
		return events.LogPublisher{}
	}
	producer, err := events.NewKafkaProducer(cfg.Kafka.Brokers)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect kafka")
	}
	logrus.WithFields(logrus.Fields{
		"brokers": cfg.Kafka.Brokers,
		"topic":   cfg.Kafka.Topic,
	}).Info("Publishing document events to kafka")
	return events.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

func waitForShutdown(srv *http.Server, pub events.Publisher) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
	}
	if err := pub.Close(); err != nil {
		logrus.WithError(err).Error("Failed to close event publisher")
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	listenAddress := flag.String("listen", cfg.Listen, "The address to listen on.")
	logLevel := flag.String("loglevel", cfg.LogLevel, "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	store := stores.GetStore(cfg)
	pub := setupPublisher(cfg)

	srv := &http.Server{
		Addr:              *listenAddress,
		Handler:           setupRouter(store, pub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(srv, pub)
}
