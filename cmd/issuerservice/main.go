package main

import (
	"context"
	"expvar"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/tbd54566975/issuer-service/config"
	"github.com/tbd54566975/issuer-service/pkg/server"
)

func main() {
	logrus.Info("Starting up...")

	if err := run(); err != nil {
		logrus.Fatalf("main: error: %s", err.Error())
	}
}

// startup and shutdown logic
func run() error {
	// a .env file is optional, values already in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("could not load .env file")
	}

	configPath := config.DefaultConfigPath
	if envConfigPath, present := os.LookupEnv(config.ConfigPathEnv); present {
		logrus.Infof("loading config from env var path: %s", envConfigPath)
		configPath = envConfigPath
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return errors.Wrap(err, "could not instantiate config")
	}
	// help or version output was requested
	if cfg == nil {
		return nil
	}

	// set up logger
	if logFile := configureLogger(cfg.Server.LogLevel, cfg.Server.LogLocation); logFile != nil {
		defer func(logFile *os.File) {
			if err = logFile.Close(); err != nil {
				logrus.WithError(err).Error("failed to close log file")
			}
		}(logFile)
	}

	// set up tracer
	var tp *sdktrace.TracerProvider
	if cfg.Server.JaegerEnabled {
		if tp, err = newTracerProvider(cfg); err != nil {
			logrus.WithError(err).Error("could not instantiate tracer provider")
		}
	}

	expvar.NewString("build").Set(cfg.Version.SVN)

	logrus.Infof("main: Started : Service initializing : env [%s] : version %q", cfg.Server.Environment, cfg.Version.SVN)
	defer logrus.Info("main: Completed")

	// the key password is masked
	out, err := conf.String(cfg)
	if err != nil {
		return errors.Wrap(err, "serializing config")
	}
	logrus.Infof("main: Config: \n%v\n", out)

	// create a channel of buffer size 1 to handle shutdown.
	// buffer's size is 1 in order to ignore any additional ctrl+c
	// spamming.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	issuerServer, err := server.NewIssuerServer(context.Background(), shutdown, *cfg)
	if err != nil {
		return errors.Wrap(err, "could not start http services")
	}

	serverErrors := make(chan error, 1)
	go func() {
		logrus.Infof("main: server started and listening on -> %s", issuerServer.Addr)
		serverErrors <- issuerServer.ListenAndServe()
	}()

	select {
	case err = <-serverErrors:
		return errors.Wrap(err, "server error")
	case sig := <-shutdown:
		logrus.Infof("main: shutdown signal received -> %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Handle shutdown properly so nothing leaks.
		if tp != nil {
			if err = tp.Shutdown(ctx); err != nil {
				logrus.Errorf("main: failed to shutdown tracer: %s", err)
			}
		}

		if err = issuerServer.Shutdown(ctx); err != nil {
			logrus.WithError(err).Error("main: failed to stop server gracefully, forcing shutdown")
			if err = issuerServer.Server.Close(); err != nil {
				logrus.WithError(err).Error("main: failed to close server")
			}
		}

		if err = issuerServer.IssuerService.Close(); err != nil {
			logrus.WithError(err).Error("main: failed to close storage")
		}
	}

	return nil
}

// newTracerProvider returns an OpenTelemetry TracerProvider configured to use
// the Jaeger exporter that will send spans to the provided url. The returned
// TracerProvider will also use a Resource configured with all the information
// about the application.
func newTracerProvider(cfg *config.IssuerServiceConfig) (*sdktrace.TracerProvider, error) {
	jaegerHost := cfg.Server.JaegerHost
	if jaegerHost == "" {
		return nil, errors.New("no jaeger host provided")
	}
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerHost)))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		// Always be sure to batch in production.
		sdktrace.WithBatcher(exporter),
		// Record information about this application in a Resource.
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version.SVN),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp, nil
}

// configureLogger configures the logger to logs to the given location and returns a file pointer to a logs
// file that should be closed upon server shutdown
func configureLogger(level, location string) *os.File {
	if level != "" {
		logLevel, err := logrus.ParseLevel(level)
		if err != nil {
			logrus.WithError(err).Errorf("could not parse log level<%s>, setting to info", level)
			logrus.SetLevel(logrus.InfoLevel)
		} else {
			logrus.SetLevel(logLevel)
		}
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetReportCaller(true)

	// set logs config from config file
	logrus.SetOutput(os.Stdout)
	if location == "" {
		return nil
	}
	now := time.Now()
	logFile := filepath.Join(location, config.ServiceName+"-"+now.Format("2006-01-02")+"-"+strconv.FormatInt(now.Unix(), 10)+".log")
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		logrus.WithError(err).Warn("failed to create logs file, using default stdout")
		return nil
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, file))
	return file
}
