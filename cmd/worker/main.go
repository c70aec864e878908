package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athebyme/gomarket-sync/config"
	"github.com/athebyme/gomarket-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-sync/internal/app"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("Ошибка чтения .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	log.Info("Инициализация воркера",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-worker"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)
	if !cfg.Kafka.Enabled {
		log.Warn("Kafka выключена: воркер выполняет только плановые проверки, вебхуки и команды обрабатывает процесс API")
	}

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Ошибка инициализации зависимостей", interfaces.ErrField(err))
	}

	// HTTP сервер для метрик и проверки живости
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Endpoint, application.Metrics.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := application.Health(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})

		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("Запуск HTTP сервера для метрик", interfaces.LogField{Key: "addr", Value: metricsServer.Addr})
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Ошибка запуска HTTP сервера для метрик", interfaces.ErrField(err))
			}
		}()
	}

	w, err := application.NewWorker()
	if err != nil {
		log.Fatal("Ошибка инициализации воркера", interfaces.ErrField(err))
	}
	if err := w.Start(ctx); err != nil {
		log.Fatal("Ошибка запуска воркера", interfaces.ErrField(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info("Воркер запущен и готов к обработке сообщений")
	<-quit
	log.Info("Получен сигнал завершения, выполняется graceful shutdown...")

	if err := w.Stop(); err != nil {
		log.Error("Ошибка остановки воркера", interfaces.ErrField(err))
	}
	cancel()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Ошибка остановки сервера метрик", interfaces.ErrField(err))
		}
		shutdownCancel()
	}

	_ = application.Close()
	log.Info("Воркер корректно завершил работу")
	_ = log.Sync()
}
