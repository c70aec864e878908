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
	"github.com/athebyme/gomarket-sync/internal/worker"
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
	log.Info("Инициализация сервиса",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Ошибка инициализации зависимостей", interfaces.ErrField(err))
	}

	// Без Kafka брокер живет в памяти процесса, поэтому воркер запускается вместе с API
	var inProcess *worker.Worker
	if application.InProcessWorker() {
		inProcess, err = application.NewWorker()
		if err != nil {
			log.Fatal("Ошибка инициализации воркера", interfaces.ErrField(err))
		}
		if err := inProcess.Start(ctx); err != nil {
			log.Fatal("Ошибка запуска воркера", interfaces.ErrField(err))
		}
		log.Info("Воркер запущен в процессе API")
	}

	router, err := application.NewRouter()
	if err != nil {
		log.Fatal("Ошибка настройки маршрутизатора", interfaces.ErrField(err))
	}
	log.Info("Маршрутизатор настроен")

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Сервер запущен", interfaces.LogField{Key: "address", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Ошибка запуска сервера", interfaces.ErrField(err))
		}
	}()

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Ошибка при graceful shutdown", interfaces.ErrField(err))
		}
		log.Info("HTTP сервер остановлен")

		if inProcess != nil {
			if err := inProcess.Stop(); err != nil {
				log.Error("Ошибка остановки воркера", interfaces.ErrField(err))
			}
		}
		cancel()

		log.Info("Закрытие соединений с зависимостями...")
		_ = application.Close()

		close(done)
	}()

	<-done
	log.Info("Сервер корректно завершил работу")
	_ = log.Sync()
}
