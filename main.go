package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"metalhead/internal/api"
	"metalhead/internal/config"
	"metalhead/internal/db"
	"metalhead/internal/jobs"
	"metalhead/internal/notify"
	"metalhead/internal/payments"
	"metalhead/internal/utils"
)

func main() {
	// --- Блок инициализации ---
	err := godotenv.Load()
	if err != nil {
		log.Println("Предупреждение: не удалось загрузить файл .env. Переменные окружения должны быть установлены иным способом.")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Критическая ошибка: не удалось загрузить конфигурацию: %v", err)
	}

	if err := utils.InitEncryptionKey(); err != nil {
		log.Fatalf("Критическая ошибка: не удалось инициализировать ключ шифрования: %v", err)
	}

	if err := db.InitDB(); err != nil {
		log.Fatalf("Критическая ошибка: не удалось инициализировать базу данных: %v", err)
	}
	defer db.CloseDB()

	var notifier notify.Notifier = notify.Nop{}
	if cfg.TelegramToken != "" {
		tg, errBot := notify.NewTelegramNotifier(cfg.TelegramToken)
		if errBot != nil {
			log.Printf("Предупреждение: Telegram-уведомления отключены: %v", errBot)
		} else {
			notifier = tg
		}
	}

	gateway := payments.NewStripeClient(cfg.StripeSecretKey)
	splitter := jobs.NewCommissionSplitter(cfg.PlatformFeeRate)

	store := db.Store{}
	svc := jobs.NewService(store, store, store, store, gateway, splitter, notifier)

	// --- Авторасчёт ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := jobs.NewSweeper(svc, cfg.SweepInterval, cfg.PayoutGracePeriod)
	go sweeper.Run(ctx)

	// --- Настройка роутера и Middleware ---
	apiRouter := chi.NewRouter()

	apiRouter.Use(middleware.Logger)
	apiRouter.Use(middleware.Recoverer)
	apiRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Telegram-Auth"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := &api.Handlers{Svc: svc, Cfg: cfg}
	api.SetupRoutes(apiRouter, h, cfg.TelegramToken)

	apiRouter.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{Addr: ":" + port, Handler: apiRouter}

	go func() {
		log.Printf("Запуск HTTP-сервера API на порту %s", port)
		if errSrv := server.ListenAndServe(); errSrv != nil && errSrv != http.ErrServerClosed {
			log.Fatalf("КРИТИЧЕСКАЯ ОШИБКА: не удалось запустить HTTP-сервер: %v", errSrv)
		}
	}()

	log.Println("Движок заказов и API-сервер запущены и готовы к работе...")

	// --- Остановка по сигналу ---
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	log.Println("Получен сигнал остановки, завершение работы...")
	cancel()
	if errShut := server.Shutdown(context.Background()); errShut != nil {
		log.Printf("Ошибка остановки HTTP-сервера: %v", errShut)
	}
}
