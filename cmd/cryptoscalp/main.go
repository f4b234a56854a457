package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skalibog/cryptoscalp/internal/config"
	"github.com/skalibog/cryptoscalp/internal/exchange"
	"github.com/skalibog/cryptoscalp/internal/metrics"
	"github.com/skalibog/cryptoscalp/internal/monitor"
	"github.com/skalibog/cryptoscalp/internal/report"
	"github.com/skalibog/cryptoscalp/internal/storage"
	"github.com/skalibog/cryptoscalp/internal/ui"
	"github.com/skalibog/cryptoscalp/pkg/logger"
	"github.com/skalibog/cryptoscalp/pkg/models"
	"go.uber.org/zap"
)

func main() {
	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	once := flag.Bool("once", false, "выполнить один цикл анализа, вывести таблицу и выйти")
	history := flag.String("history", "", "вывести сохраненную историю анализа по инструменту")
	historyLimit := flag.Int("history-limit", 20, "количество записей истории")
	flag.Parse()

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Options{
		Level:    cfg.Log.Level,
		File:     cfg.Log.File,
		JSONFile: cfg.Log.JSONFile,
		Truncate: true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.GetLogger().Sync()

	// Контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализируем хранилище
	store, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
	}
	defer store.Close()

	if *history != "" {
		if err := printHistory(ctx, store, *history, *historyLimit); err != nil {
			logger.Fatal("Ошибка чтения истории", zap.Error(err))
		}
		return
	}

	// Инициализируем клиент биржи
	client, err := exchange.NewBinanceClient(cfg.Binance)
	if err != nil {
		logger.Fatal("Ошибка инициализации клиента биржи", zap.Error(err))
	}

	mon := monitor.New(cfg, client, store)

	if *once {
		runOnce(ctx, mon, cfg.Trading.Symbols)
		return
	}

	if cfg.Metrics.Addr != "" {
		go serveMetrics(ctx, cfg.Metrics.Addr)
	}

	// Инициализируем UI
	userInterface := ui.NewTermUI(cfg.UI, cfg.Log.JSONFile, cfg.Analysis.OrderBook)
	mon.AddListener(userInterface)

	// Монитор работает до выхода из UI
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := mon.Run(ctx); err != nil {
			logger.Error("Монитор завершился с ошибкой", zap.Error(err))
		}
	}()

	// UI блокирует основной поток
	if err := userInterface.Start(ctx); err != nil {
		logger.Error("Ошибка UI", zap.Error(err))
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("Монитор не завершился за отведенное время")
	}
}

func runOnce(ctx context.Context, mon *monitor.Monitor, symbols []string) {
	mon.AnalyzeAll(ctx)

	results := make([]*models.AnalysisResult, 0, len(symbols))
	for _, symbol := range symbols {
		if r := mon.Result(symbol); r != nil {
			results = append(results, r)
		} else {
			fmt.Fprintf(os.Stderr, "%s: нет результата, подробности в логе\n", symbol)
		}
	}

	report.Table(os.Stdout, results)
	for _, r := range results {
		report.Reasons(os.Stdout, r)
		if r.Status == models.StatusActive {
			fmt.Println(report.SignalText(r))
		}
	}
}

func printHistory(ctx context.Context, store storage.Storage, symbol string, limit int) error {
	results, err := store.GetAnalysisHistory(ctx, symbol, limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Printf("История по %s пуста\n", symbol)
		return nil
	}
	report.Table(os.Stdout, results)
	return nil
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Метрики доступны", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Ошибка сервера метрик", zap.Error(err))
	}
}
