package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storyboard-server/internal/config"
	"storyboard-server/internal/model"
	"storyboard-server/internal/planner"
	"storyboard-server/internal/service"
	"storyboard-server/shared/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	// Порт для метрик Prometheus
	metricsPort = "9091"
)

func main() {
	inputPath := flag.String("input", "", "путь к JSON со ScriptData (пусто - stdin)")
	outputPath := flag.String("output", "", "путь для JSON с планом кадров (пусто - stdout)")
	prevScriptPath := flag.String("previous-script", "", "ScriptData предыдущего запуска для переиспользования")
	prevShotsPath := flag.String("previous-shots", "", "кадры предыдущего запуска для переиспользования")
	flag.Parse()

	log.Println("Запуск планировщика кадров...")

	// HTTP-сервер для метрик Prometheus в отдельной горутине
	go startMetricsServer()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		Encoding:   cfg.LogEncoding,
		OutputPath: cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	aiClient, err := service.NewAIClient(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Ошибка инициализации AI клиента", zap.Error(err))
	}

	script, err := readScript(*inputPath)
	if err != nil {
		zapLogger.Fatal("Ошибка чтения сценария", zap.Error(err))
	}

	opts := planner.Options{Observer: logObserver{logger: zapLogger}}
	if *prevScriptPath != "" && *prevShotsPath != "" {
		prevScript, err := readScript(*prevScriptPath)
		if err != nil {
			zapLogger.Fatal("Ошибка чтения предыдущего сценария", zap.Error(err))
		}
		prevShots, err := readShots(*prevShotsPath)
		if err != nil {
			zapLogger.Fatal("Ошибка чтения предыдущих кадров", zap.Error(err))
		}
		opts.PreviousScript = prevScript
		opts.PreviousShots = prevShots
	}

	// Отмена по SIGINT/SIGTERM прерывает пайплайн немедленно
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shots, err := planner.New(cfg, aiClient, zapLogger).Plan(ctx, script, opts)
	if err != nil {
		zapLogger.Fatal("Планирование не удалось", zap.Error(err))
	}

	if err := writeShots(*outputPath, shots); err != nil {
		zapLogger.Fatal("Ошибка записи плана", zap.Error(err))
	}
	zapLogger.Info("План кадров записан", zap.Int("shots", len(shots)))
}

func startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := ":" + metricsPort
	log.Printf("Сервер метрик слушает на %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Сервер метрик остановлен: %v", err)
	}
}

func readScript(path string) (*model.ScriptData, error) {
	data, err := readAll(path)
	if err != nil {
		return nil, err
	}
	var script model.ScriptData
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("ошибка парсинга ScriptData: %w", err)
	}
	return &script, nil
}

func readShots(path string) ([]model.Shot, error) {
	data, err := readAll(path)
	if err != nil {
		return nil, err
	}
	var shots []model.Shot
	if err := json.Unmarshal(data, &shots); err != nil {
		return nil, fmt.Errorf("ошибка парсинга кадров: %w", err)
	}
	return shots, nil
}

func readAll(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeShots(path string, shots []model.Shot) error {
	data, err := json.MarshalIndent(shots, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// logObserver транслирует события пайплайна в лог.
type logObserver struct {
	logger *zap.Logger
}

func (o logObserver) PipelineStarted(totalScenes int, totalShots int) {
	o.logger.Info("Пайплайн запущен", zap.Int("scenes", totalScenes), zap.Int("planned_shots", totalShots))
}

func (o logObserver) SceneStarted(sceneIndex int, sceneID string) {
	o.logger.Info("Сцена в обработке", zap.Int("index", sceneIndex), zap.String("scene_id", sceneID))
}

func (o logObserver) SceneCompleted(progress service.SceneProgress) {
	o.logger.Info("Сцена обработана",
		zap.Int("index", progress.SceneIndex),
		zap.String("scene_id", progress.SceneID),
		zap.Int("shots", progress.ShotCount),
		zap.String("source", string(progress.Source)),
		zap.String("tier", progress.ActionTier))
}

func (o logObserver) PipelineCompleted(shots []model.Shot) {
	o.logger.Info("Пайплайн завершен", zap.Int("shots", len(shots)))
}
