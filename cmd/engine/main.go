package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chart-trigger-bot-go/internal/account"
	"chart-trigger-bot-go/internal/config"
	"chart-trigger-bot-go/internal/downloader"
	"chart-trigger-bot-go/internal/engine"
	"chart-trigger-bot-go/internal/feed"
	"chart-trigger-bot-go/internal/indicator"
	"chart-trigger-bot-go/internal/logger"
	"chart-trigger-bot-go/internal/models"
	"chart-trigger-bot-go/internal/persistence"
	"chart-trigger-bot-go/internal/reporter"
	"chart-trigger-bot-go/internal/session"

	"github.com/joho/godotenv"
)

// extractSymbolFromPath derives the symbol from a kline data path, e.g.
// "data/BTCUSDT-2025-03-15-2025-06-15.csv" -> "BTCUSDT".
func extractSymbolFromPath(path string) string {
	name := strings.TrimSuffix(path, ".csv")
	parts := strings.Split(name, "/")
	fileName := parts[len(parts)-1]

	symbolParts := strings.Split(fileName, "-")
	if len(symbolParts) > 0 {
		return symbolParts[0]
	}
	return ""
}

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	mode := flag.String("mode", "replay", "running mode: replay or live")
	dataPath := flag.String("data", "", "path to historical kline file for replay")
	symbol := flag.String("symbol", "", "symbol to download for replay (e.g., BTCUSDT)")
	startDate := flag.String("start", "", "start date for kline download (YYYY-MM-DD)")
	endDate := flag.String("end", "", "end date for kline download (YYYY-MM-DD)")
	flag.Parse()

	// A default logger so config loading itself can log; re-initialized
	// below once the file config is known.
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	if err := godotenv.Load(); err != nil {
		logger.S().Info("no .env file found, reading from system environment")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("loading config file: %v", err)
	}

	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	switch *mode {
	case "replay":
		finalDataPath, err := resolveReplayData(*symbol, *startDate, *endDate, *dataPath)
		if err != nil {
			logger.S().Fatal(err)
		}
		runReplayMode(cfg, finalDataPath)
	case "live":
		runLiveMode(cfg)
	default:
		logger.S().Fatalf("unknown mode %q, expected 'replay' or 'live'", *mode)
	}
}

// resolveReplayData returns the kline file to replay, downloading it first
// when a symbol and date range are given instead of a file path.
func resolveReplayData(symbol, startDate, endDate, dataPath string) (string, error) {
	shouldDownload := symbol != "" && startDate != "" && endDate != ""

	if shouldDownload {
		startTime, err1 := time.Parse("2006-01-02", startDate)
		endTime, err2 := time.Parse("2006-01-02", endDate)
		if err1 != nil || err2 != nil {
			return "", fmt.Errorf("bad date format, expected YYYY-MM-DD. start: %v, end: %v", err1, err2)
		}

		fileName := fmt.Sprintf("data/%s-%s-%s.csv", symbol, startDate, endDate)
		logger.S().Infof("downloading %s klines from %s to %s...", symbol, startDate, endDate)

		dl := downloader.NewKlineDownloader()
		if err := dl.DownloadKlines(symbol, fileName, startTime, endTime); err != nil {
			return "", fmt.Errorf("downloading klines: %w", err)
		}
		return fileName, nil
	}

	if dataPath == "" {
		return "", fmt.Errorf("replay mode needs either --data or --symbol/--start/--end")
	}
	return dataPath, nil
}

// openSession loads (or creates) the session snapshot and wraps it in a
// manager. The caller owns closing the returned repository.
func openSession(cfg *models.Config, symbol string) (*session.Manager, persistence.SnapshotRepository, error) {
	repo, err := persistence.NewBadgerRepository(cfg.DBPath, symbol)
	if err != nil {
		return nil, nil, fmt.Errorf("opening snapshot database: %w", err)
	}

	snap, err := repo.LoadSnapshot()
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("loading session snapshot: %w", err)
	}
	if snap == nil {
		logger.S().Infof("no previous session for %s, starting fresh with %.2f USD", symbol, cfg.InitialBalanceUSD)
		snap = models.NewSessionSnapshot(symbol, models.NewPaperAccount(cfg.InitialBalanceUSD))
	} else {
		logger.S().Infof("resumed session for %s: balance %.2f USD, %d open positions, %d triggers",
			symbol, snap.Account.BalanceUSD, len(snap.Account.OpenPositions), len(snap.ShapeTriggers))
	}

	limits := account.Limits{
		MarginCallLevel:  cfg.MarginCallLevel,
		LiquidationLevel: cfg.LiquidationLevel,
	}
	slip := models.SlippageConfig{Rate: cfg.SlippageRate}
	eng := engine.New(limits, slip, cfg.EventLogCap)
	ind := indicator.NewBuilder(cfg.RSIPeriod, cfg.VolumeWindow)

	return session.NewManager(snap, repo, eng, ind), repo, nil
}

// runReplayMode replays a downloaded kline file through the engine.
func runReplayMode(cfg *models.Config, dataPath string) {
	logger.S().Info("--- replay mode ---")

	symbol := extractSymbolFromPath(dataPath)
	if symbol == "" {
		symbol = cfg.Symbol
	}
	if symbol == "" {
		logger.S().Fatalf("cannot derive symbol from %s and none configured", dataPath)
	}

	candles, err := feed.LoadCandles(dataPath)
	if err != nil {
		logger.S().Fatalf("loading kline data: %v", err)
	}
	ticks := feed.TicksFromCandles(symbol, candles)
	if len(ticks) == 0 {
		logger.S().Fatal("kline file has fewer than two rows, nothing to replay")
	}

	mgr, repo, err := openSession(cfg, symbol)
	if err != nil {
		logger.S().Fatal(err)
	}
	defer repo.Close()

	// The geometry epsilon is a fraction of the replayed price range.
	low, high := math.Inf(1), math.Inf(-1)
	for _, c := range candles {
		low = math.Min(low, c.Low)
		high = math.Max(high, c.High)
	}
	threshold := (high - low) * cfg.ThresholdFraction

	logger.S().Infof("replaying %d ticks of %s (%s), threshold %.4f",
		len(ticks), symbol, dataPath, threshold)

	mgr.ObserveCandle(candles[0].Close, candles[0].Volume)
	for i, tick := range ticks {
		events := mgr.ApplyTick(tick, threshold)
		for _, evt := range events {
			logger.S().Infof("[%s] %s", evt.Kind, evt.Message)
		}
		// ticks[i] pairs candles[i] and candles[i+1]
		mgr.ObserveCandle(candles[i+1].Close, candles[i+1].Volume)
	}

	if err := mgr.Save(); err != nil {
		logger.S().Errorf("saving session snapshot: %v", err)
	}
	logger.S().Info("replay finished")

	lastPrice := ticks[len(ticks)-1].Price
	acct := mgr.Account()
	metrics := reporter.CalculateMetrics(acct, cfg.InitialBalanceUSD, lastPrice, mgr.EquityCurve())
	reporter.WriteReport(os.Stdout, symbol, acct, lastPrice, metrics, 20)
}

// runLiveMode streams trades over websocket into the engine until
// interrupted. Trade streams carry no candle volume, so volume-gated
// blocks stay unfilled in this mode.
func runLiveMode(cfg *models.Config) {
	logger.S().Info("--- live mode ---")

	if cfg.Symbol == "" {
		logger.S().Fatal("live mode needs a symbol in the config file")
	}
	if cfg.LiveWSURL == "" {
		logger.S().Fatal("live mode needs live_ws_url in the config file")
	}

	mgr, repo, err := openSession(cfg, cfg.Symbol)
	if err != nil {
		logger.S().Fatal(err)
	}
	defer repo.Close()

	stream := feed.NewLiveTickStream(cfg.LiveWSURL, cfg.Symbol)
	if err := stream.Start(); err != nil {
		logger.S().Fatalf("starting live stream: %v", err)
	}

	mgr.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// The visible price range grows with the session in live mode.
	low, high := math.Inf(1), math.Inf(-1)
	var lastPrice float64

loop:
	for {
		select {
		case tick, ok := <-stream.Ticks():
			if !ok {
				logger.S().Warn("live stream closed")
				break loop
			}
			low = math.Min(low, tick.Price)
			high = math.Max(high, tick.Price)
			lastPrice = tick.Price
			mgr.ObserveCandle(tick.Price, 0)
			mgr.Dispatch(session.TickEvent{Tick: tick, Threshold: (high - low) * cfg.ThresholdFraction})
		case <-quit:
			logger.S().Info("shutting down...")
			break loop
		}
	}

	stream.Stop()
	mgr.Stop()
	if err := mgr.Save(); err != nil {
		logger.S().Errorf("saving session snapshot: %v", err)
	}
	logger.S().Info("session saved")

	if lastPrice > 0 {
		acct := mgr.Account()
		metrics := reporter.CalculateMetrics(acct, cfg.InitialBalanceUSD, lastPrice, mgr.EquityCurve())
		reporter.WriteReport(os.Stdout, cfg.Symbol, acct, lastPrice, metrics, 20)
	}
}
