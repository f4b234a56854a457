package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/skalibog/cryptoscalp/pkg/logger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance  BinanceConfig  `yaml:"binance"`
	Trading  TradingConfig  `yaml:"trading"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
	UI       UIConfig       `yaml:"ui"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	Testnet    bool   `yaml:"testnet"`
	Futures    bool   `yaml:"futures"`
	Retries    int    `yaml:"retries"`
	RetryMinMS int    `yaml:"retry_min_ms"`
	RetryMaxMS int    `yaml:"retry_max_ms"`
}

// TradingConfig содержит список инструментов и таймфреймы
type TradingConfig struct {
	Symbols       []string `yaml:"symbols"`
	EntryInterval string   `yaml:"entry_interval"`
	TrendInterval string   `yaml:"trend_interval"`
	CandleLimit   int      `yaml:"candle_limit"`
}

// AnalysisConfig содержит все настраиваемые константы движка
type AnalysisConfig struct {
	IntervalSeconds int             `yaml:"interval_seconds"`
	MinCandles      int             `yaml:"min_candles"`
	Indicators      IndicatorConfig `yaml:"indicators"`
	Regime          RegimeConfig    `yaml:"regime"`
	Signal          SignalConfig    `yaml:"signal"`
	Risk            RiskConfig      `yaml:"risk"`
	Status          StatusConfig    `yaml:"status"`
	OrderBook       OrderBookConfig `yaml:"orderbook"`
	Spoof           SpoofConfig     `yaml:"spoof"`
}

// IndicatorConfig периоды индикаторов
type IndicatorConfig struct {
	EMAFast      int     `yaml:"ema_fast"`
	EMASlow      int     `yaml:"ema_slow"`
	RSIPeriod    int     `yaml:"rsi_period"`
	ATRPeriod    int     `yaml:"atr_period"`
	VolumePeriod int     `yaml:"volume_period"`
	NearEMABand  float64 `yaml:"near_ema_band"`
}

// RegimeConfig пороги классификации режима (доли цены)
type RegimeConfig struct {
	NormalTrend float64 `yaml:"normal_trend"`
	StrongTrend float64 `yaml:"strong_trend"`
}

// SignalConfig пороги скоринга
type SignalConfig struct {
	RangeEntryBias  float64 `yaml:"range_entry_bias"`
	BookConfirmBias float64 `yaml:"book_confirm_bias"`
	BookBlockBias   float64 `yaml:"book_block_bias"`
	RSIOversold     float64 `yaml:"rsi_oversold"`
	RSIOverbought   float64 `yaml:"rsi_overbought"`
	EMALowerBand    float64 `yaml:"ema_lower_band"`
	EMAUpperBand    float64 `yaml:"ema_upper_band"`
	RSIExtremePts   int     `yaml:"rsi_extreme_points"`
	RSIValuePts     int     `yaml:"rsi_value_points"`
	StructurePts    int     `yaml:"structure_points"`
	BookPts         int     `yaml:"book_points"`
	TrendBasePts    int     `yaml:"trend_base_points"`
}

// RiskConfig параметры стоп-лосса и тейк-профитов
type RiskConfig struct {
	SwingLookback    int       `yaml:"swing_lookback"`
	LongStructureBuf float64   `yaml:"long_structure_buffer"`
	ShortStructure   float64   `yaml:"short_structure_buffer"`
	LongMinStop      float64   `yaml:"long_min_stop"`
	ShortMinStop     float64   `yaml:"short_min_stop"`
	TargetMultiples  []float64 `yaml:"target_multiples"`
}

// StatusConfig пороги уверенности
type StatusConfig struct {
	Active    int `yaml:"active"`
	Potential int `yaml:"potential"`
}

// OrderBookConfig настройки опроса стакана
type OrderBookConfig struct {
	IntervalSeconds int     `yaml:"interval_seconds"`
	Depth           int     `yaml:"depth"`
	WhaleTotal      float64 `yaml:"whale_total"`
	MegaWallTotal   float64 `yaml:"mega_wall_total"`
}

// SpoofConfig настройки детектора спуфинга
type SpoofConfig struct {
	Threshold  float64 `yaml:"threshold"`
	MinLifeMS  int     `yaml:"min_life_ms"`
	MaxLifeMS  int     `yaml:"max_life_ms"`
	AlertTTLMS int     `yaml:"alert_ttl_ms"`
}

// StorageConfig настройки хранения данных
type StorageConfig struct {
	Type         string `yaml:"type"` // influxdb или none
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// MetricsConfig адрес для /metrics, пустой отключает экспорт
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level    string `yaml:"level"`
	File     string `yaml:"file"`
	JSONFile string `yaml:"json_file"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	RefreshRate int `yaml:"refresh_rate_ms"`
	MaxLogs     int `yaml:"max_logs"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		Binance: BinanceConfig{
			Retries:    3,
			RetryMinMS: 1000,
			RetryMaxMS: 8000,
		},
		Trading: TradingConfig{
			Symbols:       []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT", "XRPUSDT", "ADAUSDT", "DOGEUSDT"},
			EntryInterval: "15m",
			TrendInterval: "1h",
			CandleLimit:   200,
		},
		Analysis: AnalysisConfig{
			IntervalSeconds: 30,
			MinCandles:      50,
			Indicators: IndicatorConfig{
				EMAFast:      9,
				EMASlow:      21,
				RSIPeriod:    14,
				ATRPeriod:    14,
				VolumePeriod: 20,
				NearEMABand:  0.008,
			},
			Regime: RegimeConfig{
				NormalTrend: 0.003,
				StrongTrend: 0.008,
			},
			Signal: SignalConfig{
				RangeEntryBias:  0.15,
				BookConfirmBias: 0.05,
				BookBlockBias:   0.2,
				RSIOversold:     30,
				RSIOverbought:   70,
				EMALowerBand:    0.99,
				EMAUpperBand:    1.01,
				RSIExtremePts:   20,
				RSIValuePts:     10,
				StructurePts:    20,
				BookPts:         15,
				TrendBasePts:    35,
			},
			Risk: RiskConfig{
				SwingLookback:    10,
				LongStructureBuf: 0.998,
				ShortStructure:   1.002,
				LongMinStop:      0.992,
				ShortMinStop:     1.008,
				TargetMultiples:  []float64{1.5, 2.5, 4.0},
			},
			Status: StatusConfig{
				Active:    65,
				Potential: 40,
			},
			OrderBook: OrderBookConfig{
				IntervalSeconds: 5,
				Depth:           20,
				WhaleTotal:      500000,
				MegaWallTotal:   20000000,
			},
			Spoof: SpoofConfig{
				Threshold:  1000000,
				MinLifeMS:  2000,
				MaxLifeMS:  15000,
				AlertTTLMS: 5000,
			},
		},
		Storage: StorageConfig{
			Type: "none",
		},
		Log: LogConfig{
			Level:    "debug",
			File:     "app.log",
			JSONFile: "app.json.log",
		},
		UI: UIConfig{
			RefreshRate: 1000,
			MaxLogs:     50,
		},
	}
}

// Load загружает конфигурацию из файла поверх значений по умолчанию
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	// .env необязателен
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("Не удалось прочитать .env", zap.Error(err))
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация: %w", err)
	}

	logger.Debug("Загружена конфигурация", zap.String("path", path), zap.Any("analysis", cfg.Analysis))
	logger.Info("Загружена конфигурация", zap.Strings("symbols", cfg.Trading.Symbols))
	return cfg, nil
}

// applyEnv переопределяет ключи API из окружения
func (c *Config) applyEnv() {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Binance.APISecret = v
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		c.Storage.Token = v
	}
}

// Validate проверяет конфигурацию и возвращает все найденные ошибки разом
func (c *Config) Validate() error {
	var err error

	if len(c.Trading.Symbols) == 0 {
		err = multierr.Append(err, fmt.Errorf("trading.symbols: список пуст"))
	}
	if c.Trading.EntryInterval == "" {
		err = multierr.Append(err, fmt.Errorf("trading.entry_interval: не задан"))
	}
	switch c.Trading.TrendInterval {
	case "30m", "1h":
	default:
		err = multierr.Append(err, fmt.Errorf("trading.trend_interval: допустимы 30m и 1h, задан %q", c.Trading.TrendInterval))
	}
	if c.Trading.CandleLimit < c.Analysis.MinCandles {
		err = multierr.Append(err, fmt.Errorf("trading.candle_limit %d меньше analysis.min_candles %d",
			c.Trading.CandleLimit, c.Analysis.MinCandles))
	}

	a := c.Analysis
	if a.IntervalSeconds <= 0 || a.OrderBook.IntervalSeconds <= 0 {
		err = multierr.Append(err, fmt.Errorf("analysis: интервалы опроса должны быть положительными"))
	}
	if a.Indicators.EMAFast < 1 || a.Indicators.EMASlow < 1 || a.Indicators.RSIPeriod < 2 {
		err = multierr.Append(err, fmt.Errorf("analysis.indicators: некорректные периоды"))
	}
	if a.MinCandles <= a.Indicators.RSIPeriod {
		err = multierr.Append(err, fmt.Errorf("analysis.min_candles должен превышать rsi_period"))
	}
	if a.Regime.NormalTrend <= 0 || a.Regime.StrongTrend <= a.Regime.NormalTrend {
		err = multierr.Append(err, fmt.Errorf("analysis.regime: требуется 0 < normal_trend < strong_trend"))
	}
	if a.Status.Potential >= a.Status.Active {
		err = multierr.Append(err, fmt.Errorf("analysis.status: potential должен быть меньше active"))
	}
	if a.Risk.SwingLookback < 1 {
		err = multierr.Append(err, fmt.Errorf("analysis.risk.swing_lookback должен быть положительным"))
	}
	if m := a.Risk.TargetMultiples; len(m) != 3 || !(0 < m[0] && m[0] < m[1] && m[1] < m[2]) {
		err = multierr.Append(err, fmt.Errorf("analysis.risk.target_multiples должны возрастать"))
	}
	if r := a.Risk; !(0 < r.LongMinStop && r.LongMinStop < 1) || r.ShortMinStop <= 1 ||
		!(0 < r.LongStructureBuf && r.LongStructureBuf <= 1) || r.ShortStructure < 1 {
		err = multierr.Append(err, fmt.Errorf("analysis.risk: стопы лонга должны быть ниже 1, шорта выше 1"))
	}
	if s := a.Signal; s.RSIOversold >= s.RSIOverbought {
		err = multierr.Append(err, fmt.Errorf("analysis.signal: rsi_oversold должен быть меньше rsi_overbought"))
	}
	if s := a.Signal; !(0 < s.EMALowerBand && s.EMALowerBand < 1) || s.EMAUpperBand <= 1 {
		err = multierr.Append(err, fmt.Errorf("analysis.signal: требуется ema_lower_band < 1 < ema_upper_band"))
	}
	if a.Spoof.Threshold <= 0 {
		err = multierr.Append(err, fmt.Errorf("analysis.spoof.threshold должен быть положительным"))
	}
	if a.Spoof.MinLifeMS >= a.Spoof.MaxLifeMS {
		err = multierr.Append(err, fmt.Errorf("analysis.spoof: min_life_ms должен быть меньше max_life_ms"))
	}

	switch c.Storage.Type {
	case "", "none":
	case "influxdb":
		if c.Storage.URL == "" || c.Storage.Bucket == "" {
			err = multierr.Append(err, fmt.Errorf("storage: для influxdb нужны url и bucket"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("storage.type: неизвестный тип %q", c.Storage.Type))
	}

	return err
}
