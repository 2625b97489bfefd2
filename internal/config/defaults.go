package config

import (
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
)

// Default returns the production scoring table: indicator cap 200,
// microstructure cap 20, total cap 220 and a nine-tier classification.
func Default() Config {
	return Config{
		Symbol:   "BTCUSDT",
		Interval: "15",
		Logging:  LoggingConfig{Level: "info"},
		Indicators: IndicatorTable{
			domain.IndicatorRSI:        {Weight: 25, Enabled: true, Period: 14, Params: map[string]float64{"oversold": 30, "overbought": 70}},
			domain.IndicatorMACD:       {Weight: 25, Enabled: true, Params: map[string]float64{"fast": 12, "slow": 26, "signal": 9}},
			domain.IndicatorWilliamsR:  {Weight: 28, Enabled: true, Period: 14, Params: map[string]float64{"oversold": -80, "overbought": -20}},
			domain.IndicatorStochRSI:   {Weight: 20, Enabled: false, Period: 14},
			domain.IndicatorStochastic: {Weight: 18, Enabled: true, Period: 14, Params: map[string]float64{"smooth": 3, "oversold": 20, "overbought": 80}},
			domain.IndicatorBollinger:  {Weight: 20, Enabled: true, Period: 20, Params: map[string]float64{"stddev": 2}},
			domain.IndicatorEMATrend:   {Weight: 22, Enabled: true, Params: map[string]float64{"fast": 9, "slow": 21}},
			domain.IndicatorAO:         {Weight: 17, Enabled: false},
			domain.IndicatorKDJ:        {Weight: 15, Enabled: false, Period: 9},
			domain.IndicatorOBV:        {Weight: 18, Enabled: false},
			domain.IndicatorCMF:        {Weight: 15, Enabled: false, Period: 20},
			domain.IndicatorADX:        {Weight: 15, Enabled: false, Period: 14},
		},
		Scoring: ScoringConfig{
			StrengthMultipliers: map[domain.Strength]float64{
				domain.StrengthWeak:       0.4,
				domain.StrengthModerate:   0.65,
				domain.StrengthStrong:     1.0,
				domain.StrengthVeryStrong: 1.4,
				domain.StrengthExtreme:    1.2,
			},
			TypeMultipliers: map[domain.SignalCategory]float64{
				domain.CategoryDivergence: 1.5,
				domain.CategoryCrossover:  1.3,
				domain.CategoryPattern:    1.3,
				domain.CategoryBreakout:   1.3,
				domain.CategoryThrust:     1.2,
				domain.CategoryZone:       1.0,
				domain.CategoryMomentum:   1.0,
				domain.CategoryHook:       1.1,
				domain.CategoryLevel:      0.8,
			},
			IndicatorScoreCap:  200,
			MicrostructureCap:  20,
			TotalScoreCap:      220,
			AuthorizeThreshold: 50,
			Tiers: []TierBand{
				{Buy: domain.TierExtremeBuy, Sell: domain.TierExtremeSell, Min: 130},
				{Buy: domain.TierStrongBuy, Sell: domain.TierStrongSell, Min: 90},
				{Buy: domain.TierBuy, Sell: domain.TierSell, Min: 50},
				{Buy: domain.TierWeakBuy, Sell: domain.TierWeakSell, Min: 20},
			},
			Microstructure: MicrostructureConfig{
				BuySellWeight: 10,
				DOMWeight:     10,
				MaxAge:        2 * time.Minute,
			},
		},
		Confidence: ConfidenceConfig{
			ChopPenalty:        5,
			VolMediumThreshold: 4,
			VolHighThreshold:   6,
			VolPenaltyMedium:   3,
			VolPenaltyHigh:     6,
			PerConflictPenalty: 4,
		},
		Gate: GateConfig{
			Enabled:               true,
			DeadZoneMin:           20,
			ThresholdScore:        50,
			SurchargeMediumATR:    4,
			SurchargeHighATR:      6,
			SurchargeMedium:       10,
			SurchargeHigh:         20,
			RequireThresholdCross: false,
			MinConfidence:         50,
			MinIndicators:         3,
			MinConfluence:         0.6,
			RequireTrendAlignment: true,
			MaxDrawdownPct:        25,
		},
		Risk: RiskConfig{
			InitialBalance:         1000,
			PositionSizePct:        2,
			Leverage:               50,
			StopLossROI:            10,
			TakeProfitROI:          30,
			BreakEvenEnabled:       true,
			BreakEvenActivationROI: 8,
			BreakEvenBufferROI:     1,
			TrailingEnabled:        true,
			TrailingActivationROI:  12,
			TrailingDistanceROI:    5,
			TrailingStepROI:        1,
			EntryFee:               0.0006,
			ExitFee:                0.0006,
			SlippagePct:            0.02,
			SafetyBufferROI:        0.5,
		},
		Backtest: BacktestConfig{
			PeriodsPerYear: 365 * 24 * 4,
			CandleLimit:    1000,
		},
		Storage: StorageConfig{Driver: "sqlite", DSN: "signals.db"},
		Exchange: ExchangeConfig{
			RESTEndpoint: "https://api.bybit.com",
			WSEndpoint:   "wss://stream.bybit.com/v5/public/linear",
		},
		Server: ServerConfig{Port: 8080},
	}
}
