// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort        string
	CORSAllowedOrigin string
	LogLevel          string

	// Analysis
	AnalysisTimeout       time.Duration
	AnalysisLatency       time.Duration
	UploadTick            time.Duration
	PipelineMaxConcurrent int
	RandomSeed            uint64 // 0の場合は起動時刻から決定する

	// Job table
	JobRetention    time.Duration
	JobReapInterval time.Duration

	// Rate Limit
	RateLimitGeneral     int
	RateLimitSubmissions int

	// Enrichment
	MetadataFetchEnabled  bool
	MetadataFetchTimeout  time.Duration
	MetadataFetchMaxSize  int64
	ShareCountEnabled     bool
	ShareCountAPIInterval time.Duration

	// Relay
	NATSURL     string
	NATSSubject string
}

// Load は環境変数からConfigを読み込む。
// 全ての環境変数は任意で、未設定やパース不能な値はデフォルト値になる。
// 解析タイムアウト・アップロード間隔が正でない場合と、乱数シードが符号なし整数でない場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	cfg.AnalysisTimeout = getEnvDuration("ANALYSIS_TIMEOUT", 30*time.Second)
	cfg.AnalysisLatency = getEnvDuration("ANALYSIS_LATENCY", 3*time.Second)
	cfg.UploadTick = getEnvDuration("UPLOAD_TICK", 100*time.Millisecond)
	cfg.PipelineMaxConcurrent = getEnvInt("PIPELINE_MAX_CONCURRENT", 32)

	seed, err := getEnvUint64("RANDOM_SEED", 0)
	if err != nil {
		return nil, err
	}
	cfg.RandomSeed = seed

	cfg.JobRetention = getEnvDuration("JOB_RETENTION", time.Hour)
	cfg.JobReapInterval = getEnvDuration("JOB_REAP_INTERVAL", 5*time.Minute)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSubmissions = getEnvInt("RATE_LIMIT_SUBMISSIONS", 30)

	cfg.MetadataFetchEnabled = getEnvBool("METADATA_FETCH_ENABLED", false)
	cfg.MetadataFetchTimeout = getEnvDuration("METADATA_FETCH_TIMEOUT", 5*time.Second)
	cfg.MetadataFetchMaxSize = getEnvInt64("METADATA_FETCH_MAX_SIZE", 1048576)
	cfg.ShareCountEnabled = getEnvBool("SHARE_COUNT_ENABLED", false)
	cfg.ShareCountAPIInterval = getEnvDuration("SHARE_COUNT_API_INTERVAL", 5*time.Second)

	cfg.NATSURL = getEnvString("NATS_URL", "")
	cfg.NATSSubject = getEnvString("NATS_SUBJECT", "truthlens.jobs")

	var invalid []string
	if cfg.AnalysisTimeout <= 0 {
		invalid = append(invalid, "ANALYSIS_TIMEOUT")
	}
	if cfg.UploadTick <= 0 {
		invalid = append(invalid, "UPLOAD_TICK")
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("environment variables must be positive durations: %v", invalid)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvUint64(key string, defaultVal uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	u, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an unsigned integer: %w", key, err)
	}
	return u, nil
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
