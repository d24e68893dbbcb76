package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	MinIO struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"minio"`
	Services struct {
		AnalysisAPI    string `yaml:"analysis_api"`
		VoiceAPI       string `yaml:"voice_api"`
		VideoAPI       string `yaml:"video_api"`
		AudioAPI       string `yaml:"audio_api"`
		EnhanceAPI     string `yaml:"enhance_api"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"services"`
	Pipeline Pipeline `yaml:"pipeline"`
}

// Pipeline holds the retry/backoff ceilings and the per-stage progress
// checkpoints. The defaults were chosen empirically rather than derived
// from an SLA, so they are configuration, not contract.
type Pipeline struct {
	WorkDir        string `yaml:"work_dir"`
	Concurrency    int    `yaml:"concurrency"`
	StageAttempts  int    `yaml:"stage_attempts"`
	BackoffBaseMS  int    `yaml:"backoff_base_ms"`
	BackoffMaxMS   int    `yaml:"backoff_max_ms"`
	UploadAttempts int    `yaml:"upload_attempts"`

	Checkpoints struct {
		Analyze         int `yaml:"analyze"`
		AssignVoices    int `yaml:"assign_voices"`
		SynthesizeClips int `yaml:"synthesize_clips"`
		SynthesizeAudio int `yaml:"synthesize_audio"`
		Combine         int `yaml:"combine"`
		Enhance         int `yaml:"enhance"`
		FinalReview     int `yaml:"final_review"`
		Upload          int `yaml:"upload"`
		Finalize        int `yaml:"finalize"`
	} `yaml:"checkpoints"`
}

func (p Pipeline) BackoffBase() time.Duration {
	return time.Duration(p.BackoffBaseMS) * time.Millisecond
}

func (p Pipeline) BackoffMax() time.Duration {
	return time.Duration(p.BackoffMaxMS) * time.Millisecond
}

// Load reads the YAML config file and applies environment overrides for
// connection settings and credentials. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := &Config{}
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.MySQL.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Services.TimeoutSeconds <= 0 {
		c.Services.TimeoutSeconds = 120
	}

	p := &c.Pipeline
	if p.WorkDir == "" {
		p.WorkDir = os.TempDir()
	}
	if p.Concurrency <= 0 {
		p.Concurrency = 5
	}
	if p.StageAttempts <= 0 {
		p.StageAttempts = 3
	}
	if p.BackoffBaseMS <= 0 {
		p.BackoffBaseMS = 500
	}
	if p.BackoffMaxMS <= 0 {
		p.BackoffMaxMS = 8000
	}
	if p.UploadAttempts <= 0 {
		p.UploadAttempts = 3
	}

	cp := &p.Checkpoints
	if cp.Analyze <= 0 {
		cp.Analyze = 5
	}
	if cp.AssignVoices <= 0 {
		cp.AssignVoices = 15
	}
	if cp.SynthesizeClips <= 0 {
		cp.SynthesizeClips = 60
	}
	if cp.SynthesizeAudio <= 0 {
		cp.SynthesizeAudio = 70
	}
	if cp.Combine <= 0 {
		cp.Combine = 80
	}
	if cp.Enhance <= 0 {
		cp.Enhance = 90
	}
	if cp.FinalReview <= 0 {
		cp.FinalReview = 95
	}
	if cp.Upload <= 0 {
		cp.Upload = 98
	}
	if cp.Finalize <= 0 {
		cp.Finalize = 100
	}
}
