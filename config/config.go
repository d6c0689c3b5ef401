package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            int
	DataDir         string
	WorkDir         string
	QueueCapacity   int
	MaxUploadSizeMB int
	RegistryBackend string
	Debug           bool

	FFmpegPath           string
	FFprobePath          string
	EncoderCRF           int
	EncoderPreset        string
	ProgressPollInterval time.Duration

	EnhancerPath     string
	EnhancerModel    string
	EnhancerScale    int
	Accelerator      string
	AcceleratorProbe string
}

var registryBackends = map[string]bool{"memory": true, "json": true, "sqlite": true}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 7890)
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("WORK_DIR", "")
	v.SetDefault("QUEUE_CAPACITY", 10)
	v.SetDefault("MAX_UPLOAD_SIZE_MB", 500)
	v.SetDefault("REGISTRY_BACKEND", "memory")
	v.SetDefault("DEBUG", false)
	v.SetDefault("FFMPEG_PATH", "ffmpeg")
	v.SetDefault("FFPROBE_PATH", "ffprobe")
	v.SetDefault("ENCODER_CRF", 18)
	v.SetDefault("ENCODER_PRESET", "medium")
	v.SetDefault("PROGRESS_POLL_INTERVAL", "1s")
	v.SetDefault("ENHANCER_PATH", "realesrgan-ncnn-vulkan")
	v.SetDefault("ENHANCER_MODEL", "realesr-animevideov3")
	v.SetDefault("ENHANCER_SCALE", 2)
	v.SetDefault("ACCELERATOR", "auto")
	v.SetDefault("ACCELERATOR_PROBE", "nvidia-smi -L")
}

// Load reads upscaler.yaml from . or ./config when present, then lets
// environment variables override it.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("upscaler")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DataDir:          v.GetString("DATA_DIR"),
		WorkDir:          v.GetString("WORK_DIR"),
		RegistryBackend:  strings.ToLower(strings.TrimSpace(v.GetString("REGISTRY_BACKEND"))),
		FFmpegPath:       v.GetString("FFMPEG_PATH"),
		FFprobePath:      v.GetString("FFPROBE_PATH"),
		EncoderPreset:    v.GetString("ENCODER_PRESET"),
		EnhancerPath:     v.GetString("ENHANCER_PATH"),
		EnhancerModel:    v.GetString("ENHANCER_MODEL"),
		Accelerator:      strings.ToLower(strings.TrimSpace(v.GetString("ACCELERATOR"))),
		AcceleratorProbe: v.GetString("ACCELERATOR_PROBE"),
	}

	var err error
	ints := []struct {
		key string
		dst *int
		min int
	}{
		{"PORT", &cfg.Port, 1},
		{"QUEUE_CAPACITY", &cfg.QueueCapacity, 1},
		{"MAX_UPLOAD_SIZE_MB", &cfg.MaxUploadSizeMB, 1},
		{"ENCODER_CRF", &cfg.EncoderCRF, 0},
		{"ENHANCER_SCALE", &cfg.EnhancerScale, 1},
	}
	for _, f := range ints {
		if *f.dst, err = getInt(v, f.key); err != nil {
			return nil, err
		}
		if *f.dst < f.min {
			return nil, fmt.Errorf("invalid %s: must be at least %d", f.key, f.min)
		}
	}
	if cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d", cfg.Port)
	}
	if cfg.EncoderCRF > 51 {
		return nil, fmt.Errorf("invalid ENCODER_CRF: %d", cfg.EncoderCRF)
	}

	if cfg.Debug, err = getBool(v, "DEBUG"); err != nil {
		return nil, err
	}

	cfg.ProgressPollInterval, err = time.ParseDuration(v.GetString("PROGRESS_POLL_INTERVAL"))
	if err != nil || cfg.ProgressPollInterval <= 0 {
		return nil, fmt.Errorf("invalid PROGRESS_POLL_INTERVAL: %q", v.GetString("PROGRESS_POLL_INTERVAL"))
	}

	if !registryBackends[cfg.RegistryBackend] {
		return nil, fmt.Errorf("invalid REGISTRY_BACKEND: %q (want memory, json or sqlite)", cfg.RegistryBackend)
	}
	switch cfg.Accelerator {
	case "auto", "on", "off":
	default:
		return nil, fmt.Errorf("invalid ACCELERATOR: %q (want auto, on or off)", cfg.Accelerator)
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(cfg.DataDir, "work")
	}

	return cfg, nil
}

// getInt rejects values viper would silently turn into zero.
func getInt(v *viper.Viper, key string) (int, error) {
	switch raw := v.Get(key).(type) {
	case int:
		return raw, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %q", key, raw)
		}
		return n, nil
	default:
		return v.GetInt(key), nil
	}
}

func getBool(v *viper.Viper, key string) (bool, error) {
	switch raw := v.Get(key).(type) {
	case bool:
		return raw, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "1", "true", "yes", "on":
			return true, nil
		case "0", "false", "no", "off", "":
			return false, nil
		}
		return false, fmt.Errorf("invalid %s: %q", key, raw)
	default:
		return v.GetBool(key), nil
	}
}
