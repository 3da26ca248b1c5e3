package dispatch

import (
	"fmt"
	"os"
	"time"

	promodel "github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"

	"github.com/craftport/opsmon/internal/monitoring/model"
)

// ChannelConfigProvider yields the current alert channel list. It is
// consulted on every dispatch, not cached, so configuration edits take
// effect without a restart.
type ChannelConfigProvider interface {
	Channels() ([]model.AlertChannel, error)
}

// StaticProvider returns a fixed channel list. Used in tests and for
// deployments that wire channels programmatically.
type StaticProvider []model.AlertChannel

func (p StaticProvider) Channels() ([]model.AlertChannel, error) {
	return []model.AlertChannel(p), nil
}

type channelsFile struct {
	SendTimeout promodel.Duration    `yaml:"sendTimeout"`
	Channels    []model.AlertChannel `yaml:"channels"`
}

// FileProvider reads channels from a YAML file on every call. Config values
// may reference environment variables (${SLACK_WEBHOOK_URL}) so secrets stay
// out of the file; expansion happens at read time.
type FileProvider struct {
	Path string
}

func NewFileProvider(path string) *FileProvider { return &FileProvider{Path: path} }

func (p *FileProvider) Channels() ([]model.AlertChannel, error) {
	cfg, err := p.load()
	if err != nil {
		return nil, err
	}
	return cfg.Channels, nil
}

// SendTimeout returns the per-channel send timeout from the file, or the
// fallback when unset.
func (p *FileProvider) SendTimeout(fallback time.Duration) time.Duration {
	cfg, err := p.load()
	if err != nil || cfg.SendTimeout == 0 {
		return fallback
	}
	return time.Duration(cfg.SendTimeout)
}

func (p *FileProvider) load() (*channelsFile, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read channels config %s: %w", p.Path, err)
	}
	var cfg channelsFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse channels config %s: %w", p.Path, err)
	}
	for i := range cfg.Channels {
		for k, v := range cfg.Channels[i].Config {
			cfg.Channels[i].Config[k] = os.ExpandEnv(v)
		}
	}
	return &cfg, nil
}
