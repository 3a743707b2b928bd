package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PageLimit bounds a page size for one kind of listing.
type PageLimit struct {
	Default int `mapstructure:"default"`
	Max     int `mapstructure:"max"`
}

// Clamp resolves a requested page size against the limit. Zero selects the default.
func (l PageLimit) Clamp(requested int) (int, bool) {
	if requested == 0 {
		return l.Default, true
	}
	if requested < 1 || requested > l.Max {
		return 0, false
	}
	return requested, true
}

// ReportConfig holds the tunable read-side limits of the report API.
type ReportConfig struct {
	Data      PageLimit `mapstructure:"data"`
	Search    PageLimit `mapstructure:"search"`
	List      PageLimit `mapstructure:"list"`
	Available PageLimit `mapstructure:"available"`
	TopTracks PageLimit `mapstructure:"topTracks"`
}

func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		Data:      PageLimit{Default: 100, Max: 1000},
		Search:    PageLimit{Default: 50, Max: 500},
		List:      PageLimit{Default: 10, Max: 100},
		Available: PageLimit{Default: 10, Max: 50},
		TopTracks: PageLimit{Default: 10, Max: 100},
	}
}

type ReportConfigHolder struct {
	current atomic.Value // holds ReportConfig
}

// NewStaticReportConfigHolder wraps a fixed config, mostly for tests.
func NewStaticReportConfigHolder(cfg ReportConfig) *ReportConfigHolder {
	holder := &ReportConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReportConfigHolder() (*ReportConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("tunedesk")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/tunedesk/config")
	v.AddConfigPath("/etc/tunedesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TUNEDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReportConfig()
	for key, limit := range map[string]PageLimit{
		"data":      defaults.Data,
		"search":    defaults.Search,
		"list":      defaults.List,
		"available": defaults.Available,
		"topTracks": defaults.TopTracks,
	} {
		v.SetDefault("reports."+key+".default", limit.Default)
		v.SetDefault("reports."+key+".max", limit.Max)
	}

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg ReportConfig
	if err := v.UnmarshalKey("reports", &cfg); err != nil {
		return nil, err
	}
	if err := validateReportConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticReportConfigHolder(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated ReportConfig
			if err := v.UnmarshalKey("reports", &updated); err != nil {
				log.Printf("[report-config] reload failed: %v", err)
				return
			}
			if err := validateReportConfig(updated); err != nil {
				log.Printf("[report-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[report-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *ReportConfigHolder) Get() ReportConfig {
	return h.current.Load().(ReportConfig)
}

func validateReportConfig(cfg ReportConfig) error {
	for name, limit := range map[string]PageLimit{
		"data":      cfg.Data,
		"search":    cfg.Search,
		"list":      cfg.List,
		"available": cfg.Available,
		"topTracks": cfg.TopTracks,
	} {
		if limit.Default < 1 || limit.Max < limit.Default {
			return errors.New("reports." + name + " must satisfy 1 <= default <= max")
		}
	}
	return nil
}
