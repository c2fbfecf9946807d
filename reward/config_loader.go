package reward

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Defaults is the roulette tuning loadable from YAML. It seeds the
// persisted configuration on first run and supplies display fallbacks;
// the persisted config always wins once it exists.
type Defaults struct {
	// Odds maps tier name to a win probability in [0,1]
	Odds map[string]float64 `mapstructure:"odds"`

	// TierValues maps tier name to an indicative retail value, used in
	// the delivered-value summary
	TierValues map[string]float64 `mapstructure:"tier_values"`

	// FallbackPrizes overrides the built-in display metadata per tier
	FallbackPrizes map[string]PrizeInfo `mapstructure:"fallback_prizes"`
}

// TierOdds converts the loaded odds into resolver form, dropping unknown
// tier names and clamping negatives to zero
func (d *Defaults) TierOdds() map[Tier]float64 {
	odds := make(map[Tier]float64, len(PrizeTiers))
	for name, p := range d.Odds {
		tier, err := ParseTier(name)
		if err != nil {
			continue
		}
		if p < 0 {
			p = 0
		}
		odds[tier] = p
	}
	return odds
}

// FallbackPrizeInfo converts the loaded fallback prizes into tier-keyed
// form, dropping unknown tier names and empty entries
func (d *Defaults) FallbackPrizeInfo() map[Tier]PrizeInfo {
	info := make(map[Tier]PrizeInfo, len(d.FallbackPrizes))
	for name, p := range d.FallbackPrizes {
		tier, err := ParseTier(name)
		if err != nil {
			continue
		}
		if p.Title == "" && p.Description == "" {
			continue
		}
		info[tier] = p
	}
	return info
}

// LoadDefaults loads roulette defaults from a YAML file or a directory.
// If configPath is a directory, all YAML files in it are merged.
func LoadDefaults(configPath string) (*Defaults, error) {
	// Check if configPath is a directory or file
	info, err := os.Stat(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config path: %w", err)
	}
	if info.IsDir() {
		return LoadDefaultsFromDir(configPath)
	}

	var d Defaults
	if err := loadInto(configPath, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadDefaultsFromDir loads defaults from a directory, merging all YAML
// files in alphabetical order with later files overriding earlier ones
func LoadDefaultsFromDir(configDir string) (*Defaults, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	entries, err := os.ReadDir(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var yamlFiles []string
	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		if !entry.IsDir() && (strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			yamlFiles = append(yamlFiles, entry.Name())
		}
	}
	if len(yamlFiles) == 0 {
		return nil, fmt.Errorf("no YAML files found in config directory: %s", configDir)
	}

	for _, filename := range yamlFiles {
		v.SetConfigFile(filepath.Join(configDir, filename))
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to merge config from %s: %w", filename, err)
		}
	}

	var d Defaults
	if err := decode(v, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func loadInto(configPath string, out interface{}) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	return decode(v, out)
}

func decode(v *viper.Viper, out interface{}) error {
	if err := v.Unmarshal(out, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}
