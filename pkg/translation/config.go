package translation

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// StringArrayMode selects how the default translator lays out arrays of
// variable-length strings in a binary image
type StringArrayMode uint8

const (
	// Treat every element as having the length of element 0
	AssumeEqualSize StringArrayMode = iota
	// Verify all elements have equal length, fail otherwise
	RequireEqualSize
	// Sum the actual element lengths
	AllowVariableSize
)

var stringArrayModeNames = map[string]StringArrayMode{
	"AssumeEqualSize":   AssumeEqualSize,
	"RequireEqualSize":  RequireEqualSize,
	"AllowVariableSize": AllowVariableSize,
}

func (m StringArrayMode) String() string {
	for name, mode := range stringArrayModeNames {
		if mode == m {
			return name
		}
	}
	return "Unknown"
}

// Config carries the runtime knobs of the translation layer. It is read
// once at start and shared read-only afterwards.
type Config struct {
	// Enable the bit-offset-aware codec call shapes
	BitAlignedSupport bool
	// With bit alignment unsupported by a codec, fail on misaligned
	// accesses instead of silently calling the byte-only form
	StrictBitAlignment bool
	// Accept binary buffers larger than strictly necessary
	AllowPartialTranslation bool
	// Check buffer sizes before invoking a codec
	EnableVerification bool
	// Report violations through returned errors
	EnableErrorReturn bool
	// Report violations through the boolean call facade
	EnableBooleanReturn bool
	// Layout mode for arrays of variable-length strings
	StringArrayMode StringArrayMode
}

// DefaultConfig returns the stock configuration
func DefaultConfig() *Config {
	return &Config{
		BitAlignedSupport:       true,
		AllowPartialTranslation: true,
		EnableVerification:      true,
		EnableErrorReturn:       true,
		StringArrayMode:         AssumeEqualSize,
	}
}

// LoadConfig reads a configuration from an INI file. Missing keys keep
// their default value.
//
//	[Translation]
//	BitAlignedSupport = true
//	StrictBitAlignment = false
//	AllowPartialTranslation = true
//	EnableVerification = true
//	EnableErrorReturn = true
//	EnableBooleanReturn = false
//
//	[DefaultTranslator.String]
//	ArrayParsingMode = AssumeEqualSize
func LoadConfig(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load translation config %v : %w", path, err)
	}
	cfg := DefaultConfig()
	section := file.Section("Translation")
	boolKey := func(name string, into *bool) error {
		if !section.HasKey(name) {
			return nil
		}
		value, err := section.Key(name).Bool()
		if err != nil {
			return fmt.Errorf("bad boolean for %v : %w", name, err)
		}
		*into = value
		return nil
	}
	for name, into := range map[string]*bool{
		"BitAlignedSupport":       &cfg.BitAlignedSupport,
		"StrictBitAlignment":      &cfg.StrictBitAlignment,
		"AllowPartialTranslation": &cfg.AllowPartialTranslation,
		"EnableVerification":      &cfg.EnableVerification,
		"EnableErrorReturn":       &cfg.EnableErrorReturn,
		"EnableBooleanReturn":     &cfg.EnableBooleanReturn,
	} {
		if err := boolKey(name, into); err != nil {
			return nil, err
		}
	}
	strSection := file.Section("DefaultTranslator.String")
	if strSection.HasKey("ArrayParsingMode") {
		raw := strings.TrimSpace(strSection.Key("ArrayParsingMode").String())
		mode, ok := stringArrayModeNames[raw]
		if !ok {
			return nil, fmt.Errorf("unknown ArrayParsingMode : %v", raw)
		}
		cfg.StringArrayMode = mode
	}
	return cfg, nil
}
