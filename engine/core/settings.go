package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type PresentMode int

const (
	PresentModeFIFO PresentMode = iota
	PresentModeMailbox
	PresentModeImmediate
	PresentModeBestAvailable
)

var presentModeNames = map[string]PresentMode{
	"FIFO":          PresentModeFIFO,
	"Mailbox":       PresentModeMailbox,
	"Immediate":     PresentModeImmediate,
	"BestAvailable": PresentModeBestAvailable,
}

func (p PresentMode) String() string {
	for k, v := range presentModeNames {
		if v == p {
			return k
		}
	}
	return "Unknown"
}

func (p *PresentMode) UnmarshalText(b []byte) error {
	v, ok := presentModeNames[string(b)]
	if !ok {
		return fmt.Errorf("unknown present mode %q", string(b))
	}
	*p = v
	return nil
}

func (p PresentMode) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// BestIndex means "let the device layer pick" for GPU and MSAA selection.
const BestIndex = -1

type BackendType string

const (
	BackendVulkan   BackendType = "vulkan"
	BackendHeadless BackendType = "headless"
)

/** @brief Engine wide settings, loaded from a *.engine file. */
type EngineSettings struct {
	ApplicationName     string
	UseValidation       bool
	PresentMode         PresentMode
	GPUIndex            int
	MSAALevel           int
	InitShadows         bool
	InitWater           bool
	UseScreenQuad       bool
	UseCascadeShadowMap bool
	ParticlesEnabled    bool

	Backend       BackendType
	LogLevel      string
	Width         uint32
	Height        uint32
	SwapchainSize uint32
}

func DefaultEngineSettings() EngineSettings {
	return EngineSettings{
		ApplicationName:  "Chewman",
		UseValidation:    false,
		PresentMode:      PresentModeBestAvailable,
		GPUIndex:         BestIndex,
		MSAALevel:        BestIndex,
		InitShadows:      true,
		InitWater:        true,
		UseScreenQuad:    false,
		ParticlesEnabled: true,
		Backend:          BackendVulkan,
		LogLevel:         "info",
		Width:            1280,
		Height:           720,
		SwapchainSize:    3,
	}
}

// engineSettingsFile mirrors the on-disk layout. gpuIndex and MSAALevel hold
// either the string "best" or an integer.
type engineSettingsFile struct {
	ApplicationName     *string      `toml:"applicationName"`
	UseValidation       *bool        `toml:"useValidation"`
	PresentMode         *PresentMode `toml:"presentMode"`
	GPUIndex            interface{}  `toml:"gpuIndex"`
	MSAALevel           interface{}  `toml:"MSAALevel"`
	InitShadows         *bool        `toml:"initShadows"`
	InitWater           *bool        `toml:"initWater"`
	UseScreenQuad       *bool        `toml:"useScreenQuad"`
	UseCascadeShadowMap *bool        `toml:"useCascadeShadowMap"`
	ParticlesEnabled    *bool        `toml:"particlesEnabled"`
	Backend             *string      `toml:"backend"`
	LogLevel            *string      `toml:"logLevel"`
	Width               *uint32      `toml:"width"`
	Height              *uint32      `toml:"height"`
	SwapchainSize       *uint32      `toml:"swapchainSize"`
}

// ParseEngineSettings decodes TOML over the defaults. Missing keys keep
// their default value.
func ParseEngineSettings(data []byte) (EngineSettings, error) {
	s := DefaultEngineSettings()
	var f engineSettingsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return s, err
	}

	setIf(&s.ApplicationName, f.ApplicationName)
	setIf(&s.UseValidation, f.UseValidation)
	setIf(&s.PresentMode, f.PresentMode)
	setIf(&s.InitShadows, f.InitShadows)
	setIf(&s.InitWater, f.InitWater)
	setIf(&s.UseScreenQuad, f.UseScreenQuad)
	setIf(&s.UseCascadeShadowMap, f.UseCascadeShadowMap)
	setIf(&s.ParticlesEnabled, f.ParticlesEnabled)
	setIf(&s.LogLevel, f.LogLevel)
	setIf(&s.Width, f.Width)
	setIf(&s.Height, f.Height)
	setIf(&s.SwapchainSize, f.SwapchainSize)

	if f.Backend != nil {
		switch b := BackendType(strings.ToLower(*f.Backend)); b {
		case BackendVulkan, BackendHeadless:
			s.Backend = b
		default:
			return s, fmt.Errorf("unknown backend %q", *f.Backend)
		}
	}

	var err error
	if s.GPUIndex, err = parseBestOrIndex("gpuIndex", f.GPUIndex, s.GPUIndex); err != nil {
		return s, err
	}
	if s.MSAALevel, err = parseBestOrIndex("MSAALevel", f.MSAALevel, s.MSAALevel); err != nil {
		return s, err
	}
	if s.SwapchainSize < 2 {
		return s, fmt.Errorf("swapchainSize must be at least 2, got %d", s.SwapchainSize)
	}
	return s, nil
}

func parseBestOrIndex(key string, v interface{}, def int) (int, error) {
	switch t := v.(type) {
	case nil:
		return def, nil
	case int64:
		return int(t), nil
	case string:
		if strings.EqualFold(t, "best") {
			return BestIndex, nil
		}
		i, err := strconv.Atoi(t)
		if err != nil {
			return def, fmt.Errorf("%s: expected \"best\" or an integer, got %q", key, t)
		}
		return i, nil
	default:
		return def, fmt.Errorf("%s: unsupported value %v", key, v)
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
