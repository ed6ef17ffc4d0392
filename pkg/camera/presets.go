package camera

// Preset names for common resolutions
const (
	PresetDefault = "default"
	PresetVGA     = "vga"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
	PresetNative  = "native"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetVGA:     withSize(640, 480),
		Preset720p:    withSize(1280, 720),
		Preset1080p:   withSize(1920, 1080),
		PresetNative:  withSize(0, 0),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetVGA,
		Preset720p,
		Preset1080p,
		PresetNative,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// withSize returns the default config at the given resolution.
// 0x0 leaves the resolution to the driver.
func withSize(width, height int) Config {
	cfg := DefaultConfig()
	cfg.Width = width
	cfg.Height = height
	return cfg
}
