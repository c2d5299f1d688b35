package config

import (
	"runtime"
)

// PlatformDefaults returns platform-specific default values
type PlatformDefaults struct {
	ConfigPath  string
	ReportPath  string
	ServiceLog  string
	ServiceData string
}

// GetPlatformDefaults returns platform-specific defaults based on runtime.GOOS
func GetPlatformDefaults() PlatformDefaults {
	return platformDefaults(runtime.GOOS)
}

func platformDefaults(goos string) PlatformDefaults {
	switch goos {
	case "windows":
		return PlatformDefaults{
			ConfigPath:  `C:\ProgramData\Sysinfo\config.yaml`,
			ReportPath:  "system_info.json",
			ServiceLog:  `C:\ProgramData\Sysinfo\sysinfo.log`,
			ServiceData: `C:\ProgramData\Sysinfo\system_info.json`,
		}
	case "darwin":
		return PlatformDefaults{
			ConfigPath:  "/usr/local/etc/sysinfo/config.yaml",
			ReportPath:  "system_info.json",
			ServiceLog:  "/usr/local/var/log/sysinfo.log",
			ServiceData: "/usr/local/var/sysinfo/system_info.json",
		}
	case "freebsd":
		return PlatformDefaults{
			ConfigPath:  "/usr/local/etc/sysinfo/config.yaml",
			ReportPath:  "system_info.json",
			ServiceLog:  "/var/log/sysinfo/sysinfo.log",
			ServiceData: "/var/db/sysinfo/system_info.json",
		}
	default:
		// Linux and anything unknown
		return PlatformDefaults{
			ConfigPath:  "/etc/sysinfo/config.yaml",
			ReportPath:  "system_info.json",
			ServiceLog:  "/var/log/sysinfo/sysinfo.log",
			ServiceData: "/var/lib/sysinfo/system_info.json",
		}
	}
}

// GetDefaultConfigPath returns the platform-specific default config path
func GetDefaultConfigPath() string {
	return GetPlatformDefaults().ConfigPath
}

// UpdateConfigDefaults updates viper defaults with platform-specific values
// This should be called from setDefaults() in config.go
func UpdateConfigDefaults(v interface{}) {
	type viper interface {
		SetDefault(key string, value interface{})
	}

	if viperInstance, ok := v.(viper); ok {
		defaults := GetPlatformDefaults()
		viperInstance.SetDefault("output.report_path", defaults.ReportPath)
	}
}

// ServiceOverrides adjusts a loaded config for unattended service runs:
// relative report paths and console-only logging are redirected to the
// platform data and log locations.
func ServiceOverrides(cfg *Config) {
	defaults := GetPlatformDefaults()
	if cfg.Output.ReportPath == defaults.ReportPath {
		cfg.Output.ReportPath = defaults.ServiceData
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = defaults.ServiceLog
	}
}
