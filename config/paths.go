// Package config loads unistack configuration from defaults, the user config
// file, the environment's unistack.yaml and UNISTACK_* variables.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AppName is the directory name under the user config home.
const AppName = "unistack"

// ConfigFileName is the user configuration file name, without extension.
const ConfigFileName = "config"

// ProjectConfigFileName is the environment configuration file name, without
// extension.
const ProjectConfigFileName = "unistack"

// UserConfigHome is $XDG_CONFIG_HOME when set. Otherwise it is ~/.config,
// except on windows where the roaming app data directory is used.
func UserConfigHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	if runtime.GOOS == "windows" {
		if dir, err := os.UserConfigDir(); err == nil {
			return dir
		}
	}
	return filepath.Join(homeDir(), ".config")
}

// UserConfigDir is the unistack directory under UserConfigHome.
func UserConfigDir() string {
	return filepath.Join(UserConfigHome(), AppName)
}

// UserConfigPath is the user configuration file.
func UserConfigPath() string {
	return filepath.Join(UserConfigDir(), ConfigFileName+".yaml")
}

// ProjectConfigPath is the environment configuration file inside dir.
func ProjectConfigPath(dir string) string {
	return filepath.Join(dir, ProjectConfigFileName+".yaml")
}

// ExpandHome replaces a leading "~/" with the home directory.
func ExpandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(homeDir(), rest)
	}
	return path
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
