package consts

import (
	"os"
	"path/filepath"
)

const (
	AppDirName     = ".routineflow"
	ConfigFileName = "config.yaml"

	// RoutinesFileName is the fixed blob-store key under which the full
	// routine collection is persisted.
	RoutinesFileName = "routines.json"
)

func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, AppDirName)
}

func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), ConfigFileName)
}

func DefaultRoutinesPath() string {
	return filepath.Join(HomeDir(), RoutinesFileName)
}
