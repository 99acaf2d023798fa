package config

import (
	"os"
	"path/filepath"
)

const (
	// DefaultFrontendURL is where a local Fred frontend serves config.json
	DefaultFrontendURL = "http://localhost:5173"
	// DefaultTab is the tab name used when none is given
	DefaultTab = "main"

	appDirName      = "fred-chat"
	stateFileName   = "state.db"
	historyFileName = "history"
	defaultLogName  = "fred-chat.log"
)

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	// Try current directory first
	cwd, err := os.Getwd()
	if err == nil {
		return filepath.Join(cwd, DefaultConfigFileName)
	}

	return DefaultConfigFileName
}

// GetUserConfigDir returns the user's config directory for fred-chat
func GetUserConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".config", appDirName), nil
}

// GetDataDir returns the data directory for fred-chat
func GetDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".local", "share", appDirName), nil
}

// EnsureDirectories creates all necessary directories
func EnsureDirectories() error {
	dirs := []func() (string, error){
		GetUserConfigDir,
		GetDataDir,
	}

	for _, dirFunc := range dirs {
		dir, err := dirFunc()
		if err != nil {
			continue // Skip if we can't get the directory path
		}

		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// dataFile resolves name inside the data directory, falling back to cwd
func dataFile(name string) string {
	dir, err := GetDataDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, name)
}

// GetStatePath returns the bbolt state file, configured or default
func (s *Settings) GetStatePath() string {
	if s.StatePath != "" {
		return s.StatePath
	}
	return dataFile(stateFileName)
}

// GetHistoryFile returns the shell history file, configured or default
func (s *Settings) GetHistoryFile() string {
	if s.HistoryFile != "" {
		return s.HistoryFile
	}
	return dataFile(historyFileName)
}

// GetLogFile returns the log file path, configured or default
func (l *LoggerConfig) GetLogFile() string {
	if l.FilePath != "" {
		return l.FilePath
	}
	return dataFile(defaultLogName)
}
