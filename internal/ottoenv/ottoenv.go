// Package ottoenv resolves the small slice of ambient configuration the
// core itself owns: the environment-variable overrides named in the
// spec's external-interfaces section. Everything else (the Otto file
// format, CLI flags, secrets) belongs to the config layer, not here.
package ottoenv

import (
	"os"
	"path/filepath"
)

// DBPath returns the state store's database path: $OTTO_DB_PATH if set,
// else $HOME/.otto/otto.db.
func DBPath() (string, error) {
	if p := os.Getenv("OTTO_DB_PATH"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".otto", "otto.db"), nil
}

// WorkspaceRoot returns the workspace root: $OTTO_HOME if set, else the
// current working directory.
func WorkspaceRoot() (string, error) {
	if p := os.Getenv("OTTO_HOME"); p != "" {
		return p, nil
	}
	return os.Getwd()
}

// User returns the invoking user, preferring $USER then $USERNAME
// (Windows), matching the spec's metadata-capture variables.
func User() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
}

// Hostname returns the machine hostname, or "" if it cannot be determined.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}
