package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret reads a secret using the *_FILE convention: when
// envName+"_FILE" names a file, its trimmed content wins over envName
// itself. Neither being set yields "".
func ResolveSecret(envName string) (string, error) {
	return resolveSecret(os.Getenv, os.ReadFile, envName)
}

func resolveSecret(getenv func(string) string, readFile func(string) ([]byte, error), envName string) (string, error) {
	fileEnv := envName + "_FILE"
	path := getenv(fileEnv)
	if path == "" {
		return getenv(envName), nil
	}
	content, err := readFile(path)
	if err != nil {
		// Only the path is reported, never content.
		return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, path, err)
	}
	return strings.TrimSpace(string(content)), nil
}
