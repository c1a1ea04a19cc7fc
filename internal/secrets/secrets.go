// Package secrets resolves credentials from environment variables and
// file-based secrets (Docker/Kubernetes mounted secrets).
//
// Security design:
//   - Never logs secret values
//   - Supports multiple secret sources for flexibility
//   - Clear error messages without exposing secrets
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// maxSecretFileSize limits secret file reads, secrets are small
	// (tokens, passwords), not large files
	maxSecretFileSize = 64 * 1024 // 64 KB
)

// ExpandString resolves a string that may contain environment variable references.
// Supports syntax: ${VAR} or ${VAR:-default}
//
// Examples:
//   - "literal" -> "literal"
//   - "${TOKEN}" -> value of TOKEN env var
//   - "${TOKEN:-default}" -> value of TOKEN or "default" if not set
//
// Returns the expanded string or an error if required variables are missing.
func ExpandString(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missingVars []string

	expanded := os.Expand(s, func(key string) string {
		varName := key
		defaultValue := ""
		fallbackProvided := false

		// ${VAR:-default} syntax, fallback may be empty
		if idx := strings.Index(key, ":-"); idx != -1 {
			varName = key[:idx]
			defaultValue = key[idx+2:]
			fallbackProvided = true
		}

		value := os.Getenv(varName)
		if value == "" {
			if fallbackProvided {
				return defaultValue
			}
			missingVars = append(missingVars, varName)
			return ""
		}
		return value
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variable(s): %s", strings.Join(missingVars, ", "))
	}

	return expanded, nil
}

// ReadFile reads a secret from a file path. Commonly used for Docker secrets
// (/run/secrets/*) or Kubernetes mounted secrets. Trailing whitespace is
// trimmed since mounted secrets often carry a trailing newline.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("secret file path is empty")
	}

	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret file not found: %s", cleanPath)
		}
		return "", fmt.Errorf("failed to stat secret file %s: %w", cleanPath, err)
	}

	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", cleanPath)
	}

	if info.Size() > maxSecretFileSize {
		return "", fmt.Errorf("secret file too large (max %d bytes): %s", maxSecretFileSize, cleanPath)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", cleanPath, err)
	}

	return strings.TrimSpace(string(data)), nil
}

// Resolve returns the secret from filePath when set, otherwise expands value.
// File-based secrets take precedence so container deployments can override
// inline configuration without editing it.
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	return ExpandString(value)
}
