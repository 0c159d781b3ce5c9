// Package credentials locates and parses the broker credentials file.
//
// The file is JSON with the keys EVENTSHUB_ACCOUNT_NAME, EVENTSHUB_NAME and
// EVENTSHUB_CONNECTION_STRING. Environment variables with the same names take
// precedence over the file.
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

const (
	// FileName is the credentials file looked up when no explicit path is given.
	FileName = "credentials.json"
	// DefaultSearchRoot is walked recursively when the file is not in the working directory.
	DefaultSearchRoot = ".."

	keyAccountName      = "EVENTSHUB_ACCOUNT_NAME"
	keyHubName          = "EVENTSHUB_NAME"
	keyConnectionString = "EVENTSHUB_CONNECTION_STRING"
)

var (
	// ErrConfigNotFound is returned when no credentials file can be located or read.
	ErrConfigNotFound = errors.New("credentials file not found")

	// ErrInvalidCredentials is returned when the file lacks a required key.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Credentials holds the broker connection settings. It is read-only once loaded.
type Credentials struct {
	accountName      string
	hubName          string
	connectionString string
	source           string
}

func (c Credentials) AccountName() string {
	return c.accountName
}

func (c Credentials) HubName() string {
	return c.hubName
}

func (c Credentials) ConnectionString() string {
	return c.connectionString
}

// Source is the path the credentials were read from.
func (c Credentials) Source() string {
	return c.source
}

// Load finds and parses the credentials file. path is used when set; otherwise
// FileName is looked up in the working directory and then under searchRoot.
func Load(path, searchRoot string) (Credentials, error) {
	found, err := Find(path, searchRoot)
	if err != nil {
		return Credentials{}, err
	}

	return Parse(found)
}

// Find resolves the credentials file path without reading it.
func Find(path, searchRoot string) (string, error) {
	if path != "" {
		if isFile(path) {
			return path, nil
		}
		return "", fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	if isFile(FileName) {
		return FileName, nil
	}

	if searchRoot == "" {
		searchRoot = DefaultSearchRoot
	}

	found, err := search(searchRoot, FileName)
	if err != nil {
		return "", err
	}

	return found, nil
}

// Parse reads the credentials file at path.
func Parse(path string) (Credentials, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return Credentials{}, fmt.Errorf("%w: %s: %v", ErrConfigNotFound, path, err)
		}
		return Credentials{}, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}

	c := Credentials{
		accountName:      v.GetString(keyAccountName),
		hubName:          v.GetString(keyHubName),
		connectionString: v.GetString(keyConnectionString),
		source:           path,
	}

	var missing []string
	for key, val := range map[string]string{
		keyAccountName:      c.accountName,
		keyHubName:          c.hubName,
		keyConnectionString: c.connectionString,
	} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("%w: %s missing %s", ErrInvalidCredentials, path, strings.Join(slices.Sorted(slices.Values(missing)), ", "))
	}

	return c, nil
}

// search walks root in lexical order and returns the first file called name.
func search(root, name string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable directories are skipped, not fatal
			if d != nil && d.IsDir() && p != root {
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() && d.Name() == name {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: searching %s: %v", ErrConfigNotFound, root, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: no %s under %s", ErrConfigNotFound, name, root)
	}

	return found, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
