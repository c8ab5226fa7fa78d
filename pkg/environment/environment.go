// Package environment loads process settings from the OS environment and
// optional dotenv files.
package environment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

const (
	// LocalConfigFileName is read from the working directory.
	LocalConfigFileName = ".env"

	// UserConfigFileName is read from the user's config directory.
	UserConfigFileName = "peerlink.env"

	appName = "peerlink"
)

// ByteSize is a size read from a human string such as "500MiB" or "10MB".
type ByteSize int64

// UnmarshalEnvironmentValue implements env.Unmarshaler.
func (b *ByteSize) UnmarshalEnvironmentValue(data string) error {
	n, err := humanize.ParseBytes(strings.TrimSpace(data))
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", data, err)
	}
	*b = ByteSize(n)
	return nil
}

// Int64 returns the size in bytes.
func (b ByteSize) Int64() int64 {
	return int64(b)
}

// Environment holds settings loaded from the OS or defaults.
type Environment struct {
	Host             string        `env:"HOST"`
	Port             int           `env:"PORT,default=8080"`
	UploadDir        string        `env:"UPLOAD_DIR"`
	FileTTL          time.Duration `env:"FILE_TTL,default=5m"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL,default=5m"`
	MaxRequestSize   ByteSize      `env:"MAX_REQUEST_SIZE,default=500MiB"`
	MaxFileSize      ByteSize      `env:"MAX_FILE_SIZE,default=0"`
	CORSAllowOrigins string        `env:"CORS_ALLOW_ORIGINS,default=*"`
	Debug            string        `env:"DEBUG,default=0"`

	// Dotenv files that were merged in, in load order
	ConfigFiles []string
}

// Load reads the environment. Values from environ win over ./.env, which
// wins over the user config file.
func Load(fs afero.Fs, pwd string, environ []string) (*Environment, error) {
	return load(fs, pwd, filepath.Join(xdg.ConfigHome, appName), environ)
}

func load(fs afero.Fs, pwd, configDir string, environ []string) (*Environment, error) {
	osSet, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return nil, err
	}

	merged := env.EnvSet{}
	files := findConfigFiles(fs, pwd, configDir)
	for i := len(files) - 1; i >= 0; i-- {
		values, err := readDotenv(fs, files[i])
		if err != nil {
			return nil, err
		}
		for k, v := range values {
			merged[k] = v
		}
	}
	for k, v := range osSet {
		merged[k] = v
	}

	e := &Environment{}
	if err := env.Unmarshal(merged, e); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	e.ConfigFiles = files

	if e.UploadDir == "" {
		e.UploadDir = filepath.Join(os.TempDir(), appName+"-uploads")
	}
	return e, nil
}

// checkConfig returns the dotenv file in baseDir if it exists.
func checkConfig(fs afero.Fs, baseDir, name string) (string, error) {
	if baseDir == "" {
		return "", nil
	}
	configFile := filepath.Join(baseDir, name)
	exists, err := afero.Exists(fs, configFile)
	if err == nil && exists {
		return configFile, nil
	}
	return "", err
}

// findConfigFiles lists the dotenv files to merge, highest priority first.
func findConfigFiles(fs afero.Fs, pwd, configDir string) []string {
	var files []string
	if f, _ := checkConfig(fs, pwd, LocalConfigFileName); f != "" {
		files = append(files, f)
	}
	if f, _ := checkConfig(fs, configDir, UserConfigFileName); f != "" {
		files = append(files, f)
	}
	return files
}

func readDotenv(fs afero.Fs, path string) (map[string]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	values, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return values, nil
}

// DebugEnabled reports whether DEBUG asks for verbose output.
func (e *Environment) DebugEnabled() bool {
	return e.Debug == "1" || strings.EqualFold(e.Debug, "true")
}

// AllowOrigins splits CORS_ALLOW_ORIGINS on commas.
func (e *Environment) AllowOrigins() []string {
	var origins []string
	for _, o := range strings.Split(e.CORSAllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Validate checks the loaded values for consistency.
func (e *Environment) Validate() error {
	var errs []error
	if e.Port < 1 || e.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", e.Port))
	}
	if e.UploadDir == "" {
		errs = append(errs, errors.New("UPLOAD_DIR must not be empty"))
	}
	if e.FileTTL <= 0 {
		errs = append(errs, fmt.Errorf("FILE_TTL must be positive, got %s", e.FileTTL))
	}
	if e.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", e.SweepInterval))
	}
	if e.MaxRequestSize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_SIZE must be positive"))
	}
	if e.MaxFileSize < 0 {
		errs = append(errs, errors.New("MAX_FILE_SIZE must not be negative"))
	}
	origins := e.AllowOrigins()
	if len(origins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOW_ORIGINS must name at least one origin"))
	}
	for _, o := range origins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			errs = append(errs, fmt.Errorf("CORS origin %q must start with http:// or https://", o))
		}
	}
	return errors.Join(errs...)
}
