package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

// DefaultPath is the settings file read when none is given
const DefaultPath = "reportgen.yaml"

// ErrInvalidConfig is returned when settings validation fails
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads the settings file, applies environment overrides and defaults, and validates the result.
// A missing file at the default path yields the defaults; a missing explicit path is an error.
func Load(path string) (*model.Settings, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	settings := &model.Settings{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(settings); err != nil {
		return nil, err
	}
	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return settings, nil
}

// applyEnv overrides settings from REPORTGEN_* variables
func applyEnv(s *model.Settings) error {
	setString(&s.Listen, "REPORTGEN_LISTEN")
	setString(&s.Database, "REPORTGEN_DB")
	setString(&s.Environment, "REPORTGEN_ENV")
	setString(&s.AppRootURL, "REPORTGEN_APP_ROOT_URL")
	setString(&s.ModuleDir, "REPORTGEN_MODULE_DIR")
	setString(&s.PDFRenderer, "REPORTGEN_PDF_RENDERER")
	setString(&s.ExternalRenderer.URL, "REPORTGEN_PDF_EXTERNAL_URL")
	setString(&s.Storage.AccessKey, "REPORTGEN_S3_ACCESS_KEY")
	setString(&s.Storage.SecretKey, "REPORTGEN_S3_SECRET_KEY")

	if raw := strings.TrimSpace(os.Getenv("REPORTGEN_TRACE_LOG")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%w: REPORTGEN_TRACE_LOG: %v", ErrInvalidConfig, err)
		}
		s.TraceLog = v
	}

	if pw := os.Getenv("REPORTGEN_SMTP_PASSWORD"); pw != "" && s.SMTP != nil {
		s.SMTP.Password = pw
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
