package config

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix 是所有环境变量的前缀。
const EnvPrefix = "EVMERGE_"

// EnvConfig 是环境变量层；未设置的变量保持 nil，不参与覆盖。
type EnvConfig struct {
	Config        *string `env:"CONFIG"`
	Store         *string `env:"STORE"`
	Sheet         *string `env:"SHEET"`
	Table         *string `env:"TABLE"`
	InputEncoding *string `env:"INPUT_ENCODING"`
	SortByDate    *bool   `env:"SORT_BY_DATE"`
	Ascending     *bool   `env:"ASCENDING"`
	DryRun        *bool   `env:"DRY_RUN"`
	TopOrganizers *int    `env:"TOP_ORGANIZERS"`
	LogLevel      *string `env:"LOG_LEVEL"`
	LogFormat     *string `env:"LOG_FORMAT"`
}

func parseEnv(environ map[string]string) (EnvConfig, error) {
	var ec EnvConfig
	if err := env.ParseWithOptions(&ec, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return EnvConfig{}, err
	}
	return ec, nil
}

// Environ 返回进程环境变量，并补上 <cwd>/.env、<cwd>/.env.local 中的值。
// 进程环境优先；.env.local 覆盖 .env。
func Environ(cwd string) (map[string]string, error) {
	out := make(map[string]string)
	for _, name := range []string{".env", ".env.local"} {
		p := filepath.Join(cwd, name)
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		m, err := godotenv.Read(p)
		if err != nil {
			return nil, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		for k, v := range m {
			out[k] = v
		}
	}
	for k, v := range env.ToMap(os.Environ()) {
		out[k] = v
	}
	return out, nil
}
