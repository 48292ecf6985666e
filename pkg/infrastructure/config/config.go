package config

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const appID = "tokenqueue"

type Config struct {
	ServeRESTAddress string `envconfig:"serve_rest_address" default:":5005"`
	DBDriver         string `envconfig:"db_driver" default:"sqlite3"`
	DBDSN            string `envconfig:"db_dsn" default:"file:tokenqueue.db?_busy_timeout=5000&_txlock=immediate"`
	LogLevel         string `envconfig:"log_level" default:"info"`
}

func Parse() (*Config, error) {
	c := new(Config)
	if err := envconfig.Process(appID, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse env config")
	}
	return c, nil
}
