package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rovlink/rovconsole/internal/config"
)

// ApplicationName tags recorder sessions in pg_stat_activity.
const ApplicationName = "rovconsole"

// BuildConnString renders cfg as a postgres:// URL. Credentials are escaped
// and an empty sslmode falls back to config.DefaultDBSSLMode.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
