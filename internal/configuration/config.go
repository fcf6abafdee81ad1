package configuration

import (
	"strings"
	"time"

	"pricewatch/internal/logger"

	"github.com/BurntSushi/toml"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"
)

type Config struct {
	ServerAddress string
	DatabaseURI   string
	RedisAddress  string
	LogLevel      logger.Level
	LogToFile     bool

	AuthSecretKey     jwk.Key
	AdminPasswordHash []byte

	HighInterval    time.Duration
	RegularInterval time.Duration
	WeeklyScanDay   time.Weekday
	WeeklyScanHour  int
	MaintenanceHour int
	StaleThreshold  time.Duration

	MaxConcurrent  int
	PerSiteDelay   time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RequestTimeout time.Duration

	ClassifierWindow int
	HighChangeRate   float64
	NewProductAge    time.Duration

	TrendWindow          int
	TrendDeadZonePercent float64

	MaxHistoryEntries int
	HistoryRetention  time.Duration

	NotifyOnDecrease     bool
	NotifyOnIncrease     bool
	MinimumChangePercent float64
	WebhookURLs          []string
	Email                EmailConfig
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Configured reports whether enough is set for the email channel to be used.
func (ec EmailConfig) Configured() bool {
	return ec.Host != "" && ec.From != "" && len(ec.To) > 0
}

type tomlConfig struct {
	ServerAddress string `toml:"server_address"`
	DatabaseURI   string `toml:"database_uri"`
	RedisAddress  string `toml:"redis_address"`
	LogLevel      string `toml:"log_level"`
	LogToFile     bool   `toml:"log_to_file"`

	Auth struct {
		SecretKey         string `toml:"secret_key"`
		AdminPasswordHash string `toml:"admin_password_hash"`
	} `toml:"auth"`

	Intervals struct {
		HighPriority    string `toml:"high_priority"`
		Regular         string `toml:"regular"`
		WeeklyScanDay   string `toml:"weekly_scan_day"`
		WeeklyScanHour  *int   `toml:"weekly_scan_hour"`
		MaintenanceHour *int   `toml:"maintenance_hour"`
		StaleThreshold  string `toml:"stale_threshold"`
	} `toml:"intervals"`

	Rate struct {
		MaxConcurrent  int    `toml:"max_concurrent"`
		PerSiteDelay   string `toml:"per_site_delay"`
		MaxRetries     int    `toml:"max_retries"`
		RetryBackoff   string `toml:"retry_backoff"`
		RequestTimeout string `toml:"request_timeout"`
	} `toml:"rate"`

	Classifier struct {
		Window         int     `toml:"window"`
		HighChangeRate float64 `toml:"high_change_rate"`
		NewProductAge  string  `toml:"new_product_age"`
	} `toml:"classifier"`

	Analytics struct {
		TrendWindow          int     `toml:"trend_window"`
		TrendDeadZonePercent float64 `toml:"trend_dead_zone_percent"`
	} `toml:"analytics"`

	Data struct {
		MaxHistoryEntries int    `toml:"max_history_entries"`
		HistoryRetention  string `toml:"history_retention"`
	} `toml:"data"`

	Notifications struct {
		NotifyOnDecrease     *bool    `toml:"notify_on_decrease"`
		NotifyOnIncrease     bool     `toml:"notify_on_increase"`
		MinimumChangePercent *float64 `toml:"minimum_change_percent"`
		WebhookURLs          []string `toml:"webhook_urls"`
		Email                struct {
			Host     string   `toml:"smtp_host"`
			Port     int      `toml:"smtp_port"`
			Username string   `toml:"smtp_username"`
			Password string   `toml:"smtp_password"`
			From     string   `toml:"from_email"`
			To       []string `toml:"to_emails"`
		} `toml:"email"`
	} `toml:"notifications"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func GetConfig(path string) (*Config, error) {
	var tc tomlConfig
	_, err := toml.DecodeFile(path, &tc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode toml file with path: %s", path)
	}
	return buildConfig(tc)
}

func buildConfig(tc tomlConfig) (*Config, error) {
	c := &Config{}
	var err error

	c.ServerAddress = tc.ServerAddress
	if c.ServerAddress == "" {
		c.ServerAddress = "localhost:8888"
	}
	c.DatabaseURI = tc.DatabaseURI
	if c.DatabaseURI == "" {
		c.DatabaseURI = "mongodb://localhost:27017"
	}
	c.RedisAddress = tc.RedisAddress
	c.LogToFile = tc.LogToFile

	if tc.LogLevel == "" {
		tc.LogLevel = "INFO"
	}
	c.LogLevel, err = logger.ParseLevel(tc.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse log_level")
	}

	if tc.Auth.SecretKey == "" {
		return nil, errors.New("auth.secret_key is not set")
	}
	c.AuthSecretKey, err = jwk.FromRaw([]byte(tc.Auth.SecretKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create key from auth.secret_key")
	}
	if tc.Auth.AdminPasswordHash == "" {
		return nil, errors.New("auth.admin_password_hash is not set")
	}
	if !strings.HasPrefix(tc.Auth.AdminPasswordHash, "$2") {
		return nil, errors.Errorf("auth.admin_password_hash is not a bcrypt hash: %s", tc.Auth.AdminPasswordHash)
	}
	c.AdminPasswordHash = []byte(tc.Auth.AdminPasswordHash)

	c.HighInterval, err = parseDurationDefault(tc.Intervals.HighPriority, 2*time.Hour, "intervals.high_priority")
	if err != nil {
		return nil, err
	}
	if c.HighInterval < time.Minute {
		return nil, errors.Errorf("intervals.high_priority too short (%v), minimum interval: 1m", c.HighInterval)
	}
	c.RegularInterval, err = parseDurationDefault(tc.Intervals.Regular, 6*time.Hour, "intervals.regular")
	if err != nil {
		return nil, err
	}
	if c.RegularInterval < c.HighInterval {
		return nil, errors.Errorf("intervals.regular (%v) shorter than intervals.high_priority (%v)",
			c.RegularInterval, c.HighInterval)
	}

	if tc.Intervals.WeeklyScanDay == "" {
		tc.Intervals.WeeklyScanDay = "sunday"
	}
	day, ok := weekdays[strings.ToLower(tc.Intervals.WeeklyScanDay)]
	if !ok {
		return nil, errors.Errorf("invalid intervals.weekly_scan_day: %s", tc.Intervals.WeeklyScanDay)
	}
	c.WeeklyScanDay = day
	c.WeeklyScanHour = 3
	if tc.Intervals.WeeklyScanHour != nil {
		c.WeeklyScanHour = *tc.Intervals.WeeklyScanHour
	}
	if c.WeeklyScanHour < 0 || c.WeeklyScanHour > 23 {
		return nil, errors.Errorf("intervals.weekly_scan_hour out of range: %d", c.WeeklyScanHour)
	}
	c.MaintenanceHour = 2
	if tc.Intervals.MaintenanceHour != nil {
		c.MaintenanceHour = *tc.Intervals.MaintenanceHour
	}
	if c.MaintenanceHour < 0 || c.MaintenanceHour > 23 {
		return nil, errors.Errorf("intervals.maintenance_hour out of range: %d", c.MaintenanceHour)
	}
	c.StaleThreshold, err = parseDurationDefault(tc.Intervals.StaleThreshold, 24*time.Hour, "intervals.stale_threshold")
	if err != nil {
		return nil, err
	}

	c.MaxConcurrent = tc.Rate.MaxConcurrent
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 5
	}
	if c.MaxConcurrent < 1 {
		return nil, errors.Errorf("rate.max_concurrent must be at least 1, got: %d", c.MaxConcurrent)
	}
	c.PerSiteDelay, err = parseDurationDefault(tc.Rate.PerSiteDelay, 2*time.Second, "rate.per_site_delay")
	if err != nil {
		return nil, err
	}
	c.MaxRetries = tc.Rate.MaxRetries
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.MaxRetries < 1 {
		return nil, errors.Errorf("rate.max_retries must be at least 1, got: %d", c.MaxRetries)
	}
	c.RetryBackoff, err = parseDurationDefault(tc.Rate.RetryBackoff, 2*time.Second, "rate.retry_backoff")
	if err != nil {
		return nil, err
	}
	c.RequestTimeout, err = parseDurationDefault(tc.Rate.RequestTimeout, 30*time.Second, "rate.request_timeout")
	if err != nil {
		return nil, err
	}
	if c.RequestTimeout < time.Second {
		return nil, errors.Errorf("rate.request_timeout too short (%v), minimum: 1s", c.RequestTimeout)
	}

	c.ClassifierWindow = tc.Classifier.Window
	if c.ClassifierWindow == 0 {
		c.ClassifierWindow = 50
	}
	if c.ClassifierWindow < 2 {
		return nil, errors.Errorf("classifier.window must be at least 2, got: %d", c.ClassifierWindow)
	}
	c.HighChangeRate = tc.Classifier.HighChangeRate
	if c.HighChangeRate == 0 {
		c.HighChangeRate = 0.20
	}
	if c.HighChangeRate < 0 || c.HighChangeRate > 1 {
		return nil, errors.Errorf("classifier.high_change_rate out of range [0,1]: %v", c.HighChangeRate)
	}
	c.NewProductAge, err = parseDurationDefault(tc.Classifier.NewProductAge, 7*24*time.Hour, "classifier.new_product_age")
	if err != nil {
		return nil, err
	}

	c.TrendWindow = tc.Analytics.TrendWindow
	if c.TrendWindow == 0 {
		c.TrendWindow = 30
	}
	if c.TrendWindow < 2 {
		return nil, errors.Errorf("analytics.trend_window must be at least 2, got: %d", c.TrendWindow)
	}
	c.TrendDeadZonePercent = tc.Analytics.TrendDeadZonePercent
	if c.TrendDeadZonePercent == 0 {
		c.TrendDeadZonePercent = 0.1
	}
	if c.TrendDeadZonePercent < 0 {
		return nil, errors.Errorf("analytics.trend_dead_zone_percent must not be negative, got: %v", c.TrendDeadZonePercent)
	}

	c.MaxHistoryEntries = tc.Data.MaxHistoryEntries
	if c.MaxHistoryEntries == 0 {
		c.MaxHistoryEntries = 1000
	}
	if c.MaxHistoryEntries < 1 {
		return nil, errors.Errorf("data.max_history_entries must be at least 1, got: %d", c.MaxHistoryEntries)
	}
	if tc.Data.HistoryRetention != "" {
		c.HistoryRetention, err = parseDurationDefault(tc.Data.HistoryRetention, 0, "data.history_retention")
		if err != nil {
			return nil, err
		}
		if c.HistoryRetention < 24*time.Hour {
			return nil, errors.Errorf("data.history_retention too short (%v), minimum: 24h", c.HistoryRetention)
		}
	}

	c.NotifyOnDecrease = true
	if tc.Notifications.NotifyOnDecrease != nil {
		c.NotifyOnDecrease = *tc.Notifications.NotifyOnDecrease
	}
	c.NotifyOnIncrease = tc.Notifications.NotifyOnIncrease
	c.MinimumChangePercent = 1.0
	if tc.Notifications.MinimumChangePercent != nil {
		c.MinimumChangePercent = *tc.Notifications.MinimumChangePercent
	}
	if c.MinimumChangePercent < 0 {
		return nil, errors.Errorf("notifications.minimum_change_percent must not be negative, got: %v", c.MinimumChangePercent)
	}
	for _, u := range tc.Notifications.WebhookURLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return nil, errors.Errorf("invalid notifications.webhook_urls entry: %s", u)
		}
	}
	c.WebhookURLs = tc.Notifications.WebhookURLs
	c.Email = EmailConfig{
		Host:     tc.Notifications.Email.Host,
		Port:     tc.Notifications.Email.Port,
		Username: tc.Notifications.Email.Username,
		Password: tc.Notifications.Email.Password,
		From:     tc.Notifications.Email.From,
		To:       tc.Notifications.Email.To,
	}
	if c.Email.Host != "" && c.Email.Port == 0 {
		c.Email.Port = 587
	}

	return c, nil
}

func parseDurationDefault(s string, def time.Duration, key string) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse %s: %s", key, s)
	}
	if d < 0 {
		return 0, errors.Errorf("%s must not be negative: %s", key, s)
	}
	return d, nil
}
