package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug    bool
		TestMode bool
		Env      string // DEV (default) | TEST | QA | PROD
		Build    string
		AppName  string
		WorkDir  string

		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		SMS      SMSConfig
		Risk     RiskConfig
		Alert    AlertConfig
	}

	ServerConfig struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	SMSConfig struct {
		GatewayURL string
		APIKey     string
		SenderID   string
	}

	// RiskConfig holds the thresholds driving the signal evaluators and the
	// level escalation policy. Every value can be overridden via env vars,
	// e.g. DEV_RISK_CONSECUTIVEABSENCESHIGH=4.
	RiskConfig struct {
		AttendanceWindowDays    int
		ConsecutiveAbsencesHigh int
		ConsecutiveAbsencesCrit int
		AbsenceRateMedium       float64
		AbsenceRateHigh         float64
		PerformanceDropPct      float64
		DistanceMediumKm        float64
		DistanceHighKm          float64
		DistanceCriticalKm      float64
		SocioScoreLow           int
		SocioScoreMedium        int
		SocioScoreHigh          int
		SocioScoreCritical      int
		EscalationMinSeverity   string
		EscalationMinFlags      int
		SweepWorkers            int
	}

	AlertConfig struct {
		MaxRetries    int
		SweepInterval time.Duration
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Umurinzi")
	v.SetDefault("build", "dev")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.name", "umurinzi")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("sms.senderId", "UMURINZI")

	v.SetDefault("risk.attendanceWindowDays", 30)
	v.SetDefault("risk.consecutiveAbsencesHigh", 3)
	v.SetDefault("risk.consecutiveAbsencesCritical", 7)
	v.SetDefault("risk.absenceRateMedium", 0.2)
	v.SetDefault("risk.absenceRateHigh", 0.4)
	v.SetDefault("risk.performanceDropPct", 15.0)
	v.SetDefault("risk.distanceMediumKm", 3.0)
	v.SetDefault("risk.distanceHighKm", 5.0)
	v.SetDefault("risk.distanceCriticalKm", 7.0)
	v.SetDefault("risk.socioScoreLow", 3)
	v.SetDefault("risk.socioScoreMedium", 5)
	v.SetDefault("risk.socioScoreHigh", 8)
	v.SetDefault("risk.socioScoreCritical", 12)
	v.SetDefault("risk.escalationMinSeverity", "HIGH")
	v.SetDefault("risk.escalationMinFlags", 2)
	v.SetDefault("risk.sweepWorkers", 4)

	v.SetDefault("alert.maxRetries", 3)
	v.SetDefault("alert.sweepInterval", 5*time.Minute)

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}
	v.SetDefault("testMode", env == "TEST")
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("testMode"),
		Env:      env,
		Build:    v.GetString("build"),
		AppName:  v.GetString("appName"),
		WorkDir:  wd,

		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),

		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		SMS: SMSConfig{
			GatewayURL: v.GetString("sms.gatewayUrl"),
			APIKey:     v.GetString("sms.apiKey"),
			SenderID:   v.GetString("sms.senderId"),
		},
		Risk: RiskConfig{
			AttendanceWindowDays:    v.GetInt("risk.attendanceWindowDays"),
			ConsecutiveAbsencesHigh: v.GetInt("risk.consecutiveAbsencesHigh"),
			ConsecutiveAbsencesCrit: v.GetInt("risk.consecutiveAbsencesCritical"),
			AbsenceRateMedium:       v.GetFloat64("risk.absenceRateMedium"),
			AbsenceRateHigh:         v.GetFloat64("risk.absenceRateHigh"),
			PerformanceDropPct:      v.GetFloat64("risk.performanceDropPct"),
			DistanceMediumKm:        v.GetFloat64("risk.distanceMediumKm"),
			DistanceHighKm:          v.GetFloat64("risk.distanceHighKm"),
			DistanceCriticalKm:      v.GetFloat64("risk.distanceCriticalKm"),
			SocioScoreLow:           v.GetInt("risk.socioScoreLow"),
			SocioScoreMedium:        v.GetInt("risk.socioScoreMedium"),
			SocioScoreHigh:          v.GetInt("risk.socioScoreHigh"),
			SocioScoreCritical:      v.GetInt("risk.socioScoreCritical"),
			EscalationMinSeverity:   v.GetString("risk.escalationMinSeverity"),
			EscalationMinFlags:      v.GetInt("risk.escalationMinFlags"),
			SweepWorkers:            v.GetInt("risk.sweepWorkers"),
		},
		Alert: AlertConfig{
			MaxRetries:    v.GetInt("alert.maxRetries"),
			SweepInterval: v.GetDuration("alert.sweepInterval"),
		},
	}
}
