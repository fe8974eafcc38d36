package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"faxorder-service/internal/resolve/model"
)

type Config struct {
	Host         string   `validate:"required"`
	Port         int      `validate:"gt=0,lte=65535"`
	AllowOrigins []string `validate:"min=1"`
	LogLevel     string
	MaxUploadMB  int `validate:"gt=0"`
	LogFile      string

	DBDriver string `validate:"oneof=sqlite postgres memory"`
	DBDSN    string `validate:"required_unless=DBDriver memory"`

	MatchThreshold   float64 `validate:"gt=0,lte=1"`
	AmbiguityDelta   float64 `validate:"gte=0,lt=1"`
	ContainmentFloor float64 `validate:"gte=0,lte=1"`
	QtyTolerance     float64 `validate:"gte=0,lt=0.5"`
	MaxQuantity      int     `validate:"gt=0"`
}

// Load reads the environment. A .env file in the working directory, when
// present, fills variables that are not already set.
func Load() Config {
	_ = godotenv.Load()

	origins := strings.Split(getenv("ALLOW_ORIGINS", "*"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	def := model.DefaultOptions()
	return Config{
		Host:         getenv("HOST", "127.0.0.1"),
		Port:         getint("PORT", 8082),
		AllowOrigins: origins,
		LogLevel:     getenv("LOG_LEVEL", "info"),
		MaxUploadMB:  getint("MAX_UPLOAD_MB", 32),
		LogFile:      getenv("LOG_FILE", "logs/faxorder-service.log"),

		DBDriver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBDSN:    getenv("DB_DSN", "data/fax.db"),

		MatchThreshold:   getfloat("MATCH_THRESHOLD", def.MatchThreshold),
		AmbiguityDelta:   getfloat("AMBIGUITY_DELTA", def.AmbiguityDelta),
		ContainmentFloor: getfloat("CONTAINMENT_FLOOR", def.ContainmentFloor),
		QtyTolerance:     getfloat("QTY_DECIMAL_TOLERANCE", def.DecimalTolerance),
		MaxQuantity:      getint("MAX_QUANTITY", def.MaxQuantity),
	}
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// ResolveOptions maps the tunables onto the engine options.
func (c Config) ResolveOptions() model.Options {
	o := model.DefaultOptions()
	o.MatchThreshold = c.MatchThreshold
	o.AmbiguityDelta = c.AmbiguityDelta
	o.ContainmentFloor = c.ContainmentFloor
	o.DecimalTolerance = c.QtyTolerance
	o.MaxQuantity = c.MaxQuantity
	return o
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	n, err := strconv.Atoi(getenv(k, ""))
	if err != nil {
		return def
	}
	return n
}

func getfloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(getenv(k, ""), 64)
	if err != nil {
		return def
	}
	return f
}
