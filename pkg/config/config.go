package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string
	Env                     string
	DBDriver                string
	PostgresUrl             string
	MySQLDSN                string
	MongoURI                string
	MongoDatabase           string
	RedisURL                string
	JWTSecret               string
	JWTTTL                  time.Duration
	FirebaseCredentialsPath string
	FirebaseStorageBucket   string
	StorageDriver           string
	StorageBucket           string
	PublicBaseURL           string
	MaxUploadBytes          int64
	MaxImages               int
	MessageRateLimit        int
	JanitorInterval         time.Duration
	OrphanMinAge            time.Duration
}

// Load reads .env (if present) and the process environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		DBDriver:                getEnv("DB_DRIVER", "postgres"),
		PostgresUrl:             getEnv("POSTGRES_CONN_STR", ""),
		MySQLDSN:                getEnv("MYSQL_DSN", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "classifieds"),
		RedisURL:                getEnv("REDIS_URL", ""),
		JWTSecret:               getEnv("JWT_SECRET", "supersecretjwtkey"),
		JWTTTL:                  getEnvDuration("JWT_TTL", 72*time.Hour),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseStorageBucket:   getEnv("FIREBASE_STORAGE_BUCKET", ""),
		StorageDriver:           getEnv("STORAGE_DRIVER", "gridfs"),
		StorageBucket:           getEnv("STORAGE_BUCKET", "listings"),
		PublicBaseURL:           getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		MaxUploadBytes:          int64(getEnvInt("MAX_UPLOAD_BYTES", 5<<20)),
		MaxImages:               getEnvInt("MAX_IMAGES", 10),
		MessageRateLimit:        getEnvInt("MESSAGE_RATE_LIMIT", 30),
		JanitorInterval:         getEnvDuration("JANITOR_INTERVAL", time.Hour),
		OrphanMinAge:            getEnvDuration("ORPHAN_MIN_AGE", time.Hour),
	}
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
