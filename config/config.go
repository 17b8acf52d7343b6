package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config stores the application configuration. Everything comes from the
// environment (optionally via a .env file) with simple defaults.
type Config struct {
	Port          string
	PublicBaseURL string // Base URL used to build links to locally stored audio
	WebAppDir     string // Path to the web map client's static files

	UploadDir    string // Directory for locally stored audio files
	TempDir      string // Scratch directory for in-flight uploads ("" = os default)
	MaxUploadMB  int64  // Reject files larger than this
	QuotaMB      int64  // Total space reported by the storage-usage endpoint
	AllowedMIME  string // Required prefix of the uploaded file's content type
	CatalogLimit int    // Default page size for the list endpoint

	CatalogDriver string // "memory" or "mysql"
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisEnabled  bool

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	AdminUsername string
	AdminPassword string
	JWTSecret     string

	AllowedOrigins []string

	LogLevel string
	LogFile  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override variables already set in the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	origins := strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:          getEnv("PORT", "8080"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		WebAppDir:     getEnv("WEB_APP_DIR", "web/ui"),

		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		TempDir:      getEnv("UPLOAD_TMP_DIR", ""),
		MaxUploadMB:  int64(getEnvInt("MAX_UPLOAD_MB", 30)),
		QuotaMB:      int64(getEnvInt("STORAGE_QUOTA_MB", 10240)),
		AllowedMIME:  "audio/",
		CatalogLimit: getEnvInt("CATALOG_DEFAULT_LIMIT", 100),

		CatalogDriver: getEnv("CATALOG_DRIVER", "memory"),
		DBHost:        getEnv("DB_HOST", "127.0.0.1"),
		DBPort:        getEnv("DB_PORT", "3306"),
		DBUser:        getEnv("DB_USER", "root"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        getEnv("DB_NAME", "soundscape"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "soundscape"),
		MinioRegion:    getEnv("MINIO_REGION", ""),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", true),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),

		AllowedOrigins: origins,

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

// MaxUploadBytes returns the upload size ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// QuotaBytes returns the configured storage quota in bytes.
func (c *Config) QuotaBytes() int64 {
	return c.QuotaMB << 20
}

// MinioConfigured reports whether bucket credentials are present.
func (c *Config) MinioConfigured() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}
