// backend-go/internal/config/config.go
package config

import (
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Drive    DriveConfig
	Planning PlanningConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	LogLevel       string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	MaxUploadMB    int
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	UploadDir string
	DataDir   string
}

type CacheConfig struct {
	Enabled        bool
	RedisURL       string
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	PlanTTLSeconds int
}

// StorageConfig points at an S3-compatible bucket holding raw input files
// and published plan outputs.
type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	UseSSL       bool
	InputPrefix  string
	OutputPrefix string
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
	DownloadDir     string
}

// PlanningConfig holds the tunables of the planning engine.
type PlanningConfig struct {
	LeadTimeMonths         int
	PolicyLeadTimeMonths   int
	HorizonMonths          int
	SelectionBufferMonths  int
	ProjectionUsesLeadTime bool
	ServiceLevelZ          float64
	SafetyStockVariant     string
	EOQMultiplier          float64
	PurchaseHorizonMonths  int
	LookbackPeriods        int
	CandidatePercentile    float64
	ImputePercentile       float64
	OutlierPercentile      float64
	MinStockoutEpisodes    int
	NoStockRunEvidence     int
	WorkerCount            int
	AsOfMonth              string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()

		// Read from environment variables
		viper.AutomaticEnv()

		// Ensure upload and data directories exist
		ensureDir(viper.GetString("APP_UPLOAD_DIR"))
		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = fromViper()
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SERVER_READ_TIMEOUT", 30)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 120)
	viper.SetDefault("SERVER_MAX_UPLOAD_MB", 64)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("DB_ENABLED", false)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "planify")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	viper.SetDefault("APP_DATA_DIR", "./data/output")
	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_PLAN_TTL_SECONDS", 24*60*60)
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("STORAGE_USE_SSL", true)
	viper.SetDefault("STORAGE_INPUT_PREFIX", "inputs")
	viper.SetDefault("STORAGE_OUTPUT_PREFIX", "plans")
	viper.SetDefault("DRIVE_DOWNLOAD_DIR", "./data/uploads/drive")
	viper.SetDefault("PLANNING_LEAD_TIME_MONTHS", 3)
	viper.SetDefault("PLANNING_POLICY_LEAD_TIME_MONTHS", 5)
	viper.SetDefault("PLANNING_HORIZON_MONTHS", 6)
	viper.SetDefault("PLANNING_SELECTION_BUFFER_MONTHS", 3)
	viper.SetDefault("PLANNING_PROJECTION_USES_LEAD_TIME", true)
	viper.SetDefault("PLANNING_SERVICE_LEVEL_Z", 1.65)
	viper.SetDefault("PLANNING_SAFETY_STOCK_VARIANT", "historical")
	viper.SetDefault("PLANNING_EOQ_MULTIPLIER", 3.0)
	viper.SetDefault("PLANNING_PURCHASE_HORIZON_MONTHS", 5)
	viper.SetDefault("PLANNING_LOOKBACK_PERIODS", 24)
	viper.SetDefault("PLANNING_CANDIDATE_PERCENTILE", 20.0)
	viper.SetDefault("PLANNING_IMPUTE_PERCENTILE", 60.0)
	viper.SetDefault("PLANNING_OUTLIER_PERCENTILE", 95.0)
	viper.SetDefault("PLANNING_MIN_STOCKOUT_EPISODES", 2)
	viper.SetDefault("PLANNING_NO_STOCK_RUN_EVIDENCE", 0)
	viper.SetDefault("PLANNING_WORKERS", 4)
	viper.SetDefault("PLANNING_AS_OF_MONTH", "")
}

func fromViper() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Mode:           viper.GetString("SERVER_MODE"),
			LogLevel:       viper.GetString("LOG_LEVEL"),
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			MaxUploadMB:    viper.GetInt("SERVER_MAX_UPLOAD_MB"),
		},
		Database: DatabaseConfig{
			Enabled:  viper.GetBool("DB_ENABLED"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			UploadDir: viper.GetString("APP_UPLOAD_DIR"),
			DataDir:   viper.GetString("APP_DATA_DIR"),
		},
		Cache: CacheConfig{
			Enabled:        viper.GetBool("CACHE_ENABLED"),
			RedisURL:       viper.GetString("REDIS_URL"),
			RedisHost:      viper.GetString("REDIS_HOST"),
			RedisPort:      viper.GetString("REDIS_PORT"),
			RedisPassword:  viper.GetString("REDIS_PASSWORD"),
			RedisDB:        viper.GetInt("REDIS_DB"),
			PlanTTLSeconds: viper.GetInt("CACHE_PLAN_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Endpoint:     viper.GetString("STORAGE_ENDPOINT"),
			AccessKey:    viper.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:    viper.GetString("STORAGE_SECRET_KEY"),
			Bucket:       viper.GetString("STORAGE_BUCKET"),
			Region:       viper.GetString("STORAGE_REGION"),
			UseSSL:       viper.GetBool("STORAGE_USE_SSL"),
			InputPrefix:  viper.GetString("STORAGE_INPUT_PREFIX"),
			OutputPrefix: viper.GetString("STORAGE_OUTPUT_PREFIX"),
		},
		Drive: DriveConfig{
			CredentialsJSON: viper.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			FolderID:        viper.GetString("DRIVE_FOLDER_ID"),
			DownloadDir:     viper.GetString("DRIVE_DOWNLOAD_DIR"),
		},
		Planning: PlanningConfig{
			LeadTimeMonths:         viper.GetInt("PLANNING_LEAD_TIME_MONTHS"),
			PolicyLeadTimeMonths:   viper.GetInt("PLANNING_POLICY_LEAD_TIME_MONTHS"),
			HorizonMonths:          viper.GetInt("PLANNING_HORIZON_MONTHS"),
			SelectionBufferMonths:  viper.GetInt("PLANNING_SELECTION_BUFFER_MONTHS"),
			ProjectionUsesLeadTime: viper.GetBool("PLANNING_PROJECTION_USES_LEAD_TIME"),
			ServiceLevelZ:          viper.GetFloat64("PLANNING_SERVICE_LEVEL_Z"),
			SafetyStockVariant:     viper.GetString("PLANNING_SAFETY_STOCK_VARIANT"),
			EOQMultiplier:          viper.GetFloat64("PLANNING_EOQ_MULTIPLIER"),
			PurchaseHorizonMonths:  viper.GetInt("PLANNING_PURCHASE_HORIZON_MONTHS"),
			LookbackPeriods:        viper.GetInt("PLANNING_LOOKBACK_PERIODS"),
			CandidatePercentile:    viper.GetFloat64("PLANNING_CANDIDATE_PERCENTILE"),
			ImputePercentile:       viper.GetFloat64("PLANNING_IMPUTE_PERCENTILE"),
			OutlierPercentile:      viper.GetFloat64("PLANNING_OUTLIER_PERCENTILE"),
			MinStockoutEpisodes:    viper.GetInt("PLANNING_MIN_STOCKOUT_EPISODES"),
			NoStockRunEvidence:     viper.GetInt("PLANNING_NO_STOCK_RUN_EVIDENCE"),
			WorkerCount:            viper.GetInt("PLANNING_WORKERS"),
			AsOfMonth:              viper.GetString("PLANNING_AS_OF_MONTH"),
		},
	}
}

// DSN builds a lib/pq style connection string.
func (c DatabaseConfig) DSN() string {
	return "host=" + c.Host + " port=" + c.Port + " user=" + c.User +
		" password=" + c.Password + " dbname=" + c.DBName + " sslmode=" + c.SSLMode
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create directory")
		}
	}
}
