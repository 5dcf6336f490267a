package config

type Config struct {
	TelegramConfig
	StoreConfig
	DBConfig
	RedisConfig
	RegistryConfig
	HTTPConfig
	GoogleSheetConfig
}

type TelegramConfig struct {
	Enabled  bool   `envconfig:"TG_ENABLED" default:"true"`
	BotToken string `envconfig:"BOT_TOKEN" masked:"true"`
	Admins   string `envconfig:"ADMINS" masked:"true"` // id через запятую; пусто: доступ у всех
}

// StoreConfig выбор хранилища: sqlite, postgres, redis или memory
type StoreConfig struct {
	Backend    string `envconfig:"STORE_BACKEND" default:"sqlite"`
	Namespace  string `envconfig:"STORE_NAMESPACE" default:"registry"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"registry.db"`
}

type DBConfig struct {
	User   string `envconfig:"DBUSER" masked:"true"`
	Pass   string `envconfig:"DBPASS" masked:"true"`
	Host   string `envconfig:"DBHOST" masked:"true"`
	DBName string `envconfig:"DBNAME" masked:"true"`

	Port    string `envconfig:"DBPORT" default:"5432"`
	SSLMode string `envconfig:"DBSSLMODE" default:"disable"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" masked:"true"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type RegistryConfig struct {
	DefaultPrefix  string `envconfig:"DEFAULT_PREFIX" default:"MTD25"`
	CountryCode    string `envconfig:"COUNTRY_CODE" default:"+20"`
	Timezone       string `envconfig:"TIMEZONE" default:"Africa/Cairo"`
	ExportBaseName string `envconfig:"EXPORT_BASE_NAME" default:"بيانات_الطلاب"`
}

type HTTPConfig struct {
	Enabled bool   `envconfig:"HTTP_ENABLED" default:"true"`
	Addr    string `envconfig:"HTTP_ADDR" default:":8080"`
}

type GoogleSheetConfig struct {
	Enabled           bool   `envconfig:"SHEET_ENABLED" default:"false"`
	SheetID           string `envconfig:"SHEET_ID" masked:"true"`
	TabID             string `envconfig:"SHEET_TAB_ID" masked:"true"`
	CredentialsBase64 string `envconfig:"CREDENTIALS_BASE64" masked:"true"`
	PauseMs           int    `envconfig:"SHEET_PAUSE_MS" default:"1000"`
	SyncIntervalMin   int    `envconfig:"SHEET_SYNC_INTERVAL_MIN" default:"10"`
	ColumnOrder       string `envconfig:"SHEET_COLUMNS"` // например Code,Name,Phone,RegisteredAt
}
