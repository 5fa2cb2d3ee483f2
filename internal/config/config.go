package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Links    LinksConfig    `yaml:"links"`
	Storage  StorageConfig  `yaml:"storage"`
	Tokens   TokenConfig    `yaml:"tokens"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Plants   PlantsConfig   `yaml:"plants"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// AuthConfig configures JWT session tokens for authenticated users.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
}

// LinksConfig holds the base URL used to build review links in outbound mail.
type LinksConfig struct {
	FrontendBaseURL string `yaml:"frontend_base_url"`
}

type StorageConfig struct {
	GeneratedDir string `yaml:"generated_dir"`
}

// TokenConfig sets lifetimes for capability tokens embedded in review links.
type TokenConfig struct {
	ReviewTTL time.Duration `yaml:"review_ttl"`
	ReworkTTL time.Duration `yaml:"rework_ttl"`
}

// WorkflowConfig names the fixed recipients of the approval chain.
type WorkflowConfig struct {
	FinalApprover string `yaml:"final_approver"`
	AdminEmail    string `yaml:"admin_email"`
}

// PlantsConfig is the immutable plant and distribution configuration injected
// into the distribution resolver. Validators maps a plant to its reviewer
// address; Distribution maps a product line to the ordered plant list a card
// must be deployed to.
type PlantsConfig struct {
	Validators   map[string]string   `yaml:"validators"`
	Distribution map[string][]string `yaml:"distribution"`
	// Contacts maps distribution site labels (the names used in the
	// Distribution lists) to the address that receives deployment requests.
	Contacts map[string]string `yaml:"contacts"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3001,
		},
		DB: DBConfig{
			Path: "llc.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			TokenTTL: 7 * 24 * time.Hour,
		},
		SMTP: SMTPConfig{
			Host:     "avocarbon-com.mail.protection.outlook.com",
			Port:     25,
			From:     "administration.STS@avocarbon.com",
			FromName: "Administration STS",
		},
		Links: LinksConfig{
			FrontendBaseURL: "http://localhost:3000",
		},
		Storage: StorageConfig{
			GeneratedDir: "uploads/generated",
		},
		Tokens: TokenConfig{
			ReviewTTL: 30 * 24 * time.Hour,
			ReworkTTL: 14 * 24 * time.Hour,
		},
		Workflow: WorkflowConfig{
			FinalApprover: "administration.STS@avocarbon.com",
			AdminEmail:    "administration.STS@avocarbon.com",
		},
		Plants: PlantsConfig{
			Validators:   DefaultPlantValidators(),
			Distribution: DefaultDistribution(),
			Contacts:     DefaultDistributionContacts(),
		},
	}

	if path := os.Getenv("LLC_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("LLC_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("LLC_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LLC_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("LLC_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("LLC_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if secret := os.Getenv("LLC_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if base := os.Getenv("LLC_FRONTEND_BASE_URL"); base != "" {
		cfg.Links.FrontendBaseURL = base
	}
	if host := os.Getenv("LLC_SMTP_HOST"); host != "" {
		cfg.SMTP.Host = host
	}
	if portStr := os.Getenv("LLC_SMTP_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LLC_SMTP_PORT: %w", err)
		}
		cfg.SMTP.Port = port
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// DefaultPlantValidators returns the built-in plant to validator mapping.
func DefaultPlantValidators() map[string]string {
	return map[string]string{
		"TEST Plant":      "ons.ghariani@avocarbon.com",
		"FRANKFURT Plant": "dagmar.ansinn@avocarbon.com",
		"KUNSHAN Plant":   "allan.riegel@avocarbon.com",
		"MONTERREY Plant": "hector.olivares@avocarbon.com",
		"CHENNAI Plant":   "sridhar.b@avocarbon.com",
		"SCEET Plant":     "imed.benalaya@avocarbon.com",
		"ANHUI Plant":     "samtak.joo@avocarbon.com",
		"CYCLAM Plant":    "florence.paradis@avocarbon.com",
		"TIANJIN Plant":   "yang.yang@avocarbon.com",
		"SAME Plant":      "salah.benachour@avocarbon.com",
		"POITIERS Plant":  "sebastien.charpentier@avocarbon.com",
	}
}

// DefaultDistribution returns the built-in product line to plant list mapping.
func DefaultDistribution() map[string][]string {
	return map[string][]string{
		"BRUSH":     {"GERMANY", "POITIERS", "TIANJIN", "CHENNAI"},
		"CHOKES":    {"TUNISIA", "MEXICO", "ANHUI", "KUNSHAN", "CHENNAI"},
		"ASSEMBLY":  {"TUNISIA", "MEXICO", "ANHUI", "KUNSHAN", "POITIERS"},
		"SEALS":     {"AMIENS", "CHENNAI", "TUNISIA", "MEXICO"},
		"INJECTION": {"TUNISIA", "MEXICO"},
		"ALL":       {"GERMANY", "POITIERS", "TIANJIN", "CHENNAI", "TUNISIA", "MEXICO", "ANHUI", "KUNSHAN", "AMIENS"},
	}
}

// DefaultDistributionContacts maps distribution site labels to the addresses
// that receive deployment requests for them.
func DefaultDistributionContacts() map[string]string {
	return map[string]string{
		"GERMANY":  "dagmar.ansinn@avocarbon.com",
		"POITIERS": "sebastien.charpentier@avocarbon.com",
		"TIANJIN":  "yang.yang@avocarbon.com",
		"CHENNAI":  "sridhar.b@avocarbon.com",
		"TUNISIA":  "imed.benalaya@avocarbon.com",
		"MEXICO":   "hector.olivares@avocarbon.com",
		"ANHUI":    "samtak.joo@avocarbon.com",
		"KUNSHAN":  "allan.riegel@avocarbon.com",
		"AMIENS":   "florence.paradis@avocarbon.com",
	}
}
