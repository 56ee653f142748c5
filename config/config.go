package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Environment represents the application environment
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Provider defines the interface for configuration management
type Provider interface {
	// GetString retrieves a string configuration value
	GetString(ctx context.Context, key string) (string, error)
	// GetInt retrieves an integer configuration value
	GetInt(ctx context.Context, key string) (int, error)
	// GetBool retrieves a boolean configuration value
	GetBool(ctx context.Context, key string) (bool, error)
	// GetSecret retrieves a secret value
	GetSecret(ctx context.Context, key string) (string, error)
	// GetEnvironment returns the current environment
	GetEnvironment() Environment
}

// NewProvider returns an AWS Secrets Manager provider when AWS_SECRET_NAME
// is set and an environment provider otherwise.
func NewProvider() (Provider, error) {
	if secretName := os.Getenv("AWS_SECRET_NAME"); secretName != "" {
		return NewAWSSecretsProvider(secretName)
	}
	return NewEnvProvider(""), nil
}

func currentEnvironment() Environment {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = string(Development)
	}
	return Environment(env)
}

// EnvProvider implements Provider using environment variables
type EnvProvider struct {
	prefix      string
	environment Environment
}

// NewEnvProvider creates a new environment-based configuration provider
func NewEnvProvider(prefix string) Provider {
	return &EnvProvider{
		prefix:      prefix,
		environment: currentEnvironment(),
	}
}

// GetEnvironment returns the current environment
func (p *EnvProvider) GetEnvironment() Environment {
	return p.environment
}

// GetString retrieves a string configuration value from environment variables
func (p *EnvProvider) GetString(ctx context.Context, key string) (string, error) {
	value := os.Getenv(p.prefix + key)
	if value == "" {
		return "", fmt.Errorf("environment variable %s%s not set", p.prefix, key)
	}
	return value, nil
}

// GetInt retrieves an integer configuration value from environment variables
func (p *EnvProvider) GetInt(ctx context.Context, key string) (int, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// GetBool retrieves a boolean configuration value from environment variables
func (p *EnvProvider) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value)
}

// GetSecret retrieves a secret value from environment variables
func (p *EnvProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return p.GetString(ctx, key)
}

// SecretsManagerAPI is the part of the Secrets Manager client the provider uses
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsProvider implements Provider using AWS Secrets Manager.
// Keys missing from the secret fall back to the environment.
type AWSSecretsProvider struct {
	client      SecretsManagerAPI
	secretName  string
	cache       map[string]string
	lastFetch   time.Time
	cacheTTL    time.Duration
	environment Environment
	fallback    Provider
}

// NewAWSSecretsProvider creates a new AWS Secrets Manager based configuration provider
func NewAWSSecretsProvider(secretName string) (Provider, error) {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewAWSSecretsProviderWithClient(secretsmanager.NewFromConfig(cfg), secretName), nil
}

// NewAWSSecretsProviderWithClient creates a Secrets Manager provider with a custom client
func NewAWSSecretsProviderWithClient(client SecretsManagerAPI, secretName string) *AWSSecretsProvider {
	return &AWSSecretsProvider{
		client:      client,
		secretName:  secretName,
		cacheTTL:    10 * time.Minute,
		environment: currentEnvironment(),
		fallback:    NewEnvProvider(""),
	}
}

// GetEnvironment returns the current environment
func (p *AWSSecretsProvider) GetEnvironment() Environment {
	return p.environment
}

func (p *AWSSecretsProvider) load(ctx context.Context) (map[string]string, error) {
	if p.cache != nil && time.Since(p.lastFetch) < p.cacheTTL {
		return p.cache, nil
	}

	secret, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}
	if secret.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", p.secretName)
	}

	var secretMap map[string]string
	if err := json.Unmarshal([]byte(*secret.SecretString), &secretMap); err != nil {
		return nil, fmt.Errorf("failed to parse secret JSON: %w", err)
	}
	if err := validateSecretSchema(secretMap, p.environment); err != nil {
		return nil, fmt.Errorf("invalid secret schema: %w", err)
	}

	p.cache = secretMap
	p.lastFetch = time.Now()
	return secretMap, nil
}

// GetString retrieves a string configuration value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetString(ctx context.Context, key string) (string, error) {
	secrets, err := p.load(ctx)
	if err != nil {
		return "", err
	}
	if value, ok := secrets[key]; ok && value != "" {
		return value, nil
	}
	return p.fallback.GetString(ctx, key)
}

// GetInt retrieves an integer configuration value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetInt(ctx context.Context, key string) (int, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// GetBool retrieves a boolean configuration value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value)
}

// GetSecret retrieves a secret value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return p.GetString(ctx, key)
}

var validSSLModes = map[string]bool{
	"disable":     true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

func validateProductionPassword(field, password string) error {
	if len(password) < 12 {
		return &ValidationError{Field: field, Message: "password must be at least 12 characters long in production"}
	}
	if !regexp.MustCompile(`[A-Z]`).MatchString(password) {
		return &ValidationError{Field: field, Message: "password must contain at least one uppercase letter in production"}
	}
	if !regexp.MustCompile(`[a-z]`).MatchString(password) {
		return &ValidationError{Field: field, Message: "password must contain at least one lowercase letter in production"}
	}
	if !regexp.MustCompile(`[0-9]`).MatchString(password) {
		return &ValidationError{Field: field, Message: "password must contain at least one number in production"}
	}
	if !regexp.MustCompile(`[^A-Za-z0-9]`).MatchString(password) {
		return &ValidationError{Field: field, Message: "password must contain at least one special character in production"}
	}
	return nil
}

// DatabaseConfig holds PostgreSQL connection configuration for the snapshot store
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the lib/pq connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Validate checks if the database configuration is valid
func (c *DatabaseConfig) Validate(env Environment) error {
	if c.Host == "" {
		return &ValidationError{Field: "Host", Message: "host cannot be empty"}
	}

	// Validate host is a valid hostname or IP
	if host := net.ParseIP(c.Host); host == nil {
		if _, err := net.LookupHost(c.Host); err != nil {
			return &ValidationError{Field: "Host", Message: "invalid hostname or IP address"}
		}
	}

	if c.Port <= 0 || c.Port > 65535 {
		return &ValidationError{Field: "Port", Message: "port must be between 1 and 65535"}
	}

	if c.User == "" {
		return &ValidationError{Field: "User", Message: "user cannot be empty"}
	}

	if c.Password == "" {
		return &ValidationError{Field: "Password", Message: "password cannot be empty"}
	}

	if env == Production {
		if err := validateProductionPassword("Password", c.Password); err != nil {
			return err
		}
	}

	if c.DBName == "" {
		return &ValidationError{Field: "DBName", Message: "database name cannot be empty"}
	}

	if !regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`).MatchString(c.DBName) {
		return &ValidationError{Field: "DBName", Message: "database name must start with a letter and contain only letters, numbers, and underscores"}
	}

	if !validSSLModes[c.SSLMode] {
		return &ValidationError{Field: "SSLMode", Message: "invalid SSL mode"}
	}

	if env == Production && c.SSLMode == "disable" {
		return &ValidationError{Field: "SSLMode", Message: "SSL cannot be disabled in production"}
	}

	return nil
}

// validateSecretSchema validates the structure of secrets stored in AWS Secrets Manager
func validateSecretSchema(secrets map[string]string, env Environment) error {
	requiredKeys := []string{
		"BACKEND_BASE_URL",
		"BACKEND_TOKEN",
	}
	// Database keys are only required when the secret configures PostgreSQL
	_, hasDB := secrets["DB_HOST"]
	if hasDB {
		requiredKeys = append(requiredKeys, "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE")
	}

	for _, key := range requiredKeys {
		if _, ok := secrets[key]; !ok {
			return &ValidationError{
				Field:   key,
				Message: "required secret key not found",
			}
		}
	}

	if !hasDB {
		return nil
	}

	if _, err := strconv.Atoi(secrets["DB_PORT"]); err != nil {
		return &ValidationError{
			Field:   "DB_PORT",
			Message: "port must be a valid number",
		}
	}

	if !validSSLModes[secrets["DB_SSLMODE"]] {
		return &ValidationError{
			Field:   "DB_SSLMODE",
			Message: "invalid SSL mode",
		}
	}

	// Stricter validation for production
	if env == Production {
		if strings.ToLower(secrets["DB_HOST"]) == "localhost" {
			return &ValidationError{
				Field:   "DB_HOST",
				Message: "localhost is not allowed in production",
			}
		}
		if secrets["DB_SSLMODE"] == "disable" {
			return &ValidationError{
				Field:   "DB_SSLMODE",
				Message: "SSL cannot be disabled in production",
			}
		}
		if err := validateProductionPassword("DB_PASSWORD", secrets["DB_PASSWORD"]); err != nil {
			return err
		}
	}

	return nil
}

// GetDatabaseConfig retrieves database configuration using the provided config provider
func GetDatabaseConfig(ctx context.Context, provider Provider) (*DatabaseConfig, error) {
	host, err := provider.GetString(ctx, "DB_HOST")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_HOST: %w", err)
	}

	port, err := provider.GetInt(ctx, "DB_PORT")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_PORT: %w", err)
	}

	user, err := provider.GetString(ctx, "DB_USER")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_USER: %w", err)
	}

	password, err := provider.GetSecret(ctx, "DB_PASSWORD")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_PASSWORD: %w", err)
	}

	dbname, err := provider.GetString(ctx, "DB_NAME")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_NAME: %w", err)
	}

	sslmode, err := provider.GetString(ctx, "DB_SSLMODE")
	if err != nil {
		sslmode = "disable" // Default to disable if not set
	}

	cfg := &DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		DBName:   dbname,
		SSLMode:  sslmode,
	}

	if err := cfg.Validate(provider.GetEnvironment()); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	return cfg, nil
}

// Page index policies for the backend list endpoints
const (
	PagePolicyLegacy = "legacy"
	PagePolicyOffset = "offset"
)

// BackendConfig holds the settings of the upstream REST backend
type BackendConfig struct {
	BaseURL    string
	Token      string
	PageSize   int
	PagePolicy string
	Timeout    time.Duration
}

// Validate checks if the backend configuration is valid
func (c *BackendConfig) Validate(env Environment) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ValidationError{Field: "BaseURL", Message: "base URL must be an absolute http or https URL"}
	}
	if env == Production && u.Scheme != "https" {
		return &ValidationError{Field: "BaseURL", Message: "https is required in production"}
	}
	if env == Production && c.Token == "" {
		return &ValidationError{Field: "Token", Message: "token cannot be empty in production"}
	}
	if c.PageSize <= 0 || c.PageSize > 1000 {
		return &ValidationError{Field: "PageSize", Message: "page size must be between 1 and 1000"}
	}
	if c.PagePolicy != PagePolicyLegacy && c.PagePolicy != PagePolicyOffset {
		return &ValidationError{Field: "PagePolicy", Message: "page policy must be legacy or offset"}
	}
	if c.Timeout <= 0 {
		return &ValidationError{Field: "Timeout", Message: "timeout must be positive"}
	}
	return nil
}

// GetBackendConfig retrieves backend configuration using the provided config provider
func GetBackendConfig(ctx context.Context, provider Provider) (*BackendConfig, error) {
	baseURL, err := provider.GetString(ctx, "BACKEND_BASE_URL")
	if err != nil {
		return nil, fmt.Errorf("failed to get BACKEND_BASE_URL: %w", err)
	}

	token, err := provider.GetSecret(ctx, "BACKEND_TOKEN")
	if err != nil {
		token = ""
	}

	cfg := &BackendConfig{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		PageSize:   intOrDefault(ctx, provider, "BACKEND_PAGE_SIZE", 100),
		PagePolicy: stringOrDefault(ctx, provider, "BACKEND_PAGE_POLICY", PagePolicyLegacy),
		Timeout:    time.Duration(intOrDefault(ctx, provider, "BACKEND_TIMEOUT", 15)) * time.Second,
	}

	if err := cfg.Validate(provider.GetEnvironment()); err != nil {
		return nil, fmt.Errorf("invalid backend configuration: %w", err)
	}
	return cfg, nil
}

// AppConfig holds the settings of the service process
type AppConfig struct {
	Environment     Environment
	HTTPAddr        string
	StoreDriver     string
	SQLitePath      string
	CacheDriver     string
	RefreshSchedule string
	CategoriesFile  string
	LogLevel        string
}

// GetAppConfig retrieves process configuration; every key has a default
func GetAppConfig(ctx context.Context, provider Provider) (*AppConfig, error) {
	cfg := &AppConfig{
		Environment:     provider.GetEnvironment(),
		HTTPAddr:        stringOrDefault(ctx, provider, "HTTP_ADDR", ":8080"),
		StoreDriver:     stringOrDefault(ctx, provider, "STORE_DRIVER", "memory"),
		SQLitePath:      stringOrDefault(ctx, provider, "SQLITE_PATH", ""),
		CacheDriver:     stringOrDefault(ctx, provider, "CACHE_DRIVER", "memory"),
		RefreshSchedule: stringOrDefault(ctx, provider, "REFRESH_SCHEDULE", ""),
		CategoriesFile:  stringOrDefault(ctx, provider, "CATEGORIES_FILE", ""),
		LogLevel:        stringOrDefault(ctx, provider, "LOG_LEVEL", "info"),
	}

	switch cfg.StoreDriver {
	case "memory", "sqlite", "postgres":
	default:
		return nil, &ValidationError{Field: "STORE_DRIVER", Message: "store driver must be memory, sqlite or postgres"}
	}
	switch cfg.CacheDriver {
	case "memory", "redis", "dynamodb":
	default:
		return nil, &ValidationError{Field: "CACHE_DRIVER", Message: "cache driver must be memory, redis or dynamodb"}
	}
	return cfg, nil
}

func stringOrDefault(ctx context.Context, provider Provider, key, def string) string {
	value, err := provider.GetString(ctx, key)
	if err != nil || value == "" {
		return def
	}
	return value
}

func intOrDefault(ctx context.Context, provider Provider, key string, def int) int {
	value, err := provider.GetInt(ctx, key)
	if err != nil {
		return def
	}
	return value
}
