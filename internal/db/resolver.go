package db

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/movierank-dev/movierank/internal/config"
	"github.com/movierank-dev/movierank/pkg/movierank"
)

// GranularConnFlags represents connection parameters from CLI flags.
// These follow PostgreSQL standard flag conventions (-h, -p, -U, -d).
//
// Note: Password is NOT included as a CLI flag for security reasons.
// Use one of these methods instead:
//  1. $PGPASSWORD environment variable
//  2. .pgpass file (PostgreSQL standard)
//  3. Connection string with embedded password
type GranularConnFlags struct {
	Host     string
	Port     int
	Username string
	Database string
	SSLMode  string
}

// AzureFlags represents Azure Entra ID CLI flags.
// These override the corresponding AZURE_* environment variables.
// Note: Client secret is NOT included as a CLI flag for security reasons.
// Use AZURE_CLIENT_SECRET environment variable instead.
type AzureFlags struct {
	TenantID string // Overrides AZURE_TENANT_ID
	ClientID string // Overrides AZURE_CLIENT_ID
}

// IsEmpty returns true if no Azure flags were provided.
func (a *AzureFlags) IsEmpty() bool {
	return a == nil || (a.TenantID == "" && a.ClientID == "")
}

// IsEmpty returns true if no connection-related granular flags were provided.
// The database flag is excluded because it can override the database named
// in a connection string.
func (g *GranularConnFlags) IsEmpty() bool {
	return g.Host == "" && g.Port == 0 && g.Username == "" && g.SSLMode == ""
}

// EnvVars represents PostgreSQL standard environment variables.
// See: https://www.postgresql.org/docs/current/libpq-envars.html
type EnvVars struct {
	PGHOST       string
	PGPORT       string
	PGUSER       string
	PGPASSWORD   string
	PGDATABASE   string
	PGSSLMODE    string
	DATABASE_URL string // Full connection string (Heroku/Rails convention)

	// Azure Entra ID environment variables (Azure SDK standard names)
	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
}

// LoadFromEnvironment loads PostgreSQL and cloud provider environment variables.
// This follows standard PostgreSQL client behavior and Azure SDK conventions.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		PGHOST:              os.Getenv("PGHOST"),
		PGPORT:              os.Getenv("PGPORT"),
		PGUSER:              os.Getenv("PGUSER"),
		PGPASSWORD:          os.Getenv("PGPASSWORD"),
		PGDATABASE:          os.Getenv("PGDATABASE"),
		PGSSLMODE:           os.Getenv("PGSSLMODE"),
		DATABASE_URL:        os.Getenv("DATABASE_URL"),
		AZURE_TENANT_ID:     os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:     os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET: os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// HasAzureCredentials returns true if Azure Entra ID environment variables are set.
func (e *EnvVars) HasAzureCredentials() bool {
	return e.AZURE_TENANT_ID != "" || e.AZURE_CLIENT_ID != ""
}

// ResolveConnectionParams resolves connection parameters using PostgreSQL-standard precedence:
//
//  1. Connection string flag (--connection) - if provided, parse and use directly
//  2. Granular flags (-h, -p, -U, -d) - if any provided, build config from flags
//  3. Environment variables (PGHOST, PGPORT, etc.) - fallback if no flags
//  4. DATABASE_URL environment variable - fallback if no granular params
//  5. movierank.yaml connection section
//  6. Defaults (localhost:5433, prefer SSL)
//
// Azure Entra ID Authentication:
// If azureFlags are provided OR Azure environment variables are set (AZURE_TENANT_ID, etc.),
// the AuthMethod is set to AzureEntraID and credentials are attached to the config.
// CLI flags take precedence over environment variables.
//
// Returns:
//   - ConnectionConfig with all parameters resolved
//   - Management database name (for CREATE DATABASE operations)
//   - Error if configuration is invalid or conflicting
//
// Conflict Detection:
// Returns error if BOTH --connection flag AND granular flags are provided.
func ResolveConnectionParams(
	connStringFlag string,
	granularFlags *GranularConnFlags,
	azureFlags *AzureFlags,
	envVars *EnvVars,
	projectConfig *config.ProjectConfig,
) (*movierank.ConnectionConfig, string, error) {
	if granularFlags == nil {
		granularFlags = &GranularConnFlags{}
	}
	if azureFlags == nil {
		azureFlags = &AzureFlags{}
	}
	if envVars == nil {
		envVars = &EnvVars{}
	}

	// Connection string XOR granular flags
	if connStringFlag != "" && !granularFlags.IsEmpty() {
		return nil, "", fmt.Errorf(
			"cannot specify both --connection and granular flags (-h, -p, -U)\n" +
				"Choose one approach:\n" +
				"  1. Connection string: --connection \"postgresql://user@localhost:5433/movies\"\n" +
				"  2. Granular flags: -h localhost -p 5433 -U myuser -d movies\n" +
				"  3. Environment variables: export PGHOST=localhost PGPORT=5433 PGUSER=myuser",
		)
	}

	var cfg *movierank.ConnectionConfig
	var managementDB string
	var err error

	switch {
	case connStringFlag != "":
		cfg, managementDB, err = resolveFromConnectionString(connStringFlag, envVars)
	case granularFlags.IsEmpty() && envVars.DATABASE_URL != "":
		cfg, managementDB, err = resolveFromConnectionString(envVars.DATABASE_URL, envVars)
	default:
		cfg, managementDB, err = resolveFromGranularParams(granularFlags, envVars, projectConfig)
	}

	if err != nil {
		return nil, "", err
	}

	applyAzureAuth(cfg, azureFlags, envVars)

	return cfg, managementDB, nil
}

// applyAzureAuth sets Azure Entra ID authentication on the config if credentials are available.
// CLI flags take precedence over environment variables.
func applyAzureAuth(cfg *movierank.ConnectionConfig, flags *AzureFlags, env *EnvVars) {
	tenantID := flags.TenantID
	if tenantID == "" {
		tenantID = env.AZURE_TENANT_ID
	}

	clientID := flags.ClientID
	if clientID == "" {
		clientID = env.AZURE_CLIENT_ID
	}

	// Client secret only comes from env var (no flag for security)
	clientSecret := env.AZURE_CLIENT_SECRET

	if tenantID != "" || clientID != "" {
		cfg.AuthMethod = movierank.AuthMethodAzureEntraID
		cfg.AzureTenantID = tenantID
		cfg.AzureClientID = clientID
		cfg.AzureClientSecret = clientSecret
	}
}

// resolveFromConnectionString parses a connection string and derives the management database.
//
// The database component of the connection string serves dual purpose:
//  1. Initial connection target (for CREATE DATABASE during init)
//  2. Management database (returned separately)
//
// Environment variables are applied as fallbacks for parameters not specified
// in the connection string (following PostgreSQL standard behavior).
func resolveFromConnectionString(connStr string, envVars *EnvVars) (*movierank.ConnectionConfig, string, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, "", fmt.Errorf("invalid connection string: %w", err)
	}

	if cfg.SSLMode == "" && envVars != nil && envVars.PGSSLMODE != "" {
		cfg.SSLMode = envVars.PGSSLMODE
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "prefer"
	}

	managementDB := cfg.Database
	if managementDB == "" {
		managementDB = movierank.DefaultManagementDB
	}

	return cfg, managementDB, nil
}

// resolveFromGranularParams builds ConnectionConfig from granular flags and environment variables.
//
// Precedence for each parameter (following PostgreSQL standards):
//  1. CLI flag (highest priority)
//  2. Environment variable
//  3. movierank.yaml
//  4. Default value (lowest priority)
//
// For granular parameters, the management database is always "postgres".
func resolveFromGranularParams(
	flags *GranularConnFlags,
	envVars *EnvVars,
	projectConfig *config.ProjectConfig,
) (*movierank.ConnectionConfig, string, error) {
	cfg := &movierank.ConnectionConfig{
		AuthMethod:       movierank.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	var pc config.ConnectionConfig
	if projectConfig != nil {
		pc = projectConfig.Connection
	}

	// Host: flag > PGHOST > movierank.yaml > default
	cfg.Host = flags.Host
	if cfg.Host == "" {
		cfg.Host = envVars.PGHOST
	}
	if cfg.Host == "" {
		cfg.Host = pc.Host
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}

	// Port: flag > PGPORT > movierank.yaml > default
	if flags.Port != 0 {
		cfg.Port = flags.Port
	} else if envVars.PGPORT != "" {
		port, err := strconv.Atoi(envVars.PGPORT)
		if err != nil {
			return nil, "", fmt.Errorf("invalid $PGPORT value '%s': must be an integer", envVars.PGPORT)
		}
		cfg.Port = port
	} else if pc.Port != 0 {
		cfg.Port = pc.Port
	} else {
		cfg.Port = movierank.DefaultPort
	}

	// Username: flag > PGUSER > movierank.yaml > current OS user
	cfg.Username = flags.Username
	if cfg.Username == "" {
		cfg.Username = envVars.PGUSER
	}
	if cfg.Username == "" {
		cfg.Username = pc.Username
	}
	if cfg.Username == "" {
		if currentUser := os.Getenv("USER"); currentUser != "" {
			cfg.Username = currentUser
		} else if currentUser := os.Getenv("USERNAME"); currentUser != "" {
			cfg.Username = currentUser
		}
	}

	cfg.Password = envVars.PGPASSWORD

	// Database: flag > PGDATABASE > movierank.yaml
	cfg.Database = flags.Database
	if cfg.Database == "" {
		cfg.Database = envVars.PGDATABASE
	}
	if cfg.Database == "" {
		cfg.Database = pc.Database
	}

	// SSLMode: flag > PGSSLMODE > movierank.yaml > default
	cfg.SSLMode = flags.SSLMode
	if cfg.SSLMode == "" {
		cfg.SSLMode = envVars.PGSSLMODE
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = pc.SSLMode
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "prefer"
	}

	if err := applyProjectAuth(cfg, &pc); err != nil {
		return nil, "", err
	}

	return cfg, movierank.DefaultManagementDB, nil
}

// applyProjectAuth applies the auth_method section of movierank.yaml.
// Azure environment variables and the cloud CLI flags are applied after
// resolution and overwrite these values, keeping the flag > env > yaml
// precedence.
func applyProjectAuth(cfg *movierank.ConnectionConfig, pc *config.ConnectionConfig) error {
	switch strings.ToLower(pc.AuthMethod) {
	case "", "standard":
	case "aws_iam":
		cfg.AuthMethod = movierank.AuthMethodAWSIAM
		cfg.AWSRegion = pc.AWSRegion
	case "google_iam":
		cfg.AuthMethod = movierank.AuthMethodGoogleIAM
		cfg.GoogleInstance = pc.GoogleInstance
	case "azure_entra_id":
		cfg.AuthMethod = movierank.AuthMethodAzureEntraID
		cfg.AzureTenantID = pc.AzureTenantID
		cfg.AzureClientID = pc.AzureClientID
	default:
		return fmt.Errorf("invalid auth_method %q in %s: expected standard, aws_iam, google_iam or azure_entra_id",
			pc.AuthMethod, config.ConfigFileName)
	}
	return nil
}
