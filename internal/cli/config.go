package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/pthm/rowguard"
)

const (
	maxWalkDepth = 25
)

// Config represents the rowguard configuration from rowguard.yaml.
type Config struct {
	// Database configuration, used by the exec command
	Database DatabaseConfig `mapstructure:"database" json:"database"`

	Rewrite RewriteConfig `mapstructure:"rewrite" json:"rewrite"`
	Rules   RulesConfig   `mapstructure:"rules" json:"rules"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL      string `mapstructure:"url" json:"url,omitempty"`
	Host     string `mapstructure:"host" json:"host,omitempty"`
	Port     int    `mapstructure:"port" json:"port"`
	Name     string `mapstructure:"name" json:"name,omitempty"`
	User     string `mapstructure:"user" json:"user,omitempty"`
	Password string `mapstructure:"password" json:"-"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode,omitempty"`
}

// RewriteConfig holds rewriter settings shared by every rule.
type RewriteConfig struct {
	QualifyColumns bool     `mapstructure:"qualify_columns" json:"qualify_columns"`
	IgnoreTables   []string `mapstructure:"ignore_tables" json:"ignore_tables"`
	IgnoreSchemas  []string `mapstructure:"ignore_schemas" json:"ignore_schemas"`
}

// RulesConfig holds the built-in rules. A rule without values is disabled.
type RulesConfig struct {
	Tenant TenantConfig `mapstructure:"tenant" json:"tenant"`
	Dept   DeptConfig   `mapstructure:"dept" json:"dept"`
}

// TenantConfig configures rowguard.TenantRule.
type TenantConfig struct {
	Column       string   `mapstructure:"column" json:"column"`
	ID           string   `mapstructure:"id" json:"id,omitempty"`
	IgnoreTables []string `mapstructure:"ignore_tables" json:"ignore_tables"`
}

// DeptConfig configures rowguard.DeptRule. Tables entries are "table" or
// "table:column" to override the filter column for that table.
type DeptConfig struct {
	Column string   `mapstructure:"column" json:"column"`
	Tables []string `mapstructure:"tables" json:"tables"`
	IDs    []string `mapstructure:"ids" json:"ids"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	// 1. Set defaults first (lowest precedence)
	setDefaults(v)

	// 2. Set up environment variable binding
	v.SetEnvPrefix("ROWGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 3. Find and load config file
	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	// 4. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")

	// Rewrite defaults
	v.SetDefault("rewrite.qualify_columns", false)
	v.SetDefault("rewrite.ignore_tables", []string{})
	v.SetDefault("rewrite.ignore_schemas", []string{"pg_catalog", "information_schema"})

	// Rule defaults
	v.SetDefault("rules.tenant.column", "tenant_id")
	v.SetDefault("rules.tenant.id", "")
	v.SetDefault("rules.tenant.ignore_tables", []string{})
	v.SetDefault("rules.dept.column", "dept_id")
	v.SetDefault("rules.dept.tables", []string{})
	v.SetDefault("rules.dept.ids", []string{})
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for rowguard.yaml or rowguard.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Auto-discovery: walk up to .git or maxWalkDepth
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"rowguard.yaml", "rowguard.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Check for repo boundary (.git file or directory)
		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			break // Stop at repo root
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached filesystem root
		}
		dir = parent
	}

	return "", nil // No config found, use defaults
}

// DSN returns the database connection string.
// If database.url is set, it's returned directly.
// Otherwise, builds a DSN from discrete fields.
func (c *Config) DSN() (string, error) {
	db := c.Database

	if db.URL != "" {
		return db.URL, nil
	}

	if db.Host == "" {
		return "", fmt.Errorf("database.host is required when database.url is not set")
	}
	if db.Name == "" {
		return "", fmt.Errorf("database.name is required when database.url is not set")
	}
	if db.User == "" {
		return "", fmt.Errorf("database.user is required when database.url is not set")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   "/" + db.Name,
	}

	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	} else {
		u.User = url.User(db.User)
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// RuleSet builds the configured rules. The tenant rule is enabled by a
// tenant id, the department rule by at least one table.
func (c *Config) RuleSet() []rowguard.Rule {
	var rules []rowguard.Rule

	if t := c.Rules.Tenant; t.ID != "" {
		rules = append(rules, rowguard.TenantRule{
			Column:       t.Column,
			TenantID:     Literal(t.ID),
			IgnoreTables: t.IgnoreTables,
		})
	}

	if d := c.Rules.Dept; len(d.Tables) > 0 {
		tables := make(map[string]string, len(d.Tables))
		for _, entry := range d.Tables {
			name, column, _ := strings.Cut(entry, ":")
			tables[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(column)
		}
		ids := make([]any, len(d.IDs))
		for i, id := range d.IDs {
			ids[i] = Literal(id)
		}
		rules = append(rules, rowguard.DeptRule{
			Column:  d.Column,
			Tables:  tables,
			DeptIDs: ids,
		})
	}

	return rules
}

// Literal converts a configured value to an integer when it parses as one,
// so that numeric ids render as numeric constants.
func Literal(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
