package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// configKey describes one recognised configuration key. The config
// store itself is schemaless, so the CLI carries the catalogue.
type configKey struct {
	name   string
	kind   string // string, int, float, bool, list
	secret bool
	desc   string
}

var configKeys = []configKey{
	{name: "source.root", kind: "string", desc: "default directory to index"},
	{name: "source.include", kind: "list", desc: "glob patterns to include"},
	{name: "source.exclude", kind: "list", desc: "glob patterns to exclude"},
	{name: "chunking.size", kind: "int", desc: "target chunk size in characters"},
	{name: "chunking.overlap", kind: "int", desc: "overlap between adjacent chunks"},
	{name: "chunking.min_size", kind: "int", desc: "minimum chunk size before merging"},
	{name: "embedding.provider", kind: "string", desc: "embedding provider (ollama, openai, hash)"},
	{name: "embedding.model", kind: "string", desc: "embedding model name"},
	{name: "embedding.dimensions", kind: "int", desc: "vector dimensions override"},
	{name: "embedding.endpoint", kind: "string", desc: "provider base URL"},
	{name: "embedding.query_prefix", kind: "string", desc: "prefix prepended to query text"},
	{name: "embedding.document_prefix", kind: "string", desc: "prefix prepended to document text"},
	{name: "embedding.max_input", kind: "int", desc: "input byte cap per embedding call"},
	{name: "embedding.timeout", kind: "int", desc: "provider timeout in seconds"},
	{name: "storage.backend", kind: "string", desc: "storage backend (sqlite, postgres, memory)"},
	{name: "storage.path", kind: "string", desc: "sqlite database path"},
	{name: "storage.host", kind: "string", desc: "postgres host"},
	{name: "storage.port", kind: "int", desc: "postgres port"},
	{name: "storage.user", kind: "string", desc: "postgres user"},
	{name: "storage.password", kind: "string", secret: true, desc: "postgres password (QUARRY_PG_PASSWORD overrides)"},
	{name: "storage.dbname", kind: "string", desc: "postgres database name"},
	{name: "storage.sslmode", kind: "string", desc: "postgres sslmode"},
	{name: "indexing.workers", kind: "int", desc: "concurrent document workers"},
	{name: "indexing.retry_attempts", kind: "int", desc: "embedding retries per call"},
	{name: "indexing.breaker_threshold", kind: "int", desc: "failures before the embedder circuit opens"},
	{name: "indexing.rate_limit", kind: "float", desc: "embedding calls per second (0 = unlimited)"},
	{name: "search.top_k", kind: "int", desc: "default result count"},
	{name: "search.threshold", kind: "float", desc: "default similarity threshold"},
	{name: "search.context_size", kind: "int", desc: "default context chunks per side"},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Read and write keys in the configuration file.`,
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration keys",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}

func lookupConfigKey(name string) (configKey, bool) {
	for _, key := range configKeys {
		if key.name == name {
			return key, true
		}
	}
	return configKey{}, false
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	name := args[0]
	if _, ok := lookupConfigKey(name); !ok {
		return fmt.Errorf("unknown configuration key: %s (see 'quarry config list')", name)
	}

	value, ok := configStore.Get(name)
	if !ok {
		cmd.Printf("%s is not set\n", name)
		return nil
	}

	cmd.Printf("%v\n", value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	name := args[0]
	key, ok := lookupConfigKey(name)
	if !ok {
		return fmt.Errorf("unknown configuration key: %s (see 'quarry config list')", name)
	}

	value, err := coerceConfigValue(key, args[1])
	if err != nil {
		return err
	}

	if err := configStore.Set(name, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}

	cmd.Printf("%s set to %v\n", name, value)
	return nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	cmd.Printf("Configuration (%s)\n\n", configStore.Path())

	for _, key := range configKeys {
		value, ok := configStore.Get(key.name)
		display := "(not set)"
		if ok {
			display = fmt.Sprintf("%v", value)
			if key.secret {
				display = maskSecret(display)
			}
		}
		cmd.Printf("  %-28s %s\n", key.name, display)
		cmd.Printf("  %-28s   %s\n", "", key.desc)
	}

	return nil
}

// coerceConfigValue parses the raw argv string into the key's type.
func coerceConfigValue(key configKey, raw string) (any, error) {
	switch key.kind {
	case "int":
		value, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects an integer, got %q", key.name, raw)
		}
		return value, nil
	case "float":
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s expects a number, got %q", key.name, raw)
		}
		return value, nil
	case "bool":
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false, got %q", key.name, raw)
		}
		return value, nil
	case "list":
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				values = append(values, trimmed)
			}
		}
		return values, nil
	default:
		return raw, nil
	}
}

func maskSecret(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}
