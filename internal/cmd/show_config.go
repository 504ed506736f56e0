package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

func showCurrentConfig(w io.Writer, cfg any, validationErr error) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if validationErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: Configuration validation failed: %v\n", validationErr)
		fmt.Fprintf(os.Stderr, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Fprintf(w, "# Current sitescope configuration\n")
	fmt.Fprintf(w, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "# Configuration file search paths: ./%s.yml\n", defaultConfigName)
	fmt.Fprintf(w, "# Environment variables prefix: %s_\n\n", envPrefix)

	fmt.Fprint(w, string(yamlData))

	fmt.Fprintf(w, "\n# Configuration source priority:\n")
	fmt.Fprintf(w, "# 1. Command-line arguments (highest priority)\n")
	fmt.Fprintf(w, "# 2. Environment variables (%s_ prefix)\n", envPrefix)
	fmt.Fprintf(w, "# 3. Configuration file (%s.yml)\n", defaultConfigName)
	fmt.Fprintf(w, "# 4. Default values (lowest priority)\n")

	return nil
}
