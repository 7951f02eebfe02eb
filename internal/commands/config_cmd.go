package commands

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"m2kqa/internal/config"
	"m2kqa/internal/output"
	"m2kqa/internal/ui"
)

// RunConfigShow prints the effective configuration with tokens masked.
func RunConfigShow() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	red := cfg.Redacted()
	var textErr error
	output.Print(red, func() {
		data, err := yaml.Marshal(red)
		if err != nil {
			textErr = err
			return
		}
		fmt.Fprintf(ui.Out, "# %s\n%s", config.ConfigPath, data)
	})
	return textErr
}

// RunConfigSet sets a configuration value.
func RunConfigSet(key, value string) error {
	if err := config.Set(key, value); err != nil {
		return err
	}
	if key == "token" || key == "serve-tokens" {
		value = "********"
	}
	output.Print(map[string]string{"key": key, "value": value}, func() {
		ui.ShowSuccess("%s set to: %s", key, value)
	})
	return nil
}

// RunConfigPath prints the configuration file path.
func RunConfigPath() {
	output.Print(map[string]string{"path": config.ConfigPath}, func() {
		fmt.Fprintln(ui.Out, config.ConfigPath)
	})
}
