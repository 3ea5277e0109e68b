package config

import (
	"github.com/spf13/pflag"
)

// flagTargets maps flag names to the config fields they override.
func (c *Config) flagTargets() map[string]any {
	return map[string]any{
		"log-level":    &c.Log.Level,
		"log-format":   &c.Log.Format,
		"work-dir":     &c.Paths.WorkDir,
		"port":         &c.Flash.Port,
		"baud":         &c.Flash.Baud,
		"avrdude":      &c.Tools.AvrdudePath,
		"auto-baud":    &c.Flash.AutoBaud,
		"api-url":      &c.Firmware.APIURL,
		"prerelease":   &c.Update.Prerelease,
		"http-timeout": &c.HTTP.TimeoutSeconds,
	}
}

// ApplyFlags copies explicitly set flags over the loaded values, so the
// final precedence is flags > env > file > defaults. Unknown or unchanged
// flags are ignored.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	targets := c.flagTargets()
	var firstErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if !f.Changed || firstErr != nil {
			return
		}
		target, ok := targets[f.Name]
		if !ok {
			return
		}
		var err error
		switch p := target.(type) {
		case *string:
			*p, err = fs.GetString(f.Name)
		case *int:
			*p, err = fs.GetInt(f.Name)
		case *bool:
			*p, err = fs.GetBool(f.Name)
		}
		if err != nil {
			firstErr = err
		}
	})
	if firstErr != nil {
		return firstErr
	}
	expandPaths(c)
	return c.Validate()
}
