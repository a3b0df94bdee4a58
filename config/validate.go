package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks tags first, then the rules that span fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]struct{}, len(cfg.Components))
	for i, c := range cfg.Components {
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("components[%d]: duplicate name %q", i, c.Name)
		}
		seen[c.Name] = struct{}{}

		if c.Timeout >= cfg.Interval {
			return fmt.Errorf("component %s: timeout %s must be shorter than interval %s", c.Name, c.Timeout, cfg.Interval)
		}

		switch c.Kind {
		case "http", "https":
			if c.URL == "" {
				return fmt.Errorf("component %s: url is required for kind %s", c.Name, c.Kind)
			}
			u, err := url.Parse(c.URL)
			if err != nil {
				return fmt.Errorf("component %s: %w", c.Name, err)
			}
			if u.Scheme != c.Kind {
				return fmt.Errorf("component %s: url scheme %q does not match kind %s", c.Name, u.Scheme, c.Kind)
			}
		case "tcp":
			if c.Host == "" || c.Port == 0 {
				return fmt.Errorf("component %s: host and port are required for kind tcp", c.Name)
			}
		case "icmp":
			if c.Host == "" {
				return fmt.Errorf("component %s: host is required for kind icmp", c.Name)
			}
		}
	}
	return nil
}
