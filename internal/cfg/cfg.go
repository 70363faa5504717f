package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/linnemanlabs/phalerts/internal/render"
)

// LegacyTokenEnv is the token variable read when no tracker token is
// configured otherwise.
const LegacyTokenEnv = "PHABRICATOR_TOKEN"

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds            int
	ShutdownBudgetSeconds   int
	BindHost                string
	APIPort                 int
	TrackerURL              string
	TrackerUser             string
	TrackerToken            string
	TrackerTimeoutSeconds   int
	TitleTemplate           string
	DescriptionTemplateFile string
	APIToken                string
	SlackWebhookURL         string
	EnvFile                 string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.StringVar(&c.BindHost, "bind-host", "localhost", "host to bind the webhook listener to")
	fs.IntVar(&c.APIPort, "http-port", 8292, "webhook listen TCP port (1..65535)")
	fs.StringVar(&c.TrackerURL, "tracker-url", "", "base URL of Phabricator, e.g. https://phabricator.example.com")
	fs.StringVar(&c.TrackerUser, "tracker-user", "", "Phabricator user owning the API token")
	fs.StringVar(&c.TrackerToken, "tracker-token", "", "Phabricator Conduit API token (falls back to "+LegacyTokenEnv+")")
	fs.IntVar(&c.TrackerTimeoutSeconds, "tracker-timeout-seconds", 30, "timeout for each Conduit API call (1..300)")
	fs.StringVar(&c.TitleTemplate, "title-template", render.DefaultTitle, "template for ticket titles; the 'title' query parameter overrides it")
	fs.StringVar(&c.DescriptionTemplateFile, "description-template-file", "", "file holding the ticket description template (empty = built-in)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on POST /alerts (empty = no auth)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for ticket notifications")
	fs.StringVar(&c.EnvFile, "env-file", "", "dotenv file loaded before reading environment variables")
}

// ApplyLegacyEnv fills TrackerToken from PHABRICATOR_TOKEN when unset.
func (c *Config) ApplyLegacyEnv(getenv func(string) string) {
	if c.TrackerToken == "" {
		c.TrackerToken = getenv(LegacyTokenEnv)
	}
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	if c.BindHost == "" {
		errs = append(errs, errors.New("BIND_HOST is required"))
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if err := validateHTTPURL(c.TrackerURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid TRACKER_URL: %w", err))
	}
	if c.TrackerUser == "" {
		errs = append(errs, errors.New("TRACKER_USER is required"))
	}
	if c.TrackerToken == "" {
		errs = append(errs, fmt.Errorf("TRACKER_TOKEN (or %s) is required", LegacyTokenEnv))
	}
	if c.TrackerTimeoutSeconds <= 0 || c.TrackerTimeoutSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid TRACKER_TIMEOUT_SECONDS %d (must be 1..300)", c.TrackerTimeoutSeconds))
	}

	if c.TitleTemplate == "" {
		errs = append(errs, errors.New("TITLE_TEMPLATE is required"))
	}
	if c.DescriptionTemplateFile != "" {
		if _, err := os.Stat(c.DescriptionTemplateFile); err != nil {
			errs = append(errs, fmt.Errorf("invalid DESCRIPTION_TEMPLATE_FILE: %w", err))
		}
	}

	// Slack is optional
	if c.SlackWebhookURL != "" {
		if err := validateHTTPURL(c.SlackWebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid SLACK_WEBHOOK_URL: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
