package application

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "45s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Selectors holds the CSS selectors the session and acquirer drive. The
// portal markup changes from time to time, so these live in config rather
// than code.
type Selectors struct {
	EmailField     string `yaml:"email_field"`
	PasswordField  string `yaml:"password_field"`
	SubmitButton   string `yaml:"submit_button"`
	ErrorBanner    string `yaml:"error_banner"`
	ReportReady    string `yaml:"report_ready"`
	RangeDropdown  string `yaml:"range_dropdown"`
	RangeOption    string `yaml:"range_option"`
	CustomRange    string `yaml:"custom_range"`
	CustomStart    string `yaml:"custom_start"`
	CustomEnd      string `yaml:"custom_end"`
	CustomApply    string `yaml:"custom_apply"`
	DownloadButton string `yaml:"download_button"`
}

// Preset names a range option the portal exposes and the span it covers.
type Preset struct {
	Label  string `yaml:"label"`
	Months int    `yaml:"months"`
}

// Timeouts bounds each discrete session and acquisition step.
type Timeouts struct {
	Authentication Duration `yaml:"authentication"`
	Navigation     Duration `yaml:"navigation"`
	Strategy       Duration `yaml:"strategy"`
	Download       Duration `yaml:"download"`
}

// Profile describes one portal deployment: URLs, credentials, selectors,
// range presets and step timeouts.
type Profile struct {
	LoginURL                  string    `yaml:"login_url"`
	AuthenticatedURLSubstring string    `yaml:"authenticated_url_substring"`
	ReportURL                 string    `yaml:"report_url"`
	Email                     string    `yaml:"-"`
	Password                  string    `yaml:"-"`
	Selectors                 Selectors `yaml:"selectors"`
	Presets                   []Preset  `yaml:"presets"`
	Timeouts                  Timeouts  `yaml:"timeouts"`
	MinFileBytes              int64     `yaml:"min_file_bytes"`
	DownloadDir               string    `yaml:"download_dir"`
}

// LoadProfile builds a Profile from defaults, an optional YAML file named
// by PORTAL_PROFILE, and credentials from the environment.
func LoadProfile() (Profile, error) {
	profile := Profile{
		LoginURL:                  getenvDefault("PORTAL_LOGIN_URL", "https://app.polaroo.com/login"),
		AuthenticatedURLSubstring: getenvDefault("PORTAL_AUTH_URL_SUBSTRING", "/dashboard"),
		ReportURL:                 getenvDefault("PORTAL_REPORT_URL", "https://app.polaroo.com/report"),
		Email:                     os.Getenv("PORTAL_EMAIL"),
		Password:                  os.Getenv("PORTAL_PASSWORD"),
		Selectors: Selectors{
			EmailField:     `input[type="email"]`,
			PasswordField:  `input[type="password"]`,
			SubmitButton:   `button[type="submit"]`,
			ErrorBanner:    `.alert-danger`,
			ReportReady:    `.report-table`,
			RangeDropdown:  `ng-select.range-selector`,
			RangeOption:    `.ng-option`,
			CustomRange:    `.custom-range-toggle`,
			CustomStart:    `input[name="start"]`,
			CustomEnd:      `input[name="end"]`,
			CustomApply:    `.custom-range-apply`,
			DownloadButton: `button.download-report`,
		},
		Presets: []Preset{
			{Label: "Last month", Months: 1},
			{Label: "Last 3 months", Months: 3},
			{Label: "Last 6 months", Months: 6},
			{Label: "Last year", Months: 12},
		},
		Timeouts: Timeouts{
			Authentication: Duration(45 * time.Second),
			Navigation:     Duration(30 * time.Second),
			Strategy:       Duration(20 * time.Second),
			Download:       Duration(90 * time.Second),
		},
		MinFileBytes: 256,
		DownloadDir:  getenvDefault("PORTAL_DOWNLOAD_DIR", os.TempDir()),
	}

	if path := os.Getenv("PORTAL_PROFILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return profile, err
		}
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return profile, err
		}
	}

	if profile.Email == "" || profile.Password == "" {
		return profile, errors.New("portal: PORTAL_EMAIL and PORTAL_PASSWORD required")
	}
	return profile, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
