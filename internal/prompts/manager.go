// Package prompts manages user-editable synthesis prompt profiles and
// the context detection that drives dynamic prompt selection.
package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vthunder/recall/internal/logging"
)

// DefaultProfile is the built-in, regenerable profile name
const DefaultProfile = "default"

// ContextualRule maps a condition to a prompt template
type ContextualRule struct {
	When   string `yaml:"when"`
	Prompt string `yaml:"prompt"`
}

// Profile is one named bundle of prompt templates
type Profile struct {
	Daily      string           `yaml:"daily"`
	Weekly     string           `yaml:"weekly"`
	Monthly    string           `yaml:"monthly"`
	Contextual []ContextualRule `yaml:"contextual"`
}

// Manager loads and stores prompt profiles under a directory:
// default.yaml, custom/<name>.yaml, and an active marker file.
type Manager struct {
	dir         string
	customDir   string
	defaultFile string
	activeFile  string
}

// NewManager opens the profile directory, creating it and the default
// profile on first use
func NewManager(dir string) (*Manager, error) {
	m := &Manager{
		dir:         dir,
		customDir:   filepath.Join(dir, "custom"),
		defaultFile: filepath.Join(dir, "default.yaml"),
		activeFile:  filepath.Join(dir, "active_profile"),
	}

	if err := os.MkdirAll(m.customDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create prompts directory: %w", err)
	}

	if _, err := os.Stat(m.defaultFile); os.IsNotExist(err) {
		if err := m.writeProfile(m.defaultFile, builtinProfile()); err != nil {
			return nil, fmt.Errorf("failed to create default profile: %w", err)
		}
		logging.Info("prompts", "created default profile at %s", m.defaultFile)
	}

	return m, nil
}

func builtinProfile() *Profile {
	return &Profile{
		Daily:      DailyDefault,
		Weekly:     WeeklyDefault,
		Monthly:    MonthlyDefault,
		Contextual: defaultContextualRules,
	}
}

// ActiveProfile returns the persisted active profile name, defaulting to
// "default" when no choice was recorded
func (m *Manager) ActiveProfile() string {
	data, err := os.ReadFile(m.activeFile)
	if err != nil {
		return DefaultProfile
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return DefaultProfile
	}
	return name
}

// SetActiveProfile persists the active choice. The write goes through a
// temp file and rename so a crash never leaves a partial marker.
func (m *Manager) SetActiveProfile(name string) error {
	if name != DefaultProfile {
		if _, err := os.Stat(m.customFile(name)); err != nil {
			return fmt.Errorf("profile %q not found", name)
		}
	}
	tmp := m.activeFile + ".tmp"
	if err := os.WriteFile(tmp, []byte(name+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write active profile: %w", err)
	}
	if err := os.Rename(tmp, m.activeFile); err != nil {
		return fmt.Errorf("failed to switch active profile: %w", err)
	}
	return nil
}

// GetPrompt resolves the concrete prompt text. profile "" means the
// persisted active profile. For promptType "contextual" with a context,
// the first matching rule wins with {{var}} interpolation; no match
// falls back to the daily template. An unknown promptType or missing
// template also falls back to daily rather than failing.
func (m *Manager) GetPrompt(promptType, profile string, ctx *Context) string {
	if profile == "" {
		profile = m.ActiveProfile()
	}

	p := m.loadProfile(profile)

	if promptType == "contextual" && ctx != nil {
		for _, rule := range p.Contextual {
			if rule.When == "" || rule.Prompt == "" {
				continue
			}
			if evaluateCondition(rule.When, *ctx) {
				return interpolate(rule.Prompt, ctx.Variables())
			}
		}
		promptType = "daily"
	}

	switch promptType {
	case "daily":
		if p.Daily != "" {
			return p.Daily
		}
	case "weekly":
		if p.Weekly != "" {
			return p.Weekly
		}
	case "monthly":
		if p.Monthly != "" {
			return p.Monthly
		}
	default:
		logging.Warn("prompts", "unknown prompt type %q, using daily", promptType)
	}
	if p.Daily != "" {
		return p.Daily
	}
	return DailyDefault
}

// GetProfile returns all templates for a profile (active when "")
func (m *Manager) GetProfile(name string) *Profile {
	if name == "" {
		name = m.ActiveProfile()
	}
	return m.loadProfile(name)
}

// SavePrompt updates one template in a profile
func (m *Manager) SavePrompt(profile, promptType, content string) error {
	path := m.profilePath(profile)
	p := m.loadProfile(profile)

	switch promptType {
	case "daily":
		p.Daily = content
	case "weekly":
		p.Weekly = content
	case "monthly":
		p.Monthly = content
	default:
		return fmt.Errorf("unknown prompt type %q", promptType)
	}
	return m.writeProfile(path, p)
}

// ListProfiles returns the default profile plus all custom profiles
func (m *Manager) ListProfiles() []string {
	profiles := []string{DefaultProfile}
	entries, err := os.ReadDir(m.customDir)
	if err != nil {
		return profiles
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".yaml") {
			profiles = append(profiles, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	return profiles
}

// CreateProfile clones base into a new custom profile
func (m *Manager) CreateProfile(name, base string) error {
	if name == DefaultProfile {
		return fmt.Errorf("cannot create a profile named %q", DefaultProfile)
	}
	if base == "" {
		base = DefaultProfile
	}
	path := m.customFile(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("profile %q already exists", name)
	}
	return m.writeProfile(path, m.loadProfile(base))
}

// DeleteProfile removes a custom profile; the active pointer falls back
// to default if it pointed at the deleted profile
func (m *Manager) DeleteProfile(name string) error {
	if name == DefaultProfile {
		return fmt.Errorf("cannot delete the default profile")
	}
	if err := os.Remove(m.customFile(name)); err != nil {
		return fmt.Errorf("failed to delete profile %q: %w", name, err)
	}
	if m.ActiveProfile() == name {
		return m.SetActiveProfile(DefaultProfile)
	}
	return nil
}

func (m *Manager) customFile(name string) string {
	return filepath.Join(m.customDir, name+".yaml")
}

func (m *Manager) profilePath(name string) string {
	if name == DefaultProfile {
		return m.defaultFile
	}
	return m.customFile(name)
}

// loadProfile reads a profile, degrading to the built-in default on any
// failure so synthesis never blocks on configuration problems
func (m *Manager) loadProfile(name string) *Profile {
	path := m.profilePath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if name != DefaultProfile {
			logging.Warn("prompts", "profile %q not found, using default", name)
			return m.loadProfile(DefaultProfile)
		}
		return builtinProfile()
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		logging.Warn("prompts", "failed to parse %s: %v, using built-in templates", path, err)
		return builtinProfile()
	}
	return &p
}

func (m *Manager) writeProfile(path string, p *Profile) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// evaluateCondition checks a rule condition against the context.
// Supported forms: "key > n", "key < n", "key == value", "flag_name".
func evaluateCondition(condition string, ctx Context) bool {
	switch {
	case strings.Contains(condition, ">"):
		key, val, ok := splitCondition(condition, ">")
		if !ok {
			return false
		}
		left, found := ctx.value(key)
		return found && left > val
	case strings.Contains(condition, "<"):
		key, val, ok := splitCondition(condition, "<")
		if !ok {
			return false
		}
		left, found := ctx.value(key)
		return found && left < val
	case strings.Contains(condition, "=="):
		parts := strings.SplitN(condition, "==", 2)
		key := strings.TrimSpace(parts[0])
		want := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if left, found := ctx.value(key); found {
			return strconv.FormatFloat(left, 'f', -1, 64) == want
		}
		return false
	default:
		return ctx.flag(strings.TrimSpace(condition))
	}
}

func splitCondition(condition, op string) (string, float64, bool) {
	parts := strings.SplitN(condition, op, 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return "", 0, false
	}
	return strings.TrimSpace(parts[0]), val, true
}

var templateVar = regexp.MustCompile(`\{\{(\w+)\}\}`)

// interpolate replaces {{var}} placeholders, leaving unknown vars intact
func interpolate(prompt string, vars map[string]string) string {
	return templateVar.ReplaceAllStringFunc(prompt, func(match string) string {
		name := templateVar.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}
