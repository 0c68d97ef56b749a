package flow

// Flow represents a compiled flow file.
type Flow struct {
	SourcePath string    // Path to the source file
	Config     Config    // Flow configuration (appId, tags, etc.)
	Commands   []Command // Compiled list: applyConfiguration, defineVariables, then the body
}

// Name returns the configured name or the source path.
func (f *Flow) Name() string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	return f.SourcePath
}

// Config represents flow-level configuration.
type Config struct {
	AppID          string                 `yaml:"appId"`
	URL            string                 `yaml:"url"` // Web app URL (alternative to appId)
	Name           string                 `yaml:"name"`
	Tags           []string               `yaml:"tags"`
	Env            map[string]string      `yaml:"env"`
	Ext            map[string]interface{} `yaml:"ext"`
	OnFlowStart    []Command              `yaml:"-"` // Lifecycle hook: runs before commands
	OnFlowComplete []Command              `yaml:"-"` // Lifecycle hook: runs after commands, always
}

// Evaluate returns a copy with appId and name evaluated. Hook commands are
// evaluated lazily when they are dispatched.
func (c *Config) Evaluate(e *Evaluator) *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.AppID = e.String(c.AppID)
	out.Name = e.String(c.Name)
	return &out
}
