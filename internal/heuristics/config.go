package heuristics

// Config controls which heuristics steps run and their parameters. Every
// field has a zero-value-safe default applied by Apply.
type Config struct {
	KeepLastNTurns int
	// DisableToolMinimization turns off tool schema minimization, which is
	// on by default (mirroring the reference implementation's
	// enable_tool_minimization=True default) — the zero value keeps it on.
	DisableToolMinimization bool
	ToolAllowlist           []string
	Model                   string
}

func (c Config) withDefaults() Config {
	if c.KeepLastNTurns == 0 {
		c.KeepLastNTurns = 4
	}
	if len(c.ToolAllowlist) == 0 {
		c.ToolAllowlist = []string{"*"}
	}
	if c.Model == "" {
		c.Model = "gpt-4"
	}
	return c
}
