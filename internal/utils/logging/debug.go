package logging

// Debug levels accepted by SetLevel.
const (
	MinLevel = 0
	MaxLevel = 5
)

// SetLevel clamps and stores the debug level.
func (pl *ProgramLogger) SetLevel(l int) {
	if pl == nil {
		return
	}
	if l < MinLevel {
		l = MinLevel
	}
	if l > MaxLevel {
		l = MaxLevel
	}
	pl.mu.Lock()
	pl.level = l
	pl.mu.Unlock()
}

// Level returns the current debug level.
func (pl *ProgramLogger) Level() int {
	if pl == nil {
		return MinLevel
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.level
}
