package biophys

var Arguments = arguments

// NewFilter exposes the log filter selected for the engine command.
func (e *ExecEngine) NewFilter() LogFilter { return e.filter() }
