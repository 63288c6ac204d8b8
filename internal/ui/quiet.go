package ui

// quietPresenter prints nothing. Errors still reach the operator through
// the logger and the command's exit status.
type quietPresenter struct{}

// Run drains events so the engine's lifecycle sends never stall.
func (quietPresenter) Run(events <-chan Event) error {
	for range events {
	}
	return nil
}

func (quietPresenter) Summary() string { return "" }
