package display

import "sync"

// Shown is one recorded Show call.
type Shown struct {
	Line1 string
	Line2 string
}

// Fake records display calls for test assertions.
type Fake struct {
	mu sync.Mutex

	// Shows contains every Show call in order.
	Shows []Shown

	// PowerLog contains every Power call in order.
	PowerLog []bool

	// Closed tracks if Close was called.
	Closed bool

	// ShowError, if set, is returned by Show.
	ShowError error
}

// NewFake creates a Fake display.
func NewFake() *Fake {
	return &Fake{}
}

// Show records the lines.
func (f *Fake) Show(line1, line2 string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ShowError != nil {
		return f.ShowError
	}
	f.Shows = append(f.Shows, Shown{Line1: line1, Line2: line2})
	return nil
}

// Power records the power state.
func (f *Fake) Power(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PowerLog = append(f.PowerLog, on)
	return nil
}

// Close marks the display as closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Last returns the most recent Show call, or a zero Shown.
func (f *Fake) Last() Shown {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Shows) == 0 {
		return Shown{}
	}
	return f.Shows[len(f.Shows)-1]
}

// SecondLines returns every line2 shown, for scripting assertions.
func (f *Fake) SecondLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.Shows))
	for i, s := range f.Shows {
		lines[i] = s.Line2
	}
	return lines
}
