package flow

// Destination is where a router sends control: either a named step or the end
// of the flow.
type Destination struct {
	step      string
	terminate bool
}

// Terminate ends the flow once the current pass has been merged.
var Terminate = Destination{terminate: true}

// To sends control to the named step.
func To(step string) Destination { return Destination{step: step} }

func (d Destination) Step() string      { return d.step }
func (d Destination) IsTerminate() bool { return d.terminate }

func (d Destination) String() string {
	if d.terminate {
		return "<terminate>"
	}
	return d.step
}

// Routes maps the labels a router may return to their destinations.
type Routes map[string]Destination

// Resolve maps a router label to a destination. An empty label that is not in
// the table terminates the flow; any other unknown label is an error.
func Resolve(router, label string, routes Routes) (Destination, error) {
	if dest, ok := routes[label]; ok {
		return dest, nil
	}
	if label == "" {
		return Terminate, nil
	}
	return Destination{}, &UnresolvedRouteError{Router: router, Label: label}
}
