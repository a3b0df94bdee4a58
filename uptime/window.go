package uptime

// WindowCapacity is the number of recent outcomes that vote on a status. A
// component is only declared DOWN after this many consecutive failures.
const WindowCapacity = 3

// Window holds the most recent outcomes of one component, newest first.
// 0 is a success and 1 a failure.
type Window struct {
	buf  [WindowCapacity]uint8
	head int // index of the newest entry
	size int
}

// Push records an outcome, evicting the oldest entry when full.
func (w *Window) Push(success bool) {
	var v uint8
	if !success {
		v = 1
	}
	w.head = (w.head + WindowCapacity - 1) % WindowCapacity
	w.buf[w.head] = v
	if w.size < WindowCapacity {
		w.size++
	}
}

// Failures is the number of failures currently in the window.
func (w *Window) Failures() int {
	sum := 0
	for i := 0; i < w.size; i++ {
		sum += int(w.buf[(w.head+i)%WindowCapacity])
	}
	return sum
}

func (w *Window) Len() int { return w.size }

// Values returns the window contents, newest first.
func (w *Window) Values() []uint8 {
	out := make([]uint8, w.size)
	for i := range out {
		out[i] = w.buf[(w.head+i)%WindowCapacity]
	}
	return out
}

// Evaluator turns a stream of outcomes for one component into a status.
type Evaluator struct {
	window Window
	status Status
}

// NewEvaluator starts from the given status with an empty window. The
// initial status is usually the last persisted one.
func NewEvaluator(initial Status) *Evaluator {
	return &Evaluator{status: initial}
}

// Observe pushes one outcome and returns the new status. down reports that
// the full window is failures and uptime must be reset.
func (e *Evaluator) Observe(success bool) (status Status, down bool) {
	e.window.Push(success)
	switch {
	case success:
		e.status = StatusUp
	case e.window.Failures() < WindowCapacity:
		e.status = StatusUnstable
	default:
		e.status = StatusDown
	}
	return e.status, e.status == StatusDown
}

func (e *Evaluator) Status() Status { return e.status }

func (e *Evaluator) Window() []uint8 { return e.window.Values() }
