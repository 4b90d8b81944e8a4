package lookbook

// Observer receives progress while a run executes. Callbacks are made from
// the goroutine running Generate, or from category goroutines in parallel
// mode, but never concurrently with each other for OnVariation.
type Observer interface {
	OnPhase(phase Phase, status string)
	// OnVariation is called once per success with the list visible so far.
	OnVariation(v Variation, visible []Variation)
	// OnDone is called once the session is idle again. It is skipped when the
	// run panics.
	OnDone(result RunResult)
}

// ObserverFuncs adapts plain functions to Observer; nil fields are skipped.
type ObserverFuncs struct {
	Phase     func(phase Phase, status string)
	Variation func(v Variation, visible []Variation)
	Done      func(result RunResult)
}

func (f ObserverFuncs) OnPhase(phase Phase, status string) {
	if f.Phase != nil {
		f.Phase(phase, status)
	}
}

func (f ObserverFuncs) OnVariation(v Variation, visible []Variation) {
	if f.Variation != nil {
		f.Variation(v, visible)
	}
}

func (f ObserverFuncs) OnDone(result RunResult) {
	if f.Done != nil {
		f.Done(result)
	}
}
