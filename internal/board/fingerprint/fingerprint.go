// Package fingerprint declares the fingerprint matcher board interface
// (spec.md §4.6 "board/fingerprint"), grounded on
// crates/scheduler/src/call/fingerprint/matcher.rs and
// crates/prelude/src/fingerprint/matcher.rs. Enroll and Identify are
// asynchronous: the dispatcher supplies callbacks that the board invokes
// from its own goroutine as progress is made, mirroring the step/done
// handler-function pairs of the original API.
package fingerprint

// EnrollProgress reports how far an in-progress enrollment has gotten.
type EnrollProgress struct {
	Detected  int
	Remaining int // -1 if unknown
}

// Fingerprint is a fingerprint sensor and its enrolled-template store.
type Fingerprint interface {
	// TemplateLength returns the fixed byte length of one template ID.
	TemplateLength() int

	// Enroll starts enrolling a new finger. onStep is called on every
	// detected touch; onDone is called exactly once, with the new
	// template ID on success. Only one enrollment or identification may
	// be in flight at a time.
	Enroll(onStep func(EnrollProgress), onDone func(template []byte, err error)) error
	// AbortEnroll cancels an in-progress enrollment; onDone is not called.
	AbortEnroll() error

	// Identify starts identifying a finger against template (or every
	// enrolled template if template is nil). onDone is called exactly
	// once with whether a match was found and, if so, the matched
	// template ID.
	Identify(template []byte, onDone func(matched bool, template []byte, err error)) error
	// AbortIdentify cancels an in-progress identification; onDone is not
	// called.
	AbortIdentify() error

	// DeleteTemplate removes template (or every enrolled template if nil).
	DeleteTemplate(template []byte) error
	// ListTemplates returns every enrolled template ID.
	ListTemplates() ([][]byte, error)

	// Threshold and HistoryLen are calibration knobs carried through
	// unchanged; the matching algorithm itself is out of scope.
	Threshold() float32
	SetThreshold(float32)
	HistoryLen() int
	SetHistoryLen(int)
}
