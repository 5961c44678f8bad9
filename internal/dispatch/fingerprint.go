package dispatch

import (
	"sync"

	"github.com/wasefire/wfcore/internal/abierr"
	"github.com/wasefire/wfcore/internal/board/fingerprint"
	"github.com/wasefire/wfcore/internal/engine"
	"github.com/wasefire/wfcore/internal/event"
)

type asyncResult struct {
	mu      sync.Mutex
	done    bool
	matched bool
	tmpl    []byte
	err     error
}

// RegisterFingerprint wires the fingerprint link names (spec.md §4.6
// "board/fingerprint"). enroll/identify start an asynchronous operation on
// the board and push a queue event when it completes; the applet retrieves
// the outcome with a separate *.result call, mirroring the progress/done
// handler pair plus a later synchronous read of the original API.
func RegisterFingerprint(t *Table, f fingerprint.Fingerprint, reg *event.Registry) {
	var enroll asyncResult
	var identify asyncResult

	t.Register("fingerprint.enroll", func(call engine.Call) (uint32, error) {
		err := f.Enroll(
			func(fingerprint.EnrollProgress) {
				reg.Push(event.Event{Kind: event.KindFingerprintStep})
			},
			func(template []byte, ferr error) {
				enroll.mu.Lock()
				enroll.done, enroll.tmpl, enroll.err = true, template, ferr
				enroll.mu.Unlock()
				reg.Push(event.Event{Kind: event.KindFingerprintEnroll})
			},
		)
		if err != nil {
			return 0, abierr.World(abierr.CodeGeneric)
		}
		return 0, nil
	})

	t.Register("fingerprint.enroll.result", func(call engine.Call) (uint32, error) {
		enroll.mu.Lock()
		defer enroll.mu.Unlock()
		if !enroll.done {
			return 0, abierr.User(abierr.CodeInvalidState)
		}
		enroll.done = false
		if enroll.err != nil {
			return 0, enroll.err
		}
		args := call.Args()
		if err := call.Memory().AllocCopy(args[0], args[1], enroll.tmpl); err != nil {
			return 0, ErrTrap
		}
		return 0, nil
	})

	t.Register("fingerprint.abort_enroll", func(call engine.Call) (uint32, error) {
		if err := f.AbortEnroll(); err != nil {
			return 0, abierr.World(abierr.CodeGeneric)
		}
		return 0, nil
	})

	t.Register("fingerprint.identify", func(call engine.Call) (uint32, error) {
		args := call.Args()
		var template []byte
		if args[1] != 0 {
			var err error
			template, err = call.Memory().Get(args[0], args[1])
			if err != nil {
				return 0, ErrTrap
			}
		}
		err := f.Identify(template, func(matched bool, tmpl []byte, ferr error) {
			identify.mu.Lock()
			identify.done, identify.matched, identify.tmpl, identify.err = true, matched, tmpl, ferr
			identify.mu.Unlock()
			reg.Push(event.Event{Kind: event.KindFingerprintIdentify})
		})
		if err != nil {
			return 0, abierr.World(abierr.CodeGeneric)
		}
		return 0, nil
	})

	t.Register("fingerprint.identify.result", func(call engine.Call) (uint32, error) {
		identify.mu.Lock()
		defer identify.mu.Unlock()
		if !identify.done {
			return 0, abierr.User(abierr.CodeInvalidState)
		}
		identify.done = false
		if identify.err != nil {
			return 0, identify.err
		}
		if !identify.matched {
			return 0, nil
		}
		args := call.Args()
		if err := call.Memory().AllocCopy(args[0], args[1], identify.tmpl); err != nil {
			return 0, ErrTrap
		}
		return 1, nil
	})

	t.Register("fingerprint.abort_identify", func(call engine.Call) (uint32, error) {
		if err := f.AbortIdentify(); err != nil {
			return 0, abierr.World(abierr.CodeGeneric)
		}
		return 0, nil
	})

	t.Register("fingerprint.delete_template", func(call engine.Call) (uint32, error) {
		args := call.Args()
		var template []byte
		if args[1] != 0 {
			var err error
			template, err = call.Memory().Get(args[0], args[1])
			if err != nil {
				return 0, ErrTrap
			}
		}
		if err := f.DeleteTemplate(template); err != nil {
			return 0, abierr.Internal(abierr.CodeGeneric)
		}
		return 0, nil
	})

	t.Register("fingerprint.list_templates", func(call engine.Call) (uint32, error) {
		templates, err := f.ListTemplates()
		if err != nil {
			return 0, abierr.Internal(abierr.CodeGeneric)
		}
		flat := make([]byte, 0, len(templates)*f.TemplateLength())
		for _, tpl := range templates {
			flat = append(flat, tpl...)
		}
		args := call.Args()
		if err := call.Memory().AllocCopy(args[0], args[1], flat); err != nil {
			return 0, ErrTrap
		}
		return uint32(len(templates)), nil
	})
}
