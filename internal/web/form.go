// Package web serves the intake form as a LiveView component.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gabrielmiguelok/kycform/internal/application"
	"github.com/gabrielmiguelok/kycform/pkg/core"
	"github.com/gabrielmiguelok/kycform/pkg/logging"
	"github.com/gabrielmiguelok/kycform/pkg/metrics"
	"github.com/gabrielmiguelok/kycform/pkg/state"
)

// ComponentName identifies the form in session snapshots.
const ComponentName = "kyc_form"

// ErrUnknownEvent is returned for events the form does not handle.
var ErrUnknownEvent = errors.New("unknown event")

// Deps are shared by every form instance.
type Deps struct {
	Submitter application.Submitter
	Logger    logging.Logger
	Metrics   *metrics.Metrics

	// SubmitTimeout bounds one submission. It is detached from the
	// connection so a started submission completes even if the client leaves.
	SubmitTimeout time.Duration

	// AssetPath and ScriptPath are linked from the rendered page.
	AssetPath  string
	ScriptPath string

	// PersistSensitive keeps identity and account numbers in snapshots.
	// Enable it only when the session store lives in process memory.
	PersistSensitive bool
}

func (d Deps) withDefaults() Deps {
	if d.Submitter == nil {
		d.Submitter = application.NewSimulatedSubmitter(application.DefaultSubmitDelay)
	}
	if d.Logger == nil {
		d.Logger = logging.NopLogger{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop()
	}
	if d.SubmitTimeout <= 0 {
		d.SubmitTimeout = 30 * time.Second
	}
	if d.AssetPath == "" {
		d.AssetPath = DefaultAssetPath
	}
	if d.ScriptPath == "" {
		d.ScriptPath = DefaultScriptPath
	}
	return d
}

// submissionResult travels from the submission goroutine back to the
// session loop as an info message.
type submissionResult struct {
	receipt application.Receipt
	err     error
}

// Form is the intake form component. One instance serves one browser tab.
type Form struct {
	core.BaseComponent

	deps  Deps
	ctrl  *application.Controller
	codec *state.Codec[application.Snapshot]
}

// NewForm creates a form on a blank step 1.
func NewForm(deps Deps) *Form {
	return &Form{
		deps:  deps.withDefaults(),
		ctrl:  application.NewController(),
		codec: state.NewCodec[application.Snapshot](),
	}
}

// Factory returns a component constructor for router.Live.
func Factory(deps Deps) func() core.Component {
	deps = deps.withDefaults()
	return func() core.Component {
		return NewForm(deps)
	}
}

// Controller exposes the state machine, for tests.
func (f *Form) Controller() *application.Controller {
	return f.ctrl
}

func (f *Form) Name() string { return ComponentName }

func (f *Form) Mount(ctx context.Context, params core.Params, session core.Session) error {
	return nil
}

func (f *Form) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case "change":
		field := application.Field(stringValue(payload["field"]))
		return f.ctrl.Change(field, stringValue(payload["value"]))

	case "toggle_nominee":
		return f.ctrl.SetAddNominee(boolValue(payload["value"]))

	case "submit":
		f.submit()
		return nil

	case "back":
		if f.ctrl.Back() {
			f.recordTransition(application.PhaseFinancial, application.PhasePersonal)
		}
		return nil

	case "reset":
		if err := f.ctrl.Reset(); err != nil {
			return err
		}
		f.recordTransition(application.PhaseSuccess, application.PhasePersonal)
		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
}

func (f *Form) submit() {
	from := f.ctrl.Phase()

	switch f.ctrl.Submit() {
	case application.OutcomeInvalid:
		step := strconv.Itoa(int(f.ctrl.Step()))
		for field := range f.ctrl.Errors() {
			f.deps.Metrics.ValidationFailures.WithLabelValues(step, field.String()).Inc()
		}
	case application.OutcomeAdvanced:
		f.recordTransition(from, f.ctrl.Phase())
	case application.OutcomeStarted:
		f.recordTransition(from, f.ctrl.Phase())
		f.startSubmission()
	}
}

// startSubmission runs the submitter off the session loop and reports back
// through the socket's info queue.
func (f *Form) startSubmission() {
	draft := f.ctrl.Draft()
	socket := f.Socket()
	deps := f.deps

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deps.SubmitTimeout)
		defer cancel()

		receipt, err := deps.Submitter.Submit(ctx, draft)
		if socket == nil {
			return
		}
		if err := socket.SendInfo(submissionResult{receipt: receipt, err: err}); err != nil {
			deps.Logger.Warn("submission result dropped",
				logging.String("socket_id", socket.ID()),
				logging.Err(err),
			)
		}
	}()
}

func (f *Form) HandleInfo(ctx context.Context, msg any) error {
	result, ok := msg.(submissionResult)
	if !ok {
		return nil
	}
	if err := f.ctrl.Complete(result.receipt, result.err); err != nil {
		return err
	}
	f.recordTransition(application.PhaseSubmitting, f.ctrl.Phase())
	return nil
}

func (f *Form) Terminate(ctx context.Context, reason core.TerminateReason) error {
	logging.L(ctx).Debug("form closed",
		logging.String("reason", reason.String()),
		logging.String("phase", f.ctrl.Phase().String()),
	)
	return nil
}

func (f *Form) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		return pageTemplate.Execute(w, newPageData(f.ctrl, f.deps))
	})
}

// Snapshot implements core.Snapshotter. Sensitive fields are cleared unless
// Deps.PersistSensitive is set.
func (f *Form) Snapshot() ([]byte, error) {
	snap := f.ctrl.Snapshot()
	if !f.deps.PersistSensitive {
		snap = snap.Redact()
	}
	return f.codec.Encode(snap)
}

// Restore implements core.Snapshotter. A session that was submitting when
// the client dropped starts its submission again.
func (f *Form) Restore(ctx context.Context, data []byte) error {
	snap, err := f.codec.Decode(data)
	if err != nil {
		return fmt.Errorf("decode form snapshot: %w", err)
	}
	ctrl, err := application.RestoreController(snap)
	if err != nil {
		return err
	}

	f.ctrl = ctrl
	if f.ctrl.IsSubmitting() {
		f.startSubmission()
	}
	return nil
}

func (f *Form) recordTransition(from, to application.Phase) {
	f.deps.Metrics.StepTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

func stringValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func boolValue(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b || v == "on"
	default:
		return false
	}
}
