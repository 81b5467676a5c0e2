// Package tui runs the intake form in a terminal.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gabrielmiguelok/kycform/internal/application"
)

// submittedMsg carries a finished submission back into Update.
type submittedMsg struct {
	receipt application.Receipt
	err     error
}

// Model is the bubbletea model of the terminal form. It drives the same
// Controller as the web component.
type Model struct {
	ctrl      *application.Controller
	submitter application.Submitter

	inputs  map[application.Field]textinput.Model
	focus   int
	spinner spinner.Model
	width   int
}

// New creates a model on a blank step 1.
func New(submitter application.Submitter) Model {
	inputs := make(map[application.Field]textinput.Model)
	for _, f := range application.TextFields() {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = f.Placeholder()
		if n := f.MaxLength(); n > 0 {
			in.CharLimit = n
		}
		in.Width = 36
		inputs[f] = in
	}

	m := Model{
		ctrl:      application.NewController(),
		submitter: submitter,
		inputs:    inputs,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.syncFocus()
	return m
}

// Run starts the program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, submitter application.Submitter) error {
	_, err := tea.NewProgram(New(submitter), tea.WithContext(ctx), tea.WithAltScreen()).Run()
	return err
}

// Controller exposes the state machine, for tests.
func (m Model) Controller() *application.Controller {
	return m.ctrl
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// focusables lists what Tab cycles through on the current page. The nominee
// toggle is represented by application.AddNominee.
func (m Model) focusables() []application.Field {
	d := m.ctrl.Draft()
	items := application.Fields(m.ctrl.Step(), false)
	if m.ctrl.Step() == application.StepFinancial {
		items = append(items, application.AddNominee)
		if d.AddNominee {
			items = append(items, application.NomineeName, application.NomineeAadhaar)
		}
	}
	return items
}

func (m Model) focused() application.Field {
	items := m.focusables()
	if len(items) == 0 {
		return ""
	}
	return items[min(m.focus, len(items)-1)]
}

func (m *Model) syncFocus() {
	items := m.focusables()
	if m.focus >= len(items) {
		m.focus = len(items) - 1
	}
	if m.focus < 0 {
		m.focus = 0
	}
	current := m.focused()
	for f, in := range m.inputs {
		if f == current {
			in.Focus()
		} else {
			in.Blur()
		}
		m.inputs[f] = in
	}
}

// syncValues copies stored draft values into the inputs, so masks show
// immediately and restored state is visible.
func (m *Model) syncValues() {
	d := m.ctrl.Draft()
	for f, in := range m.inputs {
		if v := d.Value(f); in.Value() != v {
			in.SetValue(v)
			m.inputs[f] = in
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case submittedMsg:
		// Submission is the only path into Submitting, so Complete cannot
		// report ErrNotSubmitting here.
		_ = m.ctrl.Complete(msg.receipt, msg.err)
		return m, nil

	case spinner.TickMsg:
		if !m.ctrl.IsSubmitting() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	}

	if m.ctrl.IsSuccess() {
		switch msg.String() {
		case "enter":
			m.reset()
		case "q", "esc":
			return m, tea.Quit
		}
		return m, nil
	}
	if m.ctrl.IsSubmitting() {
		return m, nil
	}

	switch msg.String() {
	case "tab", "down":
		m.focus = (m.focus + 1) % len(m.focusables())
		m.syncFocus()
		return m, nil
	case "shift+tab", "up":
		n := len(m.focusables())
		m.focus = (m.focus - 1 + n) % n
		m.syncFocus()
		return m, nil
	case "esc":
		if m.ctrl.Back() {
			m.focus = 0
			m.syncFocus()
		}
		return m, nil
	case "enter":
		return m.submit()
	}

	field := m.focused()
	if field == application.AddNominee {
		if msg.String() == " " || msg.String() == "space" {
			m.ctrl.SetAddNominee(!m.ctrl.Draft().AddNominee)
			m.syncFocus()
		}
		return m, nil
	}

	in := m.inputs[field]
	var cmd tea.Cmd
	in, cmd = in.Update(msg)
	m.inputs[field] = in

	if err := m.ctrl.Change(field, in.Value()); err == nil {
		m.syncValues()
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	switch m.ctrl.Submit() {
	case application.OutcomeAdvanced:
		m.focus = 0
		m.syncFocus()
	case application.OutcomeInvalid:
		m.focusFirstError()
	case application.OutcomeStarted:
		return m, tea.Batch(m.submitCmd(m.ctrl.Draft()), m.spinner.Tick)
	}
	return m, nil
}

func (m Model) submitCmd(draft application.Draft) tea.Cmd {
	submitter := m.submitter
	return func() tea.Msg {
		receipt, err := submitter.Submit(context.Background(), draft)
		return submittedMsg{receipt: receipt, err: err}
	}
}

func (m *Model) focusFirstError() {
	errs := m.ctrl.Errors()
	for i, f := range m.focusables() {
		if errs.Has(f) {
			m.focus = i
			break
		}
	}
	m.syncFocus()
}

func (m *Model) reset() {
	if m.ctrl.Reset() != nil {
		return
	}
	m.focus = 0
	m.syncValues()
	m.syncFocus()
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Application Form"))
	b.WriteString("\n")

	if m.ctrl.IsSuccess() {
		b.WriteString("\n")
		b.WriteString(successStyle.Render("✓ Application Submitted!"))
		b.WriteString("\n\nThank you for your application. We'll review it and get back to you soon.\n")
		if r, ok := m.ctrl.Receipt(); ok {
			b.WriteString(dimStyle.Render("Reference: " + r.Reference))
			b.WriteString("\n")
		}
		b.WriteString(buttonStyle.Render("Submit Another Application"))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: start over • q: quit"))
		return b.String()
	}

	step := m.ctrl.Step()
	b.WriteString(dimStyle.Render(fmt.Sprintf("Step %d of %d • %d%% Complete", step, application.TotalSteps, m.ctrl.Progress())))
	b.WriteString("\n")
	b.WriteString(titleStyle.Render(step.Title()))
	b.WriteString("\n\n")

	focused := m.focused()
	errs := m.ctrl.Errors()
	for _, f := range m.focusables() {
		if f == application.AddNominee {
			b.WriteString(titleStyle.Render("Nominee Details:"))
			b.WriteString("\n")
			box := "[ ]"
			if m.ctrl.Draft().AddNominee {
				box = "[x]"
			}
			b.WriteString(m.label(f == focused, box+" I want to add a nominee."))
			b.WriteString("\n\n")
			continue
		}

		b.WriteString(m.label(f == focused, f.Label()+" *"))
		b.WriteString("\n")
		b.WriteString(m.inputs[f].View())
		b.WriteString("\n")
		if msg, ok := errs.Get(f); ok {
			b.WriteString(errorStyle.Render(msg))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if msg := m.ctrl.SubmitError(); msg != "" && step == application.StepFinancial {
		b.WriteString(errorStyle.Render(msg))
		b.WriteString("\n")
	}

	switch {
	case m.ctrl.IsSubmitting():
		b.WriteString(disabledButtonStyle.Render(m.spinner.View() + " Processing..."))
	case step == application.StepPersonal:
		b.WriteString(buttonStyle.Render("Continue to Next Step"))
	default:
		b.WriteString(buttonStyle.Render("Submit Application"))
	}
	b.WriteString("\n")

	help := "tab/↓: next • shift+tab/↑: previous • enter: submit • ctrl+c: quit"
	if step == application.StepFinancial {
		help = "esc: back • space: toggle nominee • " + help
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func (m Model) label(focused bool, text string) string {
	if focused {
		return focusedLabelStyle.Render("› " + text)
	}
	return labelStyle.Render("  " + text)
}
