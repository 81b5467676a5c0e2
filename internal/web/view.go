package web

import (
	"html/template"
	"strconv"

	"github.com/gabrielmiguelok/kycform/internal/application"
)

// Default asset locations linked from the page.
const (
	DefaultAssetPath  = "/assets/kycform.css"
	DefaultScriptPath = "/_live/live.js"
)

// Button and heading text.
const (
	textHeader        = "Application Form"
	textContinue      = "Continue to Next Step"
	textSubmit        = "Submit Application"
	textProcessing    = "Processing..."
	textBack          = "Back"
	textNomineeToggle = "I want to add a nominee."
	textSuccessTitle  = "Application Submitted!"
	textSuccessBody   = "Thank you for your application. We'll review it and get back to you soon."
	textSubmitAnother = "Submit Another Application"
)

type fieldView struct {
	Name        string
	Label       string
	Placeholder string
	Value       string
	Error       string
	Type        string
	InputMode   string
	MaxLength   int
}

type stepView struct {
	Number      int
	Title       string
	Description string
	Active      bool
	Done        bool
}

type pageData struct {
	Header      string
	Step        int
	TotalSteps  int
	Progress    int
	Title       string
	Description string
	Steps       []stepView

	Fields     []fieldView
	Nominee    []fieldView
	ShowToggle bool
	AddNominee bool
	ToggleText string

	Submitting  bool
	ButtonLabel string
	ShowBack    bool
	BackLabel   string
	SubmitError string

	Success       bool
	SuccessTitle  string
	SuccessBody   string
	Reference     string
	SubmitAnother string

	AssetPath  string
	ScriptPath string
}

func newPageData(c *application.Controller, deps Deps) pageData {
	step := c.Step()
	draft := c.Draft()
	errs := c.Errors()

	data := pageData{
		Header:      textHeader,
		Step:        int(step),
		TotalSteps:  application.TotalSteps,
		Progress:    c.Progress(),
		Title:       step.Title(),
		Description: step.Description(),

		ShowToggle: step == application.StepFinancial,
		AddNominee: draft.AddNominee,
		ToggleText: textNomineeToggle,

		Submitting: c.IsSubmitting(),
		ShowBack:   step == application.StepFinancial,
		BackLabel:  textBack,

		Success:       c.IsSuccess(),
		SuccessTitle:  textSuccessTitle,
		SuccessBody:   textSuccessBody,
		SubmitAnother: textSubmitAnother,

		AssetPath:  deps.AssetPath,
		ScriptPath: deps.ScriptPath,
	}

	for _, s := range application.Steps() {
		data.Steps = append(data.Steps, stepView{
			Number:      int(s),
			Title:       s.Title(),
			Description: s.Description(),
			Active:      s == step,
			Done:        s < step,
		})
	}

	// A failed submission belongs to the financial step only.
	if step == application.StepFinancial {
		data.SubmitError = c.SubmitError()
	}

	switch {
	case c.IsSubmitting():
		data.ButtonLabel = textProcessing
	case step == application.StepPersonal:
		data.ButtonLabel = textContinue
	default:
		data.ButtonLabel = textSubmit
	}

	if r, ok := c.Receipt(); ok {
		data.Reference = r.Reference
	}

	for _, f := range application.Fields(step, false) {
		data.Fields = append(data.Fields, newFieldView(f, draft, errs))
	}
	if step == application.StepFinancial && draft.AddNominee {
		for _, f := range application.Fields(step, true)[len(data.Fields):] {
			data.Nominee = append(data.Nominee, newFieldView(f, draft, errs))
		}
	}
	return data
}

func newFieldView(f application.Field, d application.Draft, errs application.Errors) fieldView {
	v := fieldView{
		Name:        f.String(),
		Label:       f.Label(),
		Placeholder: f.Placeholder(),
		Value:       d.Value(f),
		Error:       errs[f],
		Type:        "text",
		MaxLength:   f.MaxLength(),
	}
	switch f {
	case application.PhoneNumber:
		v.Type = "tel"
		v.InputMode = "numeric"
	case application.Email:
		v.Type = "email"
	case application.PinCode, application.AadhaarNumber, application.NomineeAadhaar:
		v.InputMode = "numeric"
	}
	return v
}

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"itoa": strconv.Itoa,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Header}}</title>
<link rel="stylesheet" href="{{.AssetPath}}">
<script src="{{.ScriptPath}}" defer></script>
</head>
<body>
<div class="layout">
<aside class="brand">
<h1>Application<br>Form</h1>
<p>Complete your application in just a few simple steps. We'll guide you through the process.</p>
<ol class="brand-steps">{{range .Steps}}
<li><strong>{{.Title}}</strong><span>{{.Description}}</span></li>{{end}}
</ol>
</aside>
<main class="panel" id="app" data-slot="app">
{{- if .Success}}
<section class="success">
<div class="success-icon">&#10003;</div>
<h1>{{.SuccessTitle}}</h1>
<p>{{.SuccessBody}}</p>
{{- if .Reference}}
<p class="reference">Reference: <strong>{{.Reference}}</strong></p>
{{- end}}
<button type="button" class="btn btn-primary" lv-click="reset">{{.SubmitAnother}}</button>
</section>
{{- else}}
<header class="panel-header">
<h1>{{.Header}}</h1>
<div class="progress-meta"><span>Step {{.Step}} of {{.TotalSteps}}</span><span>{{.Progress}}% Complete</span></div>
<div class="progress"><div class="progress-bar progress-{{.Progress}}"></div></div>
<ol class="stepper">{{range .Steps}}
<li class="{{if .Active}}active{{else if .Done}}done{{end}}">{{.Number}}</li>{{end}}
</ol>
</header>
<form class="form" lv-submit="submit" novalidate>
<h2>{{.Title}}</h2>
<div class="grid">
{{- range .Fields}}{{template "field" .}}{{end}}
</div>
{{- if .ShowToggle}}
<h3>Nominee Details:</h3>
<label class="toggle">
<input type="checkbox" id="addNominee" name="addNominee" lv-click="toggle_nominee"{{if .AddNominee}} checked{{end}}{{if .Submitting}} disabled{{end}}>
<span>{{.ToggleText}}</span>
</label>
{{- if .AddNominee}}
<div class="grid">
{{- range .Nominee}}{{template "field" .}}{{end}}
</div>
{{- end}}
{{- end}}
{{- if .SubmitError}}
<p class="submit-error" role="alert">{{.SubmitError}}</p>
{{- end}}
<div class="actions">
{{- if .ShowBack}}
<button type="button" class="btn btn-secondary" lv-click="back"{{if .Submitting}} disabled{{end}}>{{.BackLabel}}</button>
{{- end}}
<button type="submit" class="btn btn-primary"{{if .Submitting}} disabled{{end}}>{{.ButtonLabel}}</button>
</div>
</form>
{{- end}}
</main>
</div>
</body>
</html>
{{define "field"}}
<div class="field{{if .Error}} invalid{{end}}">
<label for="{{.Name}}">{{.Label}} *</label>
<input id="{{.Name}}" name="{{.Name}}" type="{{.Type}}" value="{{.Value}}" placeholder="{{.Placeholder}}" lv-change="change"
{{- if .InputMode}} inputmode="{{.InputMode}}"{{end}}
{{- if .MaxLength}} maxlength="{{itoa .MaxLength}}"{{end}}
{{- if .Error}} aria-invalid="true" aria-describedby="{{.Name}}-error"{{end}}>
{{- if .Error}}
<p class="error" id="{{.Name}}-error">{{.Error}}</p>
{{- end}}
</div>
{{- end}}`))
