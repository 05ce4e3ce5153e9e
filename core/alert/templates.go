package alert

import (
	"bytes"
	"fmt"
	"sync"
	texttmpl "text/template"

	"github.com/tuyishimwe/umurinzi/core/student"
)

// Alert contents are rendered from text templates keyed by alert type: a
// short SMS body, an email subject and a longer email body. Templates are
// parsed once on first use.

type templateSet struct {
	sms     *texttmpl.Template
	subject *texttmpl.Template
	email   *texttmpl.Template
}

type templateData struct {
	Student  student.Student
	Guardian student.GuardianContact
	Vars     map[string]string
	AppName  string
}

var (
	templates map[TemplateType]*templateSet
	tmplInit  sync.Once
)

const (
	riskAlertSMS     = `Dear {{.Guardian.Name}}, {{.Student.FullName}} has been flagged for {{.Vars.riskTitle}} ({{.Vars.severity}}). Please contact the school. - {{.AppName}}`
	riskAlertSubject = `Risk alert for {{.Student.FullName}}`
	riskAlertEmail   = `Dear {{.Guardian.Name}},

{{.Student.FullName}} has been flagged for: {{.Vars.riskTitle}} (severity {{.Vars.severity}}).
{{with .Vars.description}}{{.}}
{{end}}
Please contact the school as soon as possible to discuss support for your child.

{{.AppName}}`

	absenceSMS     = `Dear {{.Guardian.Name}}, {{.Student.FullName}} was absent from school{{with .Vars.date}} on {{.}}{{end}}. Please contact the school. - {{.AppName}}`
	absenceSubject = `Absence notice for {{.Student.FullName}}`
	absenceEmail   = `Dear {{.Guardian.Name}},

{{.Student.FullName}} was marked absent{{with .Vars.date}} on {{.}}{{end}}{{with .Vars.reason}} ({{.}}){{end}}.

Regular attendance matters. Please reach out to the school if your child is facing difficulties.

{{.AppName}}`

	performanceSMS     = `Dear {{.Guardian.Name}}, {{.Student.FullName}} scored {{.Vars.grade}} in {{.Vars.subject}}. Please contact the school. - {{.AppName}}`
	performanceSubject = `Performance notice for {{.Student.FullName}}`
	performanceEmail   = `Dear {{.Guardian.Name}},

{{.Student.FullName}} received a grade of {{.Vars.grade}} in {{.Vars.subject}}{{with .Vars.term}} (term {{.}}){{end}}.

Please contact the school to discuss how we can support your child.

{{.AppName}}`

	generalSMS     = `Dear {{.Guardian.Name}}, {{.Vars.message}} - {{.AppName}}`
	generalSubject = `Message from {{.AppName}}`
	generalEmail   = `Dear {{.Guardian.Name}},

{{.Vars.message}}

{{.AppName}}`
)

func parseTemplates() {
	mustSet := func(name TemplateType, sms, subject, email string) *templateSet {
		return &templateSet{
			sms:     texttmpl.Must(texttmpl.New(string(name) + ".sms").Parse(sms)),
			subject: texttmpl.Must(texttmpl.New(string(name) + ".subject").Parse(subject)),
			email:   texttmpl.Must(texttmpl.New(string(name) + ".email").Parse(email)),
		}
	}
	templates = map[TemplateType]*templateSet{
		TemplateRiskAlert:   mustSet(TemplateRiskAlert, riskAlertSMS, riskAlertSubject, riskAlertEmail),
		TemplateAbsence:     mustSet(TemplateAbsence, absenceSMS, absenceSubject, absenceEmail),
		TemplatePerformance: mustSet(TemplatePerformance, performanceSMS, performanceSubject, performanceEmail),
		TemplateGeneral:     mustSet(TemplateGeneral, generalSMS, generalSubject, generalEmail),
	}
}

type renderedAlert struct {
	smsBody string
	subject string
	email   string
}

func renderAlert(typ TemplateType, data templateData) (renderedAlert, error) {
	tmplInit.Do(parseTemplates)

	set, ok := templates[typ]
	if !ok {
		return renderedAlert{}, fmt.Errorf("unknown alert template %q", typ)
	}
	if data.Vars == nil {
		data.Vars = map[string]string{}
	}

	exec := func(t *texttmpl.Template) (string, error) {
		var buff bytes.Buffer
		if err := t.Execute(&buff, data); err != nil {
			return "", err
		}
		return buff.String(), nil
	}

	var (
		out renderedAlert
		err error
	)
	if out.smsBody, err = exec(set.sms); err != nil {
		return out, err
	}
	if out.subject, err = exec(set.subject); err != nil {
		return out, err
	}
	if out.email, err = exec(set.email); err != nil {
		return out, err
	}
	return out, nil
}
