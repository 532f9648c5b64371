// Package mailtemplates renders the email notifications of the service from
// the HTML templates embedded in the binary and their plain text fallbacks.
package mailtemplates

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	texttemplate "text/template"

	"github.com/cancelready/backend/notifications"
)

// TemplateFile identifies an email template: the template filename without
// the .html extension.
type TemplateFile string

// MailTemplate is an email template: the HTML file and the subject and plain
// text body placeholders, both text templates.
type MailTemplate struct {
	File        TemplateFile
	Placeholder notifications.Notification
}

var (
	templatesMtx sync.RWMutex
	templates    = map[TemplateFile]*htmltemplate.Template{}
)

// Load parses every .html file found under dir in the filesystem provided and
// makes it available to ExecTemplate. Previously loaded templates are
// replaced.
func Load(fsys fs.FS, dir string) error {
	loaded := map[TemplateFile]*htmltemplate.Template{}
	if err := fs.WalkDir(fsys, dir, func(fPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		tmpl, err := htmltemplate.ParseFS(fsys, fPath)
		if err != nil {
			return fmt.Errorf("could not parse template %s: %w", fPath, err)
		}
		loaded[TemplateFile(strings.TrimSuffix(path.Base(fPath), ".html"))] = tmpl
		return nil
	}); err != nil {
		return err
	}
	templatesMtx.Lock()
	defer templatesMtx.Unlock()
	templates = loaded
	return nil
}

// Available returns the loaded templates, sorted.
func Available() []TemplateFile {
	templatesMtx.RLock()
	defer templatesMtx.RUnlock()
	files := make([]TemplateFile, 0, len(templates))
	for file := range templates {
		files = append(files, file)
	}
	slices.Sort(files)
	return files
}

// ExecTemplate renders the template with the data provided. The subject and
// plain body placeholders are rendered as text templates, the HTML file as an
// HTML template. It fails if the template file was not loaded.
func (mt MailTemplate) ExecTemplate(data any) (*notifications.Notification, error) {
	templatesMtx.RLock()
	tmpl, ok := templates[mt.File]
	templatesMtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("template %s not found", mt.File)
	}
	n, err := mt.ExecPlain(data)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, data); err != nil {
		return nil, err
	}
	n.Body = buf.String()
	return n, nil
}

// ExecPlain renders only the subject and the plain text body.
func (mt MailTemplate) ExecPlain(data any) (*notifications.Notification, error) {
	subject, err := execText(string(mt.File)+"_subject", mt.Placeholder.Subject, data)
	if err != nil {
		return nil, err
	}
	plainBody, err := execText(string(mt.File)+"_plain", mt.Placeholder.PlainBody, data)
	if err != nil {
		return nil, err
	}
	return &notifications.Notification{
		Subject:   subject,
		PlainBody: plainBody,
	}, nil
}

func execText(name, text string, data any) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := texttemplate.New(name).Parse(text)
	if err != nil {
		return "", err
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
