// Package root embeds the static files of the service.
package root

import "embed"

// Assets is a virtual filesystem containing all files embedded from the assets
// directory.
//
//go:embed all:assets
var Assets embed.FS

// MailTemplatesDir is the directory of Assets holding the email templates.
const MailTemplatesDir = "assets/mail"
