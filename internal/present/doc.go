package present

import (
	"strings"

	"github.com/m3rciful/membergate/core/telegram/format"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━"

// doc accumulates a MarkdownV2 message. Every method escapes its arguments,
// so callers pass plain text only.
type doc struct {
	b strings.Builder
}

func (d *doc) heading(icon, title string) *doc {
	if icon != "" {
		d.b.WriteString(icon)
		d.b.WriteByte(' ')
	}
	d.b.WriteString(format.Bold(title))
	d.b.WriteByte('\n')
	return d
}

func (d *doc) rule() *doc {
	d.b.WriteString("\n" + rule + "\n\n")
	return d
}

func (d *doc) text(s string) *doc {
	d.b.WriteString(format.V2(s))
	d.b.WriteByte('\n')
	return d
}

func (d *doc) blank() *doc {
	d.b.WriteByte('\n')
	return d
}

// field writes "icon *Label:* value".
func (d *doc) field(icon, label, value string) *doc {
	if icon != "" {
		d.b.WriteString(icon + " ")
	}
	d.b.WriteString(format.Bold(label + ":"))
	d.b.WriteByte(' ')
	d.b.WriteString(format.V2(value))
	d.b.WriteByte('\n')
	return d
}

// codeField writes "icon *Label:* `value`".
func (d *doc) codeField(icon, label, value string) *doc {
	if icon != "" {
		d.b.WriteString(icon + " ")
	}
	d.b.WriteString(format.Bold(label + ":"))
	d.b.WriteByte(' ')
	d.b.WriteString(format.Code(value))
	d.b.WriteByte('\n')
	return d
}

func (d *doc) bullets(items ...string) *doc {
	for _, it := range items {
		d.b.WriteString("• " + format.V2(it) + "\n")
	}
	return d
}

func (d *doc) raw(s string) *doc {
	d.b.WriteString(s)
	return d
}

func (d *doc) String() string {
	return strings.TrimRight(d.b.String(), "\n")
}
