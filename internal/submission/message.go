package submission

import (
	"fmt"
	"strings"
	"time"

	"github.com/icodewithai/form-courier/internal/mailer"
)

const (
	ContactSubject  = "New Contact Form Submission - iCodeWith.ai"
	ReminderSubject = "Your iCodeWith.ai reminder is set!"

	// TimestampLayout renders like en-US locale output, e.g. "3/1/2025, 7:00:00 AM EST".
	TimestampLayout = "1/2/2006, 3:04:05 PM MST"

	missingReason    = "Not specified"
	missingPageTitle = "Page title not available"
	missingPageURL   = "Page URL not available"
)

// Meta is what the request carries besides the payload.
type Meta struct {
	IP          string
	UserAgent   string
	SubmittedAt time.Time
}

// Composer builds the outbound message for each form. Output depends only on
// its inputs.
type Composer struct {
	From     string
	To       string // contact: operator inbox; reminder: admin blind copy
	Location *time.Location
}

func (c Composer) timestamp(t time.Time) string {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimestampLayout)
}

// Contact addresses the operator inbox and sets Reply-To to the submitter.
func (c Composer) Contact(p *Contact, meta Meta) *mailer.Message {
	var b strings.Builder
	b.WriteString("New contact form submission from iCodeWith.ai\n\n")
	fmt.Fprintf(&b, "Name: %s %s\n", p.FirstName, p.LastName)
	fmt.Fprintf(&b, "Email: %s\n", p.Email)
	fmt.Fprintf(&b, "Reason: %s\n", orDefault(p.Reason, missingReason))
	fmt.Fprintf(&b, "Message: %s\n\n", p.Message)
	fmt.Fprintf(&b, "Submitted: %s\n", c.timestamp(meta.SubmittedAt))
	fmt.Fprintf(&b, "IP Address: %s\n", meta.IP)
	fmt.Fprintf(&b, "User Agent: %s\n", orDefault(meta.UserAgent, "unknown"))

	return &mailer.Message{
		From:    c.From,
		To:      []string{c.To},
		ReplyTo: p.Email,
		Subject: ContactSubject,
		Text:    b.String(),
	}
}

// Reminder addresses the submitter and blind-copies the admin inbox.
func (c Composer) Reminder(p *Reminder, meta Meta) *mailer.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", p.FirstName)
	b.WriteString("Your reminder is set! Here is the page you asked us to remind you about.\n\n")
	fmt.Fprintf(&b, "Name: %s %s\n", p.FirstName, p.LastName)
	fmt.Fprintf(&b, "Page Name: %s\n", orDefault(p.PageTitle, missingPageTitle))
	fmt.Fprintf(&b, "Page URL: %s\n", orDefault(p.PageURL, missingPageURL))
	fmt.Fprintf(&b, "Requested: %s\n\n", c.timestamp(meta.SubmittedAt))
	b.WriteString("See you soon,\nThe iCodeWith.ai Team\n")

	msg := &mailer.Message{
		From:    c.From,
		To:      []string{p.Email},
		Subject: ReminderSubject,
		Text:    b.String(),
	}
	if c.To != "" {
		msg.Bcc = []string{c.To}
	}
	return msg
}

func orDefault(s, d string) string {
	if s == "" {
		return d
	}
	return s
}
