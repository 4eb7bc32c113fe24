package submission_test

import (
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icodewithai/form-courier/internal/submission"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("decodes known fields and ignores the rest", func(t *testing.T) {
		t.Parallel()

		var p submission.Contact
		err := submission.Decode(strings.NewReader(`{"firstName":"A","lastName":"B","email":"a@b.com","message":"hi","extra":1}`), &p)
		require.NoError(t, err)
		assert.Equal(t, submission.Contact{FirstName: "A", LastName: "B", Email: "a@b.com", Message: "hi"}, p)
	})

	t.Run("null leaves a field empty", func(t *testing.T) {
		t.Parallel()

		var p submission.Reminder
		require.NoError(t, submission.Decode(strings.NewReader(`{"firstName":null,"pageTitle":null}`), &p))
		assert.Empty(t, p.FirstName)
		assert.Empty(t, p.PageTitle)
	})

	testCases := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "not json", body: "firstName=A"},
		{name: "array", body: `[{"firstName":"A"}]`},
		{name: "truncated", body: `{"firstName":"A"`},
		{name: "wrong field type", body: `{"firstName":42}`},
		{name: "trailing object", body: `{"firstName":"A"}{"lastName":"B"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var p submission.Contact
			err := submission.Decode(strings.NewReader(tc.body), &p)
			require.ErrorIs(t, err, submission.ErrMalformedBody)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := submission.Contact{FirstName: "A", LastName: "B", Email: "a@b.com", Message: "hi"}

	t.Run("valid contact", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, submission.Validate(&valid))
	})

	t.Run("valid reminder without optional fields", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, submission.Validate(&submission.Reminder{FirstName: "A", LastName: "B", Email: "a@b.com"}))
	})

	t.Run("missing fields are listed by json name in order", func(t *testing.T) {
		t.Parallel()

		p := valid
		p.FirstName = ""
		p.Message = ""
		err := submission.Validate(&p)

		var verr *submission.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, []string{"firstName", "message"}, verr.Missing)
		assert.Equal(t, "Missing required fields: firstName, message", err.Error())
	})

	t.Run("empty email is missing, not malformed", func(t *testing.T) {
		t.Parallel()

		err := submission.Validate(&submission.Reminder{FirstName: "A", LastName: "B"})

		var verr *submission.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, []string{"email"}, verr.Missing)
		assert.False(t, verr.InvalidEmail)
	})

	t.Run("whitespace counts as present", func(t *testing.T) {
		t.Parallel()

		p := valid
		p.Message = " "
		require.NoError(t, submission.Validate(&p))
	})

	badEmails := []string{"plain", "a@b", "@b.com", "a@.com", "a b@c.com", "a@b.c om", "a@@b.com", "a@b.com "}
	for _, email := range badEmails {
		t.Run("rejects "+email, func(t *testing.T) {
			t.Parallel()

			p := valid
			p.Email = email
			err := submission.Validate(&p)

			var verr *submission.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.True(t, verr.InvalidEmail)
			assert.Empty(t, verr.Missing)
			assert.Equal(t, "Invalid email format", err.Error())
		})
	}

	goodEmails := []string{"a@b.com", "first.last+tag@sub.example.co.uk", "x@y.z"}
	for _, email := range goodEmails {
		t.Run("accepts "+email, func(t *testing.T) {
			t.Parallel()
			assert.True(t, submission.IsValidEmail(email))
		})
	}
}

func TestComposer(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	meta := submission.Meta{
		IP:          "203.0.113.9",
		UserAgent:   "Mozilla/5.0",
		SubmittedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("contact goes to the operator", func(t *testing.T) {
		t.Parallel()

		c := submission.Composer{From: "Contact <noreply@icodewith.ai>", To: "ops@icodewith.ai", Location: ny}
		msg := c.Contact(&submission.Contact{FirstName: "A", LastName: "B", Email: "a@b.com", Message: "hi"}, meta)

		assert.Equal(t, "Contact <noreply@icodewith.ai>", msg.From)
		assert.Equal(t, []string{"ops@icodewith.ai"}, msg.To)
		assert.Empty(t, msg.Bcc)
		assert.Equal(t, "a@b.com", msg.ReplyTo)
		assert.Equal(t, "New Contact Form Submission - iCodeWith.ai", msg.Subject)
		assert.Contains(t, msg.Text, "Name: A B")
		assert.Contains(t, msg.Text, "Message: hi")
		assert.Contains(t, msg.Text, "Reason: Not specified")
		assert.Contains(t, msg.Text, "Submitted: 3/1/2025, 7:00:00 AM EST")
		assert.Contains(t, msg.Text, "IP Address: 203.0.113.9")
		assert.Contains(t, msg.Text, "User Agent: Mozilla/5.0")
	})

	t.Run("contact includes the reason when given", func(t *testing.T) {
		t.Parallel()

		c := submission.Composer{From: "f@icodewith.ai", To: "ops@icodewith.ai"}
		msg := c.Contact(&submission.Contact{FirstName: "A", LastName: "B", Email: "a@b.com", Message: "hi", Reason: "Workshop"}, meta)
		assert.Contains(t, msg.Text, "Reason: Workshop")
		assert.Contains(t, msg.Text, "Submitted: 3/1/2025, 12:00:00 PM UTC")
	})

	t.Run("reminder goes to the submitter with the admin in bcc", func(t *testing.T) {
		t.Parallel()

		c := submission.Composer{From: "Reminders <noreply@icodewith.ai>", To: "admin@icodewith.ai", Location: ny}
		msg := c.Reminder(&submission.Reminder{FirstName: "A", LastName: "B", Email: "a@b.com"}, meta)

		assert.Equal(t, []string{"a@b.com"}, msg.To)
		assert.Equal(t, []string{"admin@icodewith.ai"}, msg.Bcc)
		assert.Equal(t, "Your iCodeWith.ai reminder is set!", msg.Subject)
		assert.Contains(t, msg.Text, "Page Name: Page title not available")
		assert.Contains(t, msg.Text, "Page URL: Page URL not available")
		assert.Contains(t, msg.Text, "Requested: 3/1/2025, 7:00:00 AM EST")
		assert.NotContains(t, msg.Text, "203.0.113.9")
	})

	t.Run("reminder with page details", func(t *testing.T) {
		t.Parallel()

		c := submission.Composer{From: "f@icodewith.ai"}
		msg := c.Reminder(&submission.Reminder{
			FirstName: "A", LastName: "B", Email: "a@b.com",
			PageURL: "https://icodewith.ai/live", PageTitle: "Live Coding",
		}, meta)

		assert.Nil(t, msg.Bcc)
		assert.Contains(t, msg.Text, "Page Name: Live Coding")
		assert.Contains(t, msg.Text, "Page URL: https://icodewith.ai/live")
	})
}
