package email_test

import (
	"testing"

	"github.com/fabianMendez/luxflix/pkg/email"
	"github.com/fabianMendez/luxflix/pkg/form"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	actual, err := email.BuildMessage("<b>{{.name}}</b>", map[string]string{"name": "<Alice>"})
	require.NoError(t, err)
	assert.Equal(t, "<b>&lt;Alice&gt;</b>", actual)

	actual, err = email.BuildMessage("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", actual)

	_, err = email.BuildMessage("{{.broken", map[string]string{})
	assert.Error(t, err)
}

func TestSubmissionTemplate(t *testing.T) {
	sub := form.Submission{
		ID: "s1",
		Fields: map[string]string{
			"name":            "Alice",
			"membership_plan": "pro_yearly",
			"coupon":          "WELCOME10",
		},
		Attachment: &form.Attachment{Data: make([]byte, 2048), Filename: "proof.png", MimeType: "image/png"},
	}

	actual, err := email.BuildMessage(email.TplSubmission, sub)
	require.NoError(t, err)

	assert.Contains(t, actual, "<td><b>Name</b></td><td>Alice</td>")
	assert.Contains(t, actual, "<td><b>Plan</b></td><td>pro_yearly</td>")
	assert.Contains(t, actual, "<td><b>Email</b></td><td>N/A</td>")
	assert.Contains(t, actual, "<td><b>coupon</b></td><td>WELCOME10</td>")
	assert.Contains(t, actual, "Proof attached: proof.png (2.0 kB, image/png)")
	assert.Contains(t, actual, "Submission s1")

	sub.Attachment = nil
	actual, err = email.BuildMessage(email.TplSubmission, sub)
	require.NoError(t, err)
	assert.Contains(t, actual, "No proof attached.")
}
