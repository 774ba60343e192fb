package email

const TplSubmission = `<h2>New LuxFlix payment submission</h2>
<table>
{{- range .Entries}}
	<tr><td><b>{{.Label}}</b></td><td>{{if .Value}}{{.Value}}{{else}}N/A{{end}}</td></tr>
{{- end}}
</table>
<br>
{{if .Attachment -}}
<p>Proof attached: {{.Attachment.Filename}} ({{.Attachment.Size}}, {{.Attachment.MimeType}})</p>
{{- else -}}
<p>No proof attached.</p>
{{- end}}
<p>Approve or reject it from the Telegram admin chat.</p>
<small>Submission {{.ID}}</small>
`
