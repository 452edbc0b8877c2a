package bridge

import "html/template"

type prefillData struct {
	FirstName string
	Email     string
}

// Values are rendered in a JS context, so html/template emits them as escaped string literals.
var prefillScript = template.Must(template.New("prefill").Parse(`<script>
jQuery(document).ready(function($) {
{{- if .FirstName}}
	$('input[name=edd_first]').val({{.FirstName}});
{{- end}}
{{- if .Email}}
	$('input[name=edd_email]').val({{.Email}});
{{- end}}
});
</script>
`))
