package forms

import (
	"net/http"

	"github.com/TheLab-ms/formcheckout/engine"
)

// Submission is the processing context of one saved form submission.
type Submission struct {
	ID        int64
	Request   *http.Request
	FormID    int64
	FormTitle string

	// Ajax is true when the form submits without a full page navigation.
	Ajax bool

	// Settings holds the form-level settings registered through the settings framework.
	Settings map[string]string

	// UserInfo holds the non-empty user fields: first_name and email.
	UserInfo map[string]string

	// Total is the computed total, either a scalar string or a
	// structured breakdown (map[string]any) with a "total" entry.
	Total any

	// Response replaces the default response when set by an observer that halts dispatch.
	Response engine.Response

	// RedirectURL is handed to ajax forms, which navigate to it once the submission is saved.
	RedirectURL string
}

// Setting returns a form setting, or an empty string when unset.
func (s *Submission) Setting(name string) string { return s.Settings[name] }
