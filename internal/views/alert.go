// Package views holds the pieces shared by every JSON view model.
package views

type AlertType string

const (
	AlertError   AlertType = "error"
	AlertWarning AlertType = "warning"
	AlertSuccess AlertType = "success"
)

// Alert is an inline message shown on the current view.
type Alert struct {
	Type        AlertType `json:"type"`
	Message     string    `json:"message"`
	Dismissible bool      `json:"dismissible"`
}

func ErrorAlert(message string) *Alert {
	return &Alert{Type: AlertError, Message: message, Dismissible: true}
}

func WarningAlert(message string) *Alert {
	return &Alert{Type: AlertWarning, Message: message, Dismissible: true}
}

func SuccessAlert(message string) *Alert {
	return &Alert{Type: AlertSuccess, Message: message, Dismissible: true}
}

// AlertBody is the response body of a failed request.
type AlertBody struct {
	Alert  *Alert            `json:"alert"`
	Errors map[string]string `json:"errors,omitempty"`
}
