package models

// Severity of a classified alert
type Severity int

const (
	SeverityInfo Severity = iota + 1
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name in JSON and YAML output
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ClassifiedAlert is one matched audit record, shaped for rendering.
// It is built once by the classifier and not modified afterwards.
type ClassifiedAlert struct {
	ActorARN       string   `json:"actorArn"`
	EventName      string   `json:"eventName"`
	EventSource    string   `json:"eventSource"`
	AccountID      string   `json:"accountId"`
	PrincipalLabel string   `json:"principalLabel"`
	EventTime      string   `json:"eventTime"`
	Severity       Severity `json:"severity"`
	Category       string   `json:"category"`
	ColorTag       string   `json:"colorTag"`
	Pretext        string   `json:"pretext"`

	// ParameterFields holds one entry per top-level request parameter.
	// ParameterText holds the same parameters as a single block.
	// At most one of the two is set, depending on the rule set form.
	ParameterFields []Param `json:"parameterFields,omitempty"`
	ParameterText   string  `json:"parameterText,omitempty"`
}

// Param is a rendered request parameter
type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (p Param) String() string {
	return p.Key + ": " + p.Value
}

// AlertBatchMessage is the webhook payload for one archive
type AlertBatchMessage struct {
	Channel     string       `json:"channel"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment is one rendered alert in a chat message
type Attachment struct {
	Fallback string   `json:"fallback"`
	Color    string   `json:"color"`
	Pretext  string   `json:"pretext"`
	Text     string   `json:"text"`
	Fields   []Field  `json:"fields,omitempty"`
	MrkdwnIn []string `json:"mrkdwn_in"`
}

// Field is a single attachment field
type Field struct {
	Title string `json:"title,omitempty"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
