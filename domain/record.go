package domain

// Record is a churn call record as it is stored in the document store.
type Record struct {
	ID           string   `json:"id,omitempty" yaml:"id"`
	PhoneNumber  string   `json:"phone_number" yaml:"phone_number"`
	CallCount    int      `json:"call_count" yaml:"call_count"`
	CallDuration float64  `json:"call_duration" yaml:"call_duration"`
	CallCharges  float64  `json:"call_charges" yaml:"call_charges"`
	Customer     Customer `json:"customer" yaml:"customer"`
}

type Customer struct {
	AccountAge           int    `json:"account_age" yaml:"account_age"`
	Churn                string `json:"churn" yaml:"churn"`
	CustomerServiceCalls int    `json:"customer_service_calls" yaml:"customer_service_calls"`
	InternationalPlan    string `json:"international_plan" yaml:"international_plan"`
	NumberVmailMessages  int    `json:"number_vmail_messages" yaml:"number_vmail_messages"`
	State                string `json:"state" yaml:"state"`
	VoiceMailPlan        string `json:"voice_mail_plan" yaml:"voice_mail_plan"`
}

// Document is the flattened, read-only row shown in the grid.
type Document struct {
	ID                   string  `json:"id"`
	PhoneNumber          string  `json:"phone_number"`
	CallCount            int     `json:"call_count"`
	CallDuration         float64 `json:"call_duration"`
	CallCharges          float64 `json:"call_charges"`
	AccountAge           int     `json:"account_age"`
	Churn                string  `json:"churn"`
	CustomerServiceCalls int     `json:"customer_service_calls"`
	InternationalPlan    string  `json:"international_plan"`
	NumberVmailMessages  int     `json:"number_vmail_messages"`
	State                string  `json:"state"`
	VoiceMailPlan        string  `json:"voice_mail_plan"`
}

// FromRecord projects a stored record onto the grid row. id wins over the record's own id.
func FromRecord(id string, r Record) Document {
	if id == "" {
		id = r.ID
	}
	return Document{
		ID:                   id,
		PhoneNumber:          r.PhoneNumber,
		CallCount:            r.CallCount,
		CallDuration:         r.CallDuration,
		CallCharges:          r.CallCharges,
		AccountAge:           r.Customer.AccountAge,
		Churn:                r.Customer.Churn,
		CustomerServiceCalls: r.Customer.CustomerServiceCalls,
		InternationalPlan:    r.Customer.InternationalPlan,
		NumberVmailMessages:  r.Customer.NumberVmailMessages,
		State:                r.Customer.State,
		VoiceMailPlan:        r.Customer.VoiceMailPlan,
	}
}

const (
	churnHealthNoRisk    = "No Risk"
	churnHealthWillChurn = "Will churn"
)

// ChurnHealth labels the churn flag the way the in-memory table shows it.
func ChurnHealth(churn string) string {
	if churn == "0" {
		return churnHealthNoRisk
	}
	return churnHealthWillChurn
}
