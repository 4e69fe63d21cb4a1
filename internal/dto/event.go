package dto

// EventRequest is the writable part of an event. Empty optional fields fall back to the
// user's settings on create.
type EventRequest struct {
	Category           string  `json:"category" validate:"omitempty,max=70"`
	Title              string  `json:"title" validate:"required,max=100"`
	Date               string  `json:"date" validate:"required,evdate"`
	Time               string  `json:"time" validate:"omitempty,evtime"`
	UTCOffset          string  `json:"utc_offset" validate:"omitempty,utcoffset"`
	NoticeTime         string  `json:"notice_time" validate:"omitempty,period"`
	Interval           string  `json:"interval" validate:"omitempty,interval"`
	NotificationType   string  `json:"notification_type" validate:"omitempty,oneof=email sms"`
	Recipient          string  `json:"recipient" validate:"omitempty,max=254"`
	CustomEmailSubject *string `json:"custom_email_subject" validate:"omitempty,max=200"`
	CustomMessage      *string `json:"custom_message" validate:"omitempty,max=3000"`
	CustomVariables    *string `json:"custom_variables" validate:"omitempty,customvars"`
	Info               *string `json:"info" validate:"omitempty,max=3000"`
	Count              *int    `json:"count" validate:"omitempty,min=2"`
}

// ListRequest carries the optional filter expression of list endpoints.
type ListRequest struct {
	Query string `form:"query"`
}
