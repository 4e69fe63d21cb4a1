package dto

// UpdateProfileRequest changes the mutable profile fields.
type UpdateProfileRequest struct {
	Username    *string `json:"username" validate:"omitempty,min=3,max=150"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,e164"`
}

// UpdateSettingsRequest changes event defaults. Nil fields are left unchanged.
type UpdateSettingsRequest struct {
	DefaultNotificationType *string `json:"default_notification_type" validate:"omitempty,oneof=email sms"`
	DefaultTime             *string `json:"default_time" validate:"omitempty,evtime"`
	DefaultUTCOffset        *string `json:"default_utc_offset" validate:"omitempty,utcoffset"`
	SMSSenderName           *string `json:"sms_sender_name" validate:"omitempty,max=11"`
}
