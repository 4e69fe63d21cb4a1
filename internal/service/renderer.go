package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/noah-isme/dont-forgetter-api/internal/models"
	"github.com/noah-isme/dont-forgetter-api/pkg/timemath"
)

// DefaultSignature closes every notification body unless configured otherwise.
const DefaultSignature = "Sent by dont-forgetter"

var placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Notification is a rendered message ready for a channel.
type Notification struct {
	Title string
	Body  string
}

// NotificationRenderer turns an event into a notification title and body.
type NotificationRenderer struct {
	signature string
}

// NewNotificationRenderer constructs a renderer with the given signature line.
func NewNotificationRenderer(signature string) *NotificationRenderer {
	if strings.TrimSpace(signature) == "" {
		signature = DefaultSignature
	}
	return &NotificationRenderer{signature: signature}
}

// Render builds the notification for an event. custom_variables are assumed to have been
// validated when the event was saved; unparsable variables are ignored here.
func (r *NotificationRenderer) Render(event *models.Event) Notification {
	vars, _ := ParseCustomVariables(deref(event.CustomVariables))

	title := r.defaultTitle(event)
	if subject := strings.TrimSpace(deref(event.CustomEmailSubject)); subject != "" {
		title = Substitute(subject, vars)
	}

	body := r.defaultBody(event)
	if message := strings.TrimSpace(deref(event.CustomMessage)); message != "" {
		body = Substitute(message, vars)
	}

	return Notification{Title: title, Body: body + "\n\n--\n" + r.signature}
}

func (r *NotificationRenderer) defaultTitle(event *models.Event) string {
	if event.Category == "" || event.Category == models.DefaultCategory {
		return fmt.Sprintf("Time for %s!", event.Title)
	}
	return fmt.Sprintf("Time for %s (%s)!", event.Title, event.Category)
}

func (r *NotificationRenderer) defaultBody(event *models.Event) string {
	lines := make([]string, 0, 4)
	if notice, err := timemath.ParsePeriod("notice_time", event.NoticeTime); err == nil && !notice.IsZero() {
		lines = append(lines, fmt.Sprintf("%s starts in %s.", event.Title, notice.Phrase()))
	}
	lines = append(lines, fmt.Sprintf("Scheduled for %s at %s (UTC%s).", event.Date, event.Time, event.UTCOffset))
	if interval, err := timemath.ParsePeriod("interval", event.Interval); err == nil && !interval.IsZero() {
		lines = append(lines, fmt.Sprintf("This reminder repeats every %s.", interval.Phrase()))
	}
	if info := strings.TrimSpace(deref(event.Info)); info != "" {
		lines = append(lines, "", info)
	}
	return strings.Join(lines, "\n")
}

// ParseCustomVariables parses "key=value; key=value". Values may contain further "=" signs;
// empty segments are ignored.
func ParseCustomVariables(raw string) (map[string]string, error) {
	vars := make(map[string]string)
	for _, segment := range strings.Split(raw, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		idx := strings.Index(segment, "=")
		if idx < 0 {
			return nil, fmt.Errorf("custom variable %q is not key=value", segment)
		}
		key := strings.TrimSpace(segment[:idx])
		if key == "" {
			return nil, fmt.Errorf("custom variable %q has an empty key", segment)
		}
		vars[key] = strings.TrimSpace(segment[idx+1:])
	}
	return vars, nil
}

// Substitute replaces each {{key}} with its value. Unknown placeholders are left as written.
func Substitute(template string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		if value, ok := vars[match[2:len(match)-2]]; ok {
			return value
		}
		return match
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
