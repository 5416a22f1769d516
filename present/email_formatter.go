package present

import (
	"fmt"
	"html"
	"strings"

	"github.com/karwei/ntfywatch/lib/models"
)

type notificationEmailFormat struct {
	sub   *models.Subscription
	notif *models.Notification
}

// Priority 1..5 mapped to a subject prefix; the email channel has no
// interruption levels of its own.
var priorityPrefix = map[int]string{
	1: "",
	2: "",
	3: "",
	4: "[high] ",
	5: "[urgent] ",
}

func (ef *notificationEmailFormat) Subject() string {
	title := ef.notif.Title
	if title == "" {
		title = ef.sub.TopicURL()
	}
	return fmt.Sprintf("%sntfywatch: %s", priorityPrefix[ef.notif.Priority], title)
}

func (ef *notificationEmailFormat) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<h3>New message on <a href="%s">%s</a>:</h3>`, ef.sub.TopicURL(), ef.sub.TopicURL())
	fmt.Fprintf(&b, "<br><pre>%s</pre>", html.EscapeString(ef.notif.Message))
	if ef.notif.Tags != "" {
		fmt.Fprintf(&b, "<br>Tags: %s", html.EscapeString(ef.notif.Tags))
	}
	if ef.notif.ClickURL != "" {
		fmt.Fprintf(&b, `<br><a href="%s">Open</a>`, ef.notif.ClickURL)
	}
	return b.String()
}
