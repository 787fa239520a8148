package notifier

import (
	"fmt"
	"strings"

	"PriceSentinel/internal/model"
)

// FormatSubject renders a one-line summary of a triggered alert.
func FormatSubject(p model.Payload) string {
	return fmt.Sprintf("%s %s %s", p.Symbol, p.Direction, p.Threshold)
}

// FormatMessage renders a plain-text notification body for text channels.
func FormatMessage(p model.Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Price alert #%d triggered\n", p.AlertID)
	fmt.Fprintf(&b, "%s is now %s (%s threshold %s)", p.Symbol, p.Price.String(), p.Direction, p.Threshold)
	return b.String()
}
