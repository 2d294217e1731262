package telegram

import (
	"fmt"
	"time"
)

// FormatDeadLetterForTelegram formats an operator notice for a delivery attempt
// that exhausted its retries and was dead-lettered.
func FormatDeadLetterForTelegram(symbol, thresholdKind, channel string, userID uint, attempts int, lastError string, at time.Time) string {
	return fmt.Sprintf(
		"🚨 *Delivery dead-lettered*\n"+
			"📈 *Symbol:* %s\n"+
			"🎯 *Threshold:* %s\n"+
			"📬 *Channel:* %s\n"+
			"👤 *User:* %d\n"+
			"🔁 *Attempts:* %d\n"+
			"❗ *Last error:* %s\n"+
			"🕐 *At:* %s\n"+
			"Manual resend required via the dead-letter API.",
		symbol, thresholdKind, channel, userID, attempts, lastError, at.Format(time.RFC3339),
	)
}
