// Package bus carries messages between pages and the background scheduler.
package bus

import "time"

// MessageType names a cross-context message.
type MessageType string

const (
	// MessageCloseTab asks the background to close the sending page's tab.
	MessageCloseTab MessageType = "CLOSE_TAB"
	// MessageTimerStarted tells the background a commitment was made.
	MessageTimerStarted MessageType = "TIMER_STARTED"
	// MessageTimerComplete is broadcast by the background when the commitment runs out.
	MessageTimerComplete MessageType = "TIMER_COMPLETE"
)

// TimerStarted is the payload of MessageTimerStarted.
type TimerStarted struct {
	Minutes int   `json:"minutes"`
	EndTime int64 `json:"endTime"`
}

// End returns the payload's end time.
func (started TimerStarted) End() time.Time {
	return time.UnixMilli(started.EndTime)
}

// Message is a single cross-context message.
type Message struct {
	Type MessageType   `json:"type"`
	Data *TimerStarted `json:"data,omitempty"`
}

// CloseTab builds a MessageCloseTab.
func CloseTab() Message {
	return Message{Type: MessageCloseTab}
}

// TimerStartedMessage builds a MessageTimerStarted.
func TimerStartedMessage(minutes int, endTime time.Time) Message {
	return Message{
		Type: MessageTimerStarted,
		Data: &TimerStarted{Minutes: minutes, EndTime: endTime.UnixMilli()},
	}
}

// TimerComplete builds a MessageTimerComplete.
func TimerComplete() Message {
	return Message{Type: MessageTimerComplete}
}

// TabID identifies an open tab.
type TabID string

// Tab describes an open tab.
type Tab struct {
	ID  TabID
	URL string
}

// Envelope is a page message as seen by the background.
type Envelope struct {
	Sender  Tab
	Message Message
}
