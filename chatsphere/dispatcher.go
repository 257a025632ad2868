package chatsphere

// Dispatcher routes engine state changes to registered callbacks. The UI
// layer is an external subscriber; it never mutates engine state through
// these hooks.
type Dispatcher struct {
	onSnapshot       func([]Message)
	onMessageCreated func(Message)
	onMessageEdited  func(Message)
	onMessageDeleted func(messageID string)
	onTypingChanged  func([]PresenceEntry)
	onReceipt        func(messageID, userID string)
	onState          func(StateEvent)
	onError          func(error)
}

func (d *Dispatcher) SetOnSnapshot(fn func([]Message))               { d.onSnapshot = fn }
func (d *Dispatcher) SetOnMessageCreated(fn func(Message))           { d.onMessageCreated = fn }
func (d *Dispatcher) SetOnMessageEdited(fn func(Message))            { d.onMessageEdited = fn }
func (d *Dispatcher) SetOnMessageDeleted(fn func(string))            { d.onMessageDeleted = fn }
func (d *Dispatcher) SetOnTypingChanged(fn func([]PresenceEntry))    { d.onTypingChanged = fn }
func (d *Dispatcher) SetOnReceipt(fn func(messageID, userID string)) { d.onReceipt = fn }
func (d *Dispatcher) SetOnState(fn func(StateEvent))                 { d.onState = fn }
func (d *Dispatcher) SetOnError(fn func(error))                      { d.onError = fn }

func (d *Dispatcher) fireSnapshot(msgs []Message) {
	if d.onSnapshot != nil {
		d.onSnapshot(msgs)
	}
}

func (d *Dispatcher) fireMessageCreated(m Message) {
	if d.onMessageCreated != nil {
		d.onMessageCreated(m)
	}
}

func (d *Dispatcher) fireMessageEdited(m Message) {
	if d.onMessageEdited != nil {
		d.onMessageEdited(m)
	}
}

func (d *Dispatcher) fireMessageDeleted(id string) {
	if d.onMessageDeleted != nil {
		d.onMessageDeleted(id)
	}
}

func (d *Dispatcher) fireTypingChanged(entries []PresenceEntry) {
	if d.onTypingChanged != nil {
		d.onTypingChanged(entries)
	}
}

func (d *Dispatcher) fireReceipt(messageID, userID string) {
	if d.onReceipt != nil {
		d.onReceipt(messageID, userID)
	}
}

func (d *Dispatcher) fireState(ev StateEvent) {
	if d.onState != nil {
		d.onState(ev)
	}
}

func (d *Dispatcher) fireError(err error) {
	if d.onError != nil && err != nil {
		d.onError(err)
	}
}
