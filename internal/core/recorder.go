package core

// Recorder observes broker activity. Implementations must be safe for
// concurrent use; calls happen outside broker locks.
type Recorder interface {
	RoomCreated()
	RoomRemoved()
	MemberJoined()
	MemberLeft()
	DeliveryStarted()
	DeliveryStopped()
	MessagePublished()
	MessageDelivered()
	MessagesDropped(n uint64)
	RenderFailed()
}

type nopRecorder struct{}

func (nopRecorder) RoomCreated()           {}
func (nopRecorder) RoomRemoved()           {}
func (nopRecorder) MemberJoined()          {}
func (nopRecorder) MemberLeft()            {}
func (nopRecorder) DeliveryStarted()       {}
func (nopRecorder) DeliveryStopped()       {}
func (nopRecorder) MessagePublished()      {}
func (nopRecorder) MessageDelivered()      {}
func (nopRecorder) MessagesDropped(uint64) {}
func (nopRecorder) RenderFailed()          {}
