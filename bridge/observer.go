package bridge

// Observer receives one-way notifications. Implementations must not call
// back into Engine mutation methods from these callbacks.
type Observer interface {
	StateChanged(controlID string, on bool)
	LearningProgress(controlID string, field Field, status LearnStatus)
	ConnectionChanged(connected bool)
}

// ObserverFuncs adapts plain functions to Observer; nil funcs are skipped.
type ObserverFuncs struct {
	OnState      func(controlID string, on bool)
	OnLearning   func(controlID string, field Field, status LearnStatus)
	OnConnection func(connected bool)
}

func (f ObserverFuncs) StateChanged(id string, on bool) {
	if f.OnState != nil {
		f.OnState(id, on)
	}
}

func (f ObserverFuncs) LearningProgress(id string, field Field, status LearnStatus) {
	if f.OnLearning != nil {
		f.OnLearning(id, field, status)
	}
}

func (f ObserverFuncs) ConnectionChanged(connected bool) {
	if f.OnConnection != nil {
		f.OnConnection(connected)
	}
}

type noticeKind int

const (
	noticeState noticeKind = iota
	noticeLearning
	noticeConnection
)

// notice is a notification computed under a lock and delivered after it.
type notice struct {
	kind   noticeKind
	id     string
	on     bool
	field  Field
	status LearnStatus
}

func stateNotice(id string, on bool) notice {
	return notice{kind: noticeState, id: id, on: on}
}

func learnNotice(id string, field Field, status LearnStatus) notice {
	return notice{kind: noticeLearning, id: id, field: field, status: status}
}

func connNotice(connected bool) notice {
	return notice{kind: noticeConnection, on: connected}
}

func deliver(observers []Observer, notices []notice) {
	for _, n := range notices {
		for _, o := range observers {
			switch n.kind {
			case noticeState:
				o.StateChanged(n.id, n.on)
			case noticeLearning:
				o.LearningProgress(n.id, n.field, n.status)
			case noticeConnection:
				o.ConnectionChanged(n.on)
			}
		}
	}
}
