package bridge

import "mvave-bridge/midi"

// LearningSession describes the learn handshake. It is never persisted.
type LearningSession struct {
	Active bool
	Target string // empty while armed without a target
	Field  Field
}

// Aimed reports whether the next incoming controller will be consumed.
func (s LearningSession) Aimed() bool {
	return s.Active && s.Target != ""
}

// Learner runs the one-shot assignment state machine:
//
//	Idle -Arm-> Armed -RequestTarget-> Aimed -incoming CC-> Idle
//
// Aiming at the current target again returns to Armed. Disarm returns to
// Idle from anywhere. Learner is not synchronized.
type Learner struct {
	session LearningSession
}

func (l *Learner) Session() LearningSession {
	return l.session
}

func (l *Learner) Arm() {
	if !l.session.Active {
		l.session = LearningSession{Active: true}
	}
}

// RequestTarget aims the session, arming it if needed. It reports
// LearnCancelled when the same target was already aimed.
func (l *Learner) RequestTarget(id string, field Field) LearnStatus {
	if l.session.Aimed() && l.session.Target == id && l.session.Field == field {
		l.session = LearningSession{Active: true}
		return LearnCancelled
	}
	l.session = LearningSession{Active: true, Target: id, Field: field}
	return LearnWaiting
}

// Disarm clears the session and returns what it was.
func (l *Learner) Disarm() LearningSession {
	prev := l.session
	l.session = LearningSession{}
	return prev
}

// OnIncomingCC writes control into the aimed field of the target and
// disarms. The returned session is the one that was consumed.
func (l *Learner) OnIncomingCC(reg *Registry, control midi.CC) (*Switch, LearningSession, error) {
	s := l.Disarm()
	if !s.Aimed() {
		return nil, s, nil
	}
	sw, ok := reg.Find(s.Target)
	if !ok {
		return nil, s, ErrUnknownSwitch
	}
	if !control.Valid() {
		return sw, s, ErrValidation
	}
	if s.Field == FieldOutput {
		sw.OutputCC = control
	} else {
		sw.InputCC = control
	}
	return sw, s, nil
}
