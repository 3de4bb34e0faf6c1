package main

import (
	"time"

	"keyerd/internal/engine"
	"keyerd/internal/logging"
	"keyerd/internal/output"
	"keyerd/internal/store"
)

// sessionRoller opens a journal session for every keyer and speed setting
// the engine reports, closing the previous one. It runs on the engine
// goroutine through engine.Config.OnChange.
type sessionRoller struct {
	st   *store.Store
	sink *output.JournalSink
	log  *logging.Logger

	current string
	keyer   int
	wpm     int
}

func (r *sessionRoller) onChange(s engine.Status) {
	if r.current != "" && s.Number == r.keyer && s.WPM == r.wpm {
		return
	}
	r.end()

	sess, err := r.st.StartSession(s.Number, s.WPM)
	if err != nil {
		r.log.Error("start journal session", "error", err)
		r.sink.SetSession("")
		return
	}
	r.current, r.keyer, r.wpm = sess.ID, s.Number, s.WPM
	r.sink.SetSession(sess.ID)
	r.log.Debug("journal session started", "session", sess.ID, "keyer", s.Name, "wpm", s.WPM)
}

// end closes the current session, if any.
func (r *sessionRoller) end() {
	if r.current == "" {
		return
	}
	if err := r.st.EndSession(r.current, time.Now().UnixNano()); err != nil {
		r.log.Error("end journal session", "session", r.current, "error", err)
	}
	r.current = ""
}
