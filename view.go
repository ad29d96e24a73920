package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/neovim/go-client/nvim"

	"diffreview/buffer"
	"diffreview/engine"
	"diffreview/logger"
	"diffreview/review"
	"diffreview/types"
)

// statusReply is what every session handler returns to the editor
type statusReply struct {
	Session   string `msgpack:"session"`
	Total     int    `msgpack:"total"`
	Resolved  int    `msgpack:"resolved"`
	Remaining int    `msgpack:"remaining"`
	Current   int    `msgpack:"current"`
	Label     string `msgpack:"label"`
	Closed    bool   `msgpack:"closed"`
	Processed int    `msgpack:"processed"`
}

// shown is a session presented in one editor buffer
type shown struct {
	session *review.Session
	buf     *buffer.NvimBuffer
}

// view presents the review sessions of one editor connection
type view struct {
	d *Daemon
	n *nvim.Nvim

	mu       sync.Mutex
	sessions map[string]*shown
}

func newView(d *Daemon, n *nvim.Nvim) *view {
	return &view{d: d, n: n, sessions: make(map[string]*shown)}
}

func (v *view) register() error {
	handlers := map[string]any{
		"diffreview_request":    v.request,
		"diffreview_trigger":    v.trigger,
		"diffreview_cancel":     v.cancel,
		"diffreview_accept":     v.accept,
		"diffreview_reject":     v.reject,
		"diffreview_accept_all": v.acceptAll,
		"diffreview_reject_all": v.rejectAll,
		"diffreview_close":      v.close,
		"diffreview_next":       v.next,
		"diffreview_previous":   v.previous,
		"diffreview_status":     v.status,
	}
	for method, fn := range handlers {
		if err := v.n.RegisterHandler(method, fn); err != nil {
			return fmt.Errorf("register %s: %w", method, err)
		}
	}
	return nil
}

func (v *view) params(bufnr, start, end int, filePath, fileType, mode string) engine.RequestParams {
	buf := buffer.NewNvim(v.n, nvim.Buffer(bufnr))
	return engine.RequestParams{
		BufferID:  fmt.Sprintf("%d", bufnr),
		Buffer:    buf,
		FilePath:  filePath,
		FileType:  fileType,
		Selection: review.Span{Start: start, End: end},
		Mode:      types.ParseMode(mode),
		Done: func(s *review.Session, err error) {
			v.opened(buf, s, err)
		},
	}
}

// request generates a proposal for the selection right away
func (v *view) request(bufnr, start, end int, filePath, fileType, mode string) {
	p := v.params(bufnr, start, end, filePath, fileType, mode)
	go func() {
		s, err := v.d.engine.Request(v.d.ctx, p)
		p.Done(s, err)
	}()
}

// trigger schedules a request after the configured delay, replacing any
// pending trigger
func (v *view) trigger(bufnr, start, end int, filePath, fileType, mode string) {
	v.d.engine.Schedule(0, v.params(bufnr, start, end, filePath, fileType, mode))
}

func (v *view) cancel(bufnr, start, end int) bool {
	return v.d.engine.CancelRequest(fmt.Sprintf("%d", bufnr), review.Span{Start: start, End: end})
}

func (v *view) opened(buf *buffer.NvimBuffer, s *review.Session, err error) {
	switch {
	case errors.Is(err, review.ErrNothingToReview):
		v.echo("diffreview: nothing to review")
		return
	case errors.Is(err, engine.ErrStaleResult):
		return
	case err != nil:
		v.echo("diffreview: " + err.Error())
		return
	}

	v.mu.Lock()
	v.sessions[s.ID] = &shown{session: s, buf: buf}
	v.mu.Unlock()

	v.d.tracker.TrackShown(s)
	v.render(s.ID)
	if err := v.n.ExecLua("vim.g.diffreview_session = ...", nil, s.ID); err != nil {
		logger.Warn("publishing session id: %v", err)
	}
}

func (v *view) lookup(id string) (*shown, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	sh, ok := v.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrSessionNotFound, id)
	}
	return sh, nil
}

func (v *view) accept(id string, index int) (*statusReply, error) {
	return v.resolve(id, index, true)
}

func (v *view) reject(id string, index int) (*statusReply, error) {
	return v.resolve(id, index, false)
}

func (v *view) resolve(id string, index int, accept bool) (*statusReply, error) {
	sh, err := v.lookup(id)
	if err != nil {
		return nil, err
	}
	var out review.Outcome
	if accept {
		out, err = v.d.engine.Accept(id, index)
	} else {
		out, err = v.d.engine.Reject(id, index)
	}
	if err != nil {
		return nil, err
	}
	v.d.tracker.TrackOutcomes(sh.session, out)
	return v.after(sh, 1), nil
}

func (v *view) acceptAll(id string) (*statusReply, error) {
	return v.bulk(id, v.d.engine.AcceptAll)
}

func (v *view) rejectAll(id string) (*statusReply, error) {
	return v.bulk(id, v.d.engine.RejectAll)
}

func (v *view) close(id string) (*statusReply, error) {
	return v.bulk(id, v.d.engine.Close)
}

func (v *view) bulk(id string, op func(string) (review.BulkResult, error)) (*statusReply, error) {
	sh, err := v.lookup(id)
	if err != nil {
		return nil, err
	}
	res, err := op(id)
	if err != nil {
		return nil, err
	}
	if res.Forced {
		logger.Warn("session %s: buffer diverged, region rewritten as a whole", id)
	}
	v.d.tracker.TrackOutcomes(sh.session, res.Outcomes...)
	return v.after(sh, res.Processed), nil
}

func (v *view) next(id string) (*statusReply, error) {
	return v.move(id, v.d.engine.Next)
}

func (v *view) previous(id string) (*statusReply, error) {
	return v.move(id, v.d.engine.Previous)
}

func (v *view) move(id string, op func(string) (int, error)) (*statusReply, error) {
	sh, err := v.lookup(id)
	if err != nil {
		return nil, err
	}
	if _, err := op(id); err != nil {
		return nil, err
	}
	return v.after(sh, 0), nil
}

func (v *view) status(id string) (*statusReply, error) {
	sh, err := v.lookup(id)
	if err != nil {
		return nil, err
	}
	return reply(sh.session, 0), nil
}

// after redraws sh and drops it once its session has finished
func (v *view) after(sh *shown, processed int) *statusReply {
	v.render(sh.session.ID)
	st := reply(sh.session, processed)
	if st.Closed {
		v.mu.Lock()
		delete(v.sessions, sh.session.ID)
		v.mu.Unlock()
	}
	return st
}

func reply(s *review.Session, processed int) *statusReply {
	st := s.Status()
	return &statusReply{
		Session:   s.ID,
		Total:     st.Total,
		Resolved:  st.Resolved,
		Remaining: st.Remaining,
		Current:   st.Current,
		Label:     st.Label,
		Closed:    st.Closed,
		Processed: processed,
	}
}

// render replaces the highlights of session id with its current
// annotations and scrolls to the current chunk
func (v *view) render(id string) {
	sh, err := v.lookup(id)
	if err != nil {
		return
	}

	var marks []buffer.Mark
	if !sh.session.Closed() {
		marks = annotationMarks(sh.session.Annotations())
	}
	if err := sh.buf.Highlight(v.d.config.NsID, marks); err != nil {
		logger.Warn("highlighting session %s: %v", id, err)
	}

	if offset := sh.session.CurrentOffset(); offset >= 0 {
		if err := sh.buf.Scroll(offset); err != nil {
			logger.Warn("scrolling session %s: %v", id, err)
		}
	}
	v.echo(sh.session.Status().Label)
}

// annotationMarks turns annotations into highlight marks. The tooltip and
// actions are shown once per chunk.
func annotationMarks(anns []review.Annotation) []buffer.Mark {
	marks := make([]buffer.Mark, 0, len(anns))
	labelled := make(map[int]bool)
	for _, a := range anns {
		m := buffer.Mark{Start: a.Offset, End: a.End, Group: "DiffAdd"}
		if a.Kind == "deleted" {
			m.Group = "DiffDelete"
		}
		if !labelled[a.Chunk] {
			m.VirtText = fmt.Sprintf("%s  [%s | %s]", a.Tooltip, a.Primary.Label, a.Secondary.Label)
			labelled[a.Chunk] = true
		}
		marks = append(marks, m)
	}
	return marks
}

func (v *view) echo(msg string) {
	if err := v.n.WriteOut(msg + "\n"); err != nil {
		logger.Debug("echo: %v", err)
	}
}

// closeAll ends the sessions of a connection that went away
func (v *view) closeAll() {
	v.mu.Lock()
	ids := make([]string, 0, len(v.sessions))
	for id := range v.sessions {
		ids = append(ids, id)
	}
	v.sessions = make(map[string]*shown)
	v.mu.Unlock()

	for _, id := range ids {
		if _, err := v.d.engine.Close(id); err != nil && !errors.Is(err, engine.ErrSessionNotFound) {
			logger.Debug("closing session %s: %v", id, err)
		}
	}
}
