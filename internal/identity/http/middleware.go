package http

import (
	"context"
	"net/http"

	"github.com/skyfold/console/internal/identity/session"
	"github.com/skyfold/console/pkg/slogx"
)

type ctxKey struct{}

// withSession attaches the browser's session to the request context,
// creating a fresh one (and issuing its cookie) when the request carries no
// valid session cookie.
func (r *Router) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		var sess *session.Session
		if sid, ok := r.cookies.SessionID(req); ok {
			sess, ok = r.sessions.Get(sid)
			if !ok {
				sess = nil
			}
		}

		if sess == nil {
			sess = r.sessions.Create()
			if err := r.cookies.Issue(w, sess.ID); err != nil {
				slogx.FromContext(ctx).Error("issuing session cookie", "err", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
		}

		next.ServeHTTP(w, req.WithContext(contextWithSession(ctx, sess)))
	})
}

func contextWithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// sessionFrom returns the request's session. The session middleware always
// runs first, so a missing session is a wiring bug.
func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(ctxKey{}).(*session.Session)
	return sess
}
