package reqctx

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestContext identifies the caller of a core operation. It is built once by the
// transport and passed explicitly so that stamping and auditing never reach for globals.
type RequestContext struct {
	ActorID   string
	ActorName string
	FullName  string
	IP        *string
	UserAgent string
	Now       time.Time
}

// Anonymous reports whether the context has no resolvable actor.
func (rc RequestContext) Anonymous() bool {
	return strings.TrimSpace(rc.ActorName) == ""
}

// IPString returns the client IP or an empty string.
func (rc RequestContext) IPString() string {
	if rc.IP == nil {
		return ""
	}
	return *rc.IP
}

// WithActor returns a copy attributed to the supplied user.
func (rc RequestContext) WithActor(id, username, fullName string) RequestContext {
	rc.ActorID = id
	rc.ActorName = username
	rc.FullName = fullName
	return rc
}

// Actor is the authenticated identity propagated through the gin context.
type Actor struct {
	UserID    string
	Username  string
	FullName  string
	SessionID string
}

const ctxActorKey = "reqctx.actor"

// SetActor stores the authenticated actor on the gin context.
func SetActor(c *gin.Context, actor Actor) {
	c.Set(ctxActorKey, actor)
}

// ActorFrom returns the actor stored by SetActor.
func ActorFrom(c *gin.Context) (Actor, bool) {
	if c == nil {
		return Actor{}, false
	}
	value, ok := c.Get(ctxActorKey)
	if !ok {
		return Actor{}, false
	}
	actor, ok := value.(Actor)
	return actor, ok
}

// FromGin builds a RequestContext for the current request. Anonymous requests yield an
// empty actor.
func FromGin(c *gin.Context, now time.Time) RequestContext {
	rc := RequestContext{Now: now}
	if c == nil {
		return rc
	}
	if ip := strings.TrimSpace(c.ClientIP()); ip != "" {
		rc.IP = &ip
	}
	if c.Request != nil {
		rc.UserAgent = c.Request.UserAgent()
	}
	if actor, ok := ActorFrom(c); ok {
		rc.ActorID = actor.UserID
		rc.ActorName = actor.Username
		rc.FullName = actor.FullName
	}
	return rc
}
