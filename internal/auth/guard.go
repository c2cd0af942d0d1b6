package auth

import (
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/metrics"
)

// Outcome is the terminal state of a guard policy.
type Outcome int

const (
	OutcomeAllow Outcome = iota + 1
	OutcomeRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is Allow(identity) or Redirect(target).
type Decision struct {
	outcome Outcome
	user    *entity.User
	target  string
}

// Allow admits the request. user is nil on auth surfaces.
func Allow(user *entity.User) Decision {
	return Decision{outcome: OutcomeAllow, user: user}
}

// Redirect sends the caller to target instead of rendering.
func Redirect(target string) Decision {
	return Decision{outcome: OutcomeRedirect, target: target}
}

func (d Decision) Outcome() Outcome { return d.outcome }

func (d Decision) Allowed() bool { return d.outcome == OutcomeAllow }

// User is the identity admitted by an Allow decision.
func (d Decision) User() *entity.User { return d.user }

// Target is the redirect location of a Redirect decision.
func (d Decision) Target() string { return d.target }

// Resolver answers who the caller of a scope is.
type Resolver interface {
	CurrentUser(sc *Scope) *entity.User
	Session(sc *Scope) *entity.Session
}

// Paths are the navigation targets of the guard.
type Paths struct {
	Login string
	Home  string
}

// Guard decides, before any page content is produced, whether a request may
// render. It never retries: an unresolved caller is an anonymous caller.
type Guard struct {
	resolver Resolver
	paths    Paths
	metrics  *metrics.Metrics
}

func NewGuard(resolver Resolver, paths Paths, m *metrics.Metrics) *Guard {
	if paths.Login == "" {
		paths.Login = "/login"
	}
	if paths.Home == "" {
		paths.Home = "/"
	}
	return &Guard{resolver: resolver, paths: paths, metrics: m}
}

func (g *Guard) Paths() Paths { return g.paths }

// Protected admits authenticated callers and sends everyone else to login.
func (g *Guard) Protected(sc *Scope) Decision {
	d := Redirect(g.paths.Login)
	if user := g.resolver.CurrentUser(sc); user != nil {
		d = Allow(user)
	}
	g.metrics.ObserveDecision("protected", d.outcome.String())
	return d
}

// AuthSurface keeps callers with a live session away from the login and
// sign-up pages.
func (g *Guard) AuthSurface(sc *Scope) Decision {
	d := Allow(nil)
	if session := g.resolver.Session(sc); session != nil {
		d = Redirect(g.paths.Home)
	}
	g.metrics.ObserveDecision("auth_surface", d.outcome.String())
	return d
}
