// Package rate enforces per-profile sliding-window rate limits on
// platform actions. State is a plain value: the caller loads it, runs
// checks and records against it, and persists it back. Server-declared
// cooldowns (retry_after) always win over local accounting.
package rate

import (
	"fmt"
	"time"
)

// Action classifies a platform call for rate accounting.
type Action string

const (
	ActionRequest Action = "request"
	ActionComment Action = "comment"
	ActionPost    Action = "post"
)

// Built-in thresholds. The post limit is a strict cooldown (one post
// per window), not a counter.
const (
	requestWindowMs = 60 * 1000
	commentWindowMs = 3600 * 1000
	postWindowMs    = 1800 * 1000

	requestLimit = 100
	commentLimit = 50
)

// ProfileState holds one profile's in-window action timestamps, in
// milliseconds since epoch, oldest first, plus any server-imposed
// cooldown deadlines.
type ProfileState struct {
	Requests     []int64          `json:"requests,omitempty"`
	Comments     []int64          `json:"comments,omitempty"`
	Posts        []int64          `json:"posts,omitempty"`
	BlockedUntil map[Action]int64 `json:"blocked_until,omitempty"`
}

func (p *ProfileState) empty() bool {
	return len(p.Requests) == 0 && len(p.Comments) == 0 && len(p.Posts) == 0 && len(p.BlockedUntil) == 0
}

// State maps profile name to its rate state. The zero value is usable.
type State map[string]*ProfileState

// Decision is the outcome of a rate check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	WaitMs  int64  `json:"wait_ms,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Limits lets callers override the built-in thresholds; zero fields
// keep the defaults.
type Limits struct {
	RequestsPerMinute int
	CommentsPerHour   int
	PostCooldownMs    int64
}

// Governor runs checks against a State using an injectable clock.
type Governor struct {
	limits Limits
	now    func() int64
}

// NewGovernor creates a governor using wall-clock time.
func NewGovernor(limits Limits) *Governor {
	return &Governor{
		limits: limits,
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

// NewGovernorAt creates a governor with an injected clock (tests).
func NewGovernorAt(limits Limits, now func() int64) *Governor {
	return &Governor{limits: limits, now: now}
}

func (g *Governor) requestLimit() int {
	if g.limits.RequestsPerMinute > 0 {
		return g.limits.RequestsPerMinute
	}
	return requestLimit
}

func (g *Governor) commentLimit() int {
	if g.limits.CommentsPerHour > 0 {
		return g.limits.CommentsPerHour
	}
	return commentLimit
}

func (g *Governor) postWindow() int64 {
	if g.limits.PostCooldownMs > 0 {
		return g.limits.PostCooldownMs
	}
	return postWindowMs
}

// Check reports whether the profile may perform the action now. It
// prunes expired timestamps first, so State shrinks as windows pass.
func (g *Governor) Check(state State, profile string, action Action) Decision {
	now := g.now()
	g.prune(state, now)

	ps := state[profile]
	if ps == nil {
		return Decision{Allowed: true}
	}

	if until, ok := ps.BlockedUntil[action]; ok && until > now {
		return Decision{
			Allowed: false,
			WaitMs:  until - now,
			Reason:  fmt.Sprintf("server retry_after for %s", action),
		}
	}

	switch action {
	case ActionRequest:
		if len(ps.Requests) >= g.requestLimit() {
			return Decision{
				Allowed: false,
				WaitMs:  ps.Requests[0] + requestWindowMs - now,
				Reason:  fmt.Sprintf("local limit: %d requests/min", g.requestLimit()),
			}
		}
	case ActionComment:
		if len(ps.Comments) >= g.commentLimit() {
			return Decision{
				Allowed: false,
				WaitMs:  ps.Comments[0] + commentWindowMs - now,
				Reason:  fmt.Sprintf("local limit: %d comments/hour", g.commentLimit()),
			}
		}
	case ActionPost:
		if len(ps.Posts) >= 1 {
			last := ps.Posts[len(ps.Posts)-1]
			return Decision{
				Allowed: false,
				WaitMs:  last + g.postWindow() - now,
				Reason:  "local limit: post cooldown",
			}
		}
	}
	return Decision{Allowed: true}
}

// Record appends the action at the current time. Posting or commenting
// is also a request, so those actions count against the request budget
// too.
func (g *Governor) Record(state State, profile string, action Action) {
	now := g.now()
	g.prune(state, now)

	ps := state[profile]
	if ps == nil {
		ps = &ProfileState{}
		state[profile] = ps
	}

	switch action {
	case ActionRequest:
		ps.Requests = append(ps.Requests, now)
	case ActionComment:
		ps.Comments = append(ps.Comments, now)
		ps.Requests = append(ps.Requests, now)
	case ActionPost:
		ps.Posts = append(ps.Posts, now)
		ps.Requests = append(ps.Requests, now)
	}
}

// ApplyServerRetryAfter records a server-imposed cooldown, which
// overrides local accounting until it expires.
func (g *Governor) ApplyServerRetryAfter(state State, profile string, action Action, seconds int) {
	now := g.now()
	g.prune(state, now)

	ps := state[profile]
	if ps == nil {
		ps = &ProfileState{}
		state[profile] = ps
	}
	if ps.BlockedUntil == nil {
		ps.BlockedUntil = make(map[Action]int64)
	}
	ps.BlockedUntil[action] = now + int64(seconds)*1000
}

// prune drops timestamps older than their window (boundary inclusive:
// a timestamp exactly window-old is still in) and expired cooldowns,
// then removes profiles left with no state at all.
func (g *Governor) prune(state State, now int64) {
	for profile, ps := range state {
		ps.Requests = pruneWindow(ps.Requests, now-requestWindowMs)
		ps.Comments = pruneWindow(ps.Comments, now-commentWindowMs)
		ps.Posts = pruneWindow(ps.Posts, now-g.postWindow())
		for action, until := range ps.BlockedUntil {
			if until <= now {
				delete(ps.BlockedUntil, action)
			}
		}
		if len(ps.BlockedUntil) == 0 {
			ps.BlockedUntil = nil
		}
		if ps.empty() {
			delete(state, profile)
		}
	}
}

func pruneWindow(timestamps []int64, cutoff int64) []int64 {
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts >= cutoff {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
