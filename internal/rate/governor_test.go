package rate

import (
	"strings"
	"testing"
)

// testClock returns a governor whose clock starts at epoch ms 1_000_000
// and can be advanced manually.
func testClock(limits Limits) (*Governor, *int64) {
	now := int64(1_000_000)
	g := NewGovernorAt(limits, func() int64 { return now })
	return g, &now
}

func TestCheckEmptyStateAllows(t *testing.T) {
	g, _ := testClock(Limits{})
	state := State{}
	for _, a := range []Action{ActionRequest, ActionComment, ActionPost} {
		if d := g.Check(state, "tom", a); !d.Allowed {
			t.Errorf("empty state should allow %s: %+v", a, d)
		}
	}
}

func TestRequestLimitBoundary(t *testing.T) {
	g, now := testClock(Limits{})
	state := State{}

	for i := 0; i < 100; i++ {
		d := g.Check(state, "tom", ActionRequest)
		if !d.Allowed {
			t.Fatalf("request %d should be allowed: %+v", i+1, d)
		}
		g.Record(state, "tom", ActionRequest)
	}

	d := g.Check(state, "tom", ActionRequest)
	if d.Allowed {
		t.Fatal("101st request should be denied")
	}
	if !strings.Contains(d.Reason, "100 requests/min") {
		t.Errorf("reason = %q, want mention of 100 requests/min", d.Reason)
	}
	if d.WaitMs <= 0 || d.WaitMs > 60_000 {
		t.Errorf("wait_ms = %d, want within the window", d.WaitMs)
	}

	// Window passes; counters prune away and the profile is allowed again.
	*now += 61_000
	d = g.Check(state, "tom", ActionRequest)
	if !d.Allowed {
		t.Errorf("after window should allow: %+v", d)
	}
	if _, ok := state["tom"]; ok {
		t.Error("fully pruned profile should be dropped from state")
	}
}

func TestPostCooldown(t *testing.T) {
	g, now := testClock(Limits{})
	state := State{}

	g.Record(state, "tom", ActionPost)
	*now += 5_000

	d := g.Check(state, "tom", ActionPost)
	if d.Allowed {
		t.Fatal("second post inside cooldown should be denied")
	}
	if d.WaitMs != 1800_000-5_000 {
		t.Errorf("wait_ms = %d, want %d", d.WaitMs, 1800_000-5_000)
	}
	if !strings.Contains(d.Reason, "cooldown") {
		t.Errorf("reason = %q", d.Reason)
	}

	*now += 1800_000
	if d := g.Check(state, "tom", ActionPost); !d.Allowed {
		t.Errorf("after cooldown should allow: %+v", d)
	}
}

func TestCommentLimit(t *testing.T) {
	g, _ := testClock(Limits{})
	state := State{}
	for i := 0; i < 50; i++ {
		g.Record(state, "tom", ActionComment)
	}
	d := g.Check(state, "tom", ActionComment)
	if d.Allowed {
		t.Fatal("51st comment should be denied")
	}
	if !strings.Contains(d.Reason, "50 comments/hour") {
		t.Errorf("reason = %q", d.Reason)
	}
}

func TestWritesCountAsRequests(t *testing.T) {
	g, _ := testClock(Limits{})
	state := State{}

	g.Record(state, "tom", ActionPost)
	g.Record(state, "tom", ActionComment)

	ps := state["tom"]
	if len(ps.Requests) != 2 {
		t.Errorf("requests = %d, want 2 (post and comment each count)", len(ps.Requests))
	}
}

func TestServerRetryAfterOverrides(t *testing.T) {
	g, now := testClock(Limits{})
	state := State{}

	g.ApplyServerRetryAfter(state, "tom", ActionComment, 120)

	d := g.Check(state, "tom", ActionComment)
	if d.Allowed {
		t.Fatal("server cooldown should deny")
	}
	if d.Reason != "server retry_after for comment" {
		t.Errorf("reason = %q", d.Reason)
	}
	if d.WaitMs != 120_000 {
		t.Errorf("wait_ms = %d, want 120000", d.WaitMs)
	}

	// Other actions are unaffected.
	if d := g.Check(state, "tom", ActionPost); !d.Allowed {
		t.Errorf("post should be allowed: %+v", d)
	}

	// Expired cooldown prunes and the profile entry disappears.
	*now += 121_000
	if d := g.Check(state, "tom", ActionComment); !d.Allowed {
		t.Errorf("expired cooldown should allow: %+v", d)
	}
	if _, ok := state["tom"]; ok {
		t.Error("profile with only an expired cooldown should be dropped")
	}
}

func TestWindowBoundaryInclusive(t *testing.T) {
	g, now := testClock(Limits{})
	state := State{}
	g.Record(state, "tom", ActionRequest)

	// Exactly window-old: still inside.
	*now += 60_000
	g.Check(state, "tom", ActionRequest)
	if ps := state["tom"]; ps == nil || len(ps.Requests) != 1 {
		t.Error("timestamp exactly at the boundary should be kept")
	}

	*now += 1
	g.Check(state, "tom", ActionRequest)
	if _, ok := state["tom"]; ok {
		t.Error("timestamp past the boundary should be pruned")
	}
}

func TestProfilesIsolated(t *testing.T) {
	g, _ := testClock(Limits{})
	state := State{}
	for i := 0; i < 100; i++ {
		g.Record(state, "tom", ActionRequest)
	}
	if d := g.Check(state, "tom", ActionRequest); d.Allowed {
		t.Error("tom should be limited")
	}
	if d := g.Check(state, "jerry", ActionRequest); !d.Allowed {
		t.Error("jerry should be unaffected by tom's counters")
	}
}

func TestCustomLimits(t *testing.T) {
	g, _ := testClock(Limits{RequestsPerMinute: 2})
	state := State{}
	g.Record(state, "tom", ActionRequest)
	g.Record(state, "tom", ActionRequest)
	d := g.Check(state, "tom", ActionRequest)
	if d.Allowed {
		t.Fatal("third request should be denied at limit 2")
	}
	if !strings.Contains(d.Reason, "2 requests/min") {
		t.Errorf("reason = %q", d.Reason)
	}
}
