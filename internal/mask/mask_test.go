package mask

import (
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/cocogogo0101-tech/CueBot/internal/store"
)

type fakePoster struct {
	posts map[string][]string
	err   error
}

func (f *fakePoster) Post(channelID, content string) error {
	if f.err != nil {
		return f.err
	}
	if f.posts == nil {
		f.posts = make(map[string][]string)
	}
	f.posts[channelID] = append(f.posts[channelID], content)
	return nil
}

func newResponder(t *testing.T) (*Responder, *store.Store, *fakePoster) {
	t.Helper()
	s := store.Open(filepath.Join(t.TempDir(), "db.json"), "k", false, zap.NewNop())
	p := &fakePoster{}
	return NewResponder(s, p, zap.NewNop(), "g1"), s, p
}

func TestRepliesInMaskChannel(t *testing.T) {
	r, s, p := newResponder(t)
	s.SetMaskChannel("c1")
	s.SetMaskReply("busy right now")

	r.HandleMessage("g1", "c1", "u1", false)

	if got := p.posts["c1"]; len(got) != 1 || got[0] != "busy right now" {
		t.Fatalf("posts = %v", p.posts)
	}
}

func TestDefaultReplyWhenUnset(t *testing.T) {
	r, s, p := newResponder(t)
	s.SetMaskChannel("c1")
	s.SetMaskReply("")

	r.HandleMessage("g1", "c1", "u1", false)

	if got := p.posts["c1"]; len(got) != 1 || got[0] != defaultReply {
		t.Fatalf("posts = %v", p.posts)
	}
}

func TestIgnoresOtherChannelsBotsAndDMs(t *testing.T) {
	r, s, p := newResponder(t)
	s.SetMaskChannel("c1")

	r.HandleMessage("g1", "c2", "u1", false) // other channel
	r.HandleMessage("g1", "c1", "u1", true)  // bot author
	r.HandleMessage("", "c1", "u1", false)   // DM
	r.HandleMessage("g2", "c1", "u1", false) // foreign guild

	if len(p.posts) != 0 {
		t.Fatalf("posts = %v", p.posts)
	}
}

func TestNoConfiguredChannelSilent(t *testing.T) {
	r, _, p := newResponder(t)
	r.HandleMessage("g1", "c1", "u1", false)
	if len(p.posts) != 0 {
		t.Fatal("no mask channel configured; must not reply")
	}
}

func TestPostFailureSwallowed(t *testing.T) {
	r, s, p := newResponder(t)
	s.SetMaskChannel("c1")
	p.err = errors.New("channel gone")

	// Must not panic or propagate.
	r.HandleMessage("g1", "c1", "u1", false)
}
