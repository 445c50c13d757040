package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct {
	titles []string
}

func (r *recordingNotifier) Notify(title, _ string) error {
	r.titles = append(r.titles, title)
	return nil
}

func TestGate_PromptRunsAtMostOnce(t *testing.T) {
	prompts := 0
	g := NewGate(func() bool { prompts++; return true }, nil)

	assert.True(t, g.Request())
	assert.True(t, g.Request())
	assert.Equal(t, 1, prompts)
	assert.Equal(t, PermissionGranted, g.State())
}

func TestGate_DenyIsSticky(t *testing.T) {
	prompts := 0
	g := NewGate(func() bool { prompts++; return false }, nil)

	assert.False(t, g.Request())
	assert.False(t, g.Request(), "an explicit deny must not re-prompt")
	assert.Equal(t, 1, prompts)
	assert.Equal(t, PermissionDenied, g.State())
}

func TestGate_NotifyRequiresGrant(t *testing.T) {
	rec := &recordingNotifier{}
	g := NewGate(func() bool { return false }, rec)

	g.Notify("before decision", "ignored")
	g.Request()
	g.Notify("after deny", "ignored")

	assert.Empty(t, rec.titles)
}

func TestGate_NotifyDeliversWhenGranted(t *testing.T) {
	rec := &recordingNotifier{}
	g := NewGate(func() bool { return true }, rec)

	g.Request()
	g.Notify("high severity screening", "a student needs attention")

	assert.Equal(t, []string{"high severity screening"}, rec.titles)
}

func TestGate_NilPromptDenies(t *testing.T) {
	g := NewGate(nil, nil)
	assert.False(t, g.Request())
	assert.Equal(t, PermissionDenied, g.State())
}
