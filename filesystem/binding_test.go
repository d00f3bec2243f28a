package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPathPrefix(t *testing.T) {
	assert.True(t, HasPathPrefix("/foo/bar", "/foo"))
	assert.True(t, HasPathPrefix("/foo", "/foo"))
	assert.True(t, HasPathPrefix("/anything", "/"))
	assert.False(t, HasPathPrefix("/foobar", "/foo"))
	assert.False(t, HasPathPrefix("/fo", "/foo"))
}

func TestBindingSubstitutePrefix(t *testing.T) {
	// "/etc" on the host appears as "/media" in the guest
	b := NewBinding("/etc", "/media")

	got, ok := b.SubstitutePrefix("/etc/bin/sleep", Host)
	assert.True(t, ok)
	assert.Equal(t, "/media/bin/sleep", got)

	got, ok = b.SubstitutePrefix("/media/bin/sleep", Guest)
	assert.True(t, ok)
	assert.Equal(t, "/etc/bin/sleep", got)

	_, ok = b.SubstitutePrefix("/media/bin/sleep", Host)
	assert.False(t, ok)
	_, ok = b.SubstitutePrefix("/etc/bin/sleep", Guest)
	assert.False(t, ok)
}

func TestBindingSubstitutePrefixRoot(t *testing.T) {
	b := NewBinding("/home/user", "/")

	got, ok := b.SubstitutePrefix("/bin/sleep", Guest)
	assert.True(t, ok)
	assert.Equal(t, "/home/user/bin/sleep", got)

	got, ok = b.SubstitutePrefix("/", Guest)
	assert.True(t, ok)
	assert.Equal(t, "/home/user", got)

	got, ok = b.SubstitutePrefix("/home/user", Host)
	assert.True(t, ok)
	assert.Equal(t, "/", got)

	got, ok = b.SubstitutePrefix("/home/user/etc", Host)
	assert.True(t, ok)
	assert.Equal(t, "/etc", got)
}

func TestBindingSymmetric(t *testing.T) {
	b := NewBinding("/etc/something", "/etc/something")
	assert.False(t, b.NeedsSubstitution())

	got, ok := b.SubstitutePrefix("/etc/something/sub", Guest)
	assert.True(t, ok)
	assert.Equal(t, "/etc/something/sub", got)
}
