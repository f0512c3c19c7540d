package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_LoginLogout(t *testing.T) {
	s := New("")
	_, ok := s.CurrentUser()
	assert.False(t, ok)

	s.Login("user-1")
	id, ok := s.CurrentUser()
	assert.True(t, ok)
	assert.Equal(t, "user-1", id)

	s.Logout()
	_, ok = s.CurrentUser()
	assert.False(t, ok)
}

func TestSession_InitialUser(t *testing.T) {
	id, ok := New("static-user").CurrentUser()
	assert.True(t, ok)
	assert.Equal(t, "static-user", id)
}

func TestSession_UserChangeNotifiesOnlyOnChange(t *testing.T) {
	s := New("user-1")
	var got []string
	h := s.SubscribeToUserChange(func(userID string) {
		// 观察者读取到的已是新用户
		current, _ := s.CurrentUser()
		assert.Equal(t, userID, current)
		got = append(got, userID)
	})

	s.Login("user-1")
	s.Login("user-2")
	s.Logout()
	s.Logout()
	s.Login("user-3")

	assert.Equal(t, []string{"user-2", "", "user-3"}, got)

	s.UnsubscribeFromUserChange(h)
	s.Login("user-4")
	assert.Len(t, got, 3)
}
