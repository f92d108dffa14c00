package services

import (
	"context"
	"testing"

	"learnhub/apperr"
	"learnhub/database"
	"learnhub/logger"
	"learnhub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	db := database.OpenTest(t)
	accounts := NewAccounts(db, bcrypt.MinCost, logger.Nop())
	ctx := context.Background()

	user, err := accounts.Register(ctx, SignupRequest{Name: "Sam", Email: "Sam@Example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", user.Email)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.NotEqual(t, "correct horse", user.Password)

	_, err = accounts.Register(ctx, SignupRequest{Name: "Sam again", Email: "sam@example.com", Password: "whatever1"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	client := LoginClient{IPAddress: "10.0.0.1", Device: "go-test"}
	logged, err := accounts.Authenticate(ctx, LoginRequest{Email: "sam@example.com", Password: "correct horse"}, client)
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.NotNil(t, logged.LastLogin)

	history, total, err := accounts.LoginHistory(ctx, Actor{UserID: user.ID}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "10.0.0.1", history[0].IPAddress)

	_, err = accounts.Authenticate(ctx, LoginRequest{Email: "nobody@example.com", Password: "x"}, client)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestAuthenticateBlocksAfterRepeatedFailures(t *testing.T) {
	db := database.OpenTest(t)
	accounts := NewAccounts(db, bcrypt.MinCost, logger.Nop())
	ctx := context.Background()

	_, err := accounts.Register(ctx, SignupRequest{Name: "Sam", Email: "sam@example.com", Password: "correct horse"})
	require.NoError(t, err)

	wrong := LoginRequest{Email: "sam@example.com", Password: "battery staple"}
	for k := 0; k < maxFailedLogins; k++ {
		_, err := accounts.Authenticate(ctx, wrong, LoginClient{})
		require.True(t, apperr.Is(err, apperr.KindUnauthorized))
	}

	var stored models.User
	require.NoError(t, db.Where("email = ?", "sam@example.com").First(&stored).Error)
	require.NotNil(t, stored.BlockedUntil)

	// the right password is refused while blocked
	_, err = accounts.Authenticate(ctx, LoginRequest{Email: "sam@example.com", Password: "correct horse"}, LoginClient{})
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))
	appErr, _ := apperr.As(err)
	assert.Contains(t, appErr.Message, "blocked")
}

func TestReviews(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	reviews := NewReviews(e.db, logger.Nop())
	instructor := e.user(t, "ines", models.RoleInstructor)
	student := e.user(t, "sam", models.RoleStudent)
	course, lessons := e.course(t, instructor, 1)

	_, err := reviews.Add(ctx, student, course.ID, ReviewRequest{Rating: 5})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	e.enroll(t, student, course.ID)
	_, err = reviews.Add(ctx, student, course.ID, ReviewRequest{Rating: 5})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = e.tracker.CompleteLesson(ctx, student, course.ID, lessons[0].ID)
	require.NoError(t, err)

	review, err := reviews.Add(ctx, student, course.ID, ReviewRequest{Rating: 4, Comment: " solid "})
	require.NoError(t, err)
	assert.Equal(t, "solid", review.Comment)

	_, err = reviews.Add(ctx, student, course.ID, ReviewRequest{Rating: 3})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	list, err := reviews.ForCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
