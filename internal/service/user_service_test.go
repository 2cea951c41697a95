package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"taskhub/internal/apperr"
)

func newUserService() (*UserService, *fakeUserStore) {
	store := newFakeUserStore()
	return NewUserService(store, zap.NewNop()), store
}

func TestCreateUser(t *testing.T) {
	svc, _ := newUserService()

	user, err := svc.Create(context.Background(), CreateUserInput{
		Name:  "Ana Torres",
		Email: "ana@example.com",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("user should get an id")
	}
}

func TestCreateUserBadEmail(t *testing.T) {
	svc, _ := newUserService()

	_, err := svc.Create(context.Background(), CreateUserInput{
		Name:  "Ana",
		Email: "not-an-email",
	})
	assertCode(t, err, apperr.CodeInvalidParameter)
}

func TestCreateUserEmptyName(t *testing.T) {
	svc, _ := newUserService()

	_, err := svc.Create(context.Background(), CreateUserInput{
		Name:  "  ",
		Email: "a@b.com",
	})
	assertCode(t, err, apperr.CodeInvalidParameter)
}

func TestGetUserNotFound(t *testing.T) {
	svc, _ := newUserService()
	_, err := svc.Get(context.Background(), 42)
	assertCode(t, err, apperr.CodeNotFound)
}

func TestListUsersPagination(t *testing.T) {
	svc, _ := newUserService()
	for i := 0; i < 3; i++ {
		if _, err := svc.Create(context.Background(), CreateUserInput{Name: "u", Email: "u@example.com"}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	users, pg, err := svc.List(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("page size = %d, want 2", len(users))
	}
	if pg.Total != 3 || pg.TotalPages != 2 {
		t.Fatalf("pagination = %+v", pg)
	}
}
