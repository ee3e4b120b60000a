package authpw

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"concord/api/internal/store"

	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	byEmail map[string]store.User
	created []store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: map[string]store.User{}}
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	f.byEmail[user.Email] = user
	f.created = append(f.created, user)
	return user, nil
}

func TestSignUpCreatesUserWithHashedPassword(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	user, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "Avery@Example.com",
		Password:    "correct horse",
		DisplayName: "Avery",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.Email != "avery@example.com" {
		t.Fatalf("email not lowercased: %q", user.Email)
	}
	if !strings.HasPrefix(user.ID, "usr_") {
		t.Fatalf("unexpected user id %q", user.ID)
	}
	if user.PasswordHash != "" {
		t.Fatal("password hash leaked in response")
	}

	stored := fs.created[0]
	if stored.PasswordHash == "correct horse" || stored.PasswordHash == "" {
		t.Fatal("password stored unhashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	svc := NewService(newFakeUserStore())

	cases := []struct {
		name string
		req  SignUpRequest
		want error
	}{
		{name: "missing email", req: SignUpRequest{Password: "long enough", DisplayName: "A"}, want: ErrMissingFields},
		{name: "missing name", req: SignUpRequest{Email: "a@b.c", Password: "long enough"}, want: ErrMissingFields},
		{name: "short password", req: SignUpRequest{Email: "a@b.c", Password: "short", DisplayName: "A"}, want: ErrPasswordTooShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.SignUp(context.Background(), tc.req); err != tc.want {
				t.Fatalf("SignUp() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	req := SignUpRequest{Email: "avery@example.com", Password: "correct horse", DisplayName: "Avery"}
	if _, err := svc.SignUp(context.Background(), req); err != nil {
		t.Fatalf("first SignUp() error = %v", err)
	}
	if _, err := svc.SignUp(context.Background(), req); err != ErrEmailTaken {
		t.Fatalf("second SignUp() error = %v, want ErrEmailTaken", err)
	}
}

func TestSignInVerifiesPassword(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	if _, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "avery@example.com",
		Password:    "correct horse",
		DisplayName: "Avery",
	}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	user, err := svc.SignIn(context.Background(), "avery@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if user.DisplayName != "Avery" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash != "" {
		t.Fatal("password hash leaked in response")
	}

	if _, err := svc.SignIn(context.Background(), "avery@example.com", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("SignIn() with wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.SignIn(context.Background(), "ghost@example.com", "correct horse"); err != ErrInvalidCredentials {
		t.Fatalf("SignIn() with unknown email error = %v, want ErrInvalidCredentials", err)
	}
}
