// Package users keeps the membership record of each app user as a JSON
// document in the GitHub storage.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fabianMendez/luxflix/pkg/storage"
)

const usersdir = "users"

// maxAttempts bounds the read-modify-write loop when another writer wins the
// race for the same record.
const maxAttempts = 3

// ErrInvalidUID is returned for ids that are not a plain account id and so
// could name a file outside the users directory.
var ErrInvalidUID = errors.New("invalid user id")

var uidPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

func validateUID(uid string) error {
	if !uidPattern.MatchString(uid) {
		return fmt.Errorf("%w: %q", ErrInvalidUID, uid)
	}
	return nil
}

type User struct {
	UID            string    `json:"uid"`
	IsPremium      bool      `json:"isPremium"`
	MembershipPlan *string   `json:"membershipPlan"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Files is the subset of storage.GithubStorage used by Store.
type Files interface {
	Read(ctx context.Context, path string) (storage.File, error)
	Write(ctx context.Context, path string, b []byte, sha, message string) error
}

type Store struct {
	Files Files
	// NewBackOff paces conflict re-attempts. Nil means exponential.
	NewBackOff func() backoff.BackOff
}

func NewStore(files Files) *Store {
	return &Store{Files: files}
}

func filename(uid string) string {
	return path.Join(usersdir, uid+".json")
}

func (s *Store) Get(ctx context.Context, uid string) (User, error) {
	user, _, err := s.get(ctx, uid)
	return user, err
}

func (s *Store) get(ctx context.Context, uid string) (User, string, error) {
	var user User

	if err := validateUID(uid); err != nil {
		return user, "", err
	}

	file, err := s.Files.Read(ctx, filename(uid))
	if err != nil {
		return user, "", err
	}

	err = json.Unmarshal(file.Content, &user)
	if err != nil {
		return user, "", fmt.Errorf("could not decode user: %w", err)
	}

	return user, file.SHA, nil
}

// SetPrivilegeAndPlan sets the premium flag of uid. An empty plan clears the
// membership plan. A missing record is created.
func (s *Store) SetPrivilegeAndPlan(ctx context.Context, uid string, privileged bool, plan string) error {
	if err := validateUID(uid); err != nil {
		return err
	}

	operation := func() error {
		user, sha, err := s.get(ctx, uid)
		if errors.Is(err, storage.ErrNotFound) {
			user, sha, err = User{}, "", nil
		}
		if err != nil {
			return backoff.Permanent(fmt.Errorf("could not read user: %w", err))
		}

		user.UID = uid
		user.IsPremium = privileged
		user.MembershipPlan = nil
		if plan != "" {
			user.MembershipPlan = &plan
		}
		user.UpdatedAt = time.Now().UTC()

		b, err := json.Marshal(user)
		if err != nil {
			return backoff.Permanent(err)
		}

		message := fmt.Sprintf("set premium=%t for user %s", privileged, uid)
		err = s.Files.Write(ctx, filename(uid), b, sha, message)
		if errors.Is(err, storage.ErrConflict) {
			return err
		}
		if err != nil {
			return backoff.Permanent(fmt.Errorf("could not save user: %w", err))
		}

		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(s.backOff(), maxAttempts-1), ctx))
}

func (s *Store) backOff() backoff.BackOff {
	if s.NewBackOff != nil {
		return s.NewBackOff()
	}
	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = 200 * time.Millisecond
	return boff
}
