package taxappeal

import (
	"context"

	"github.com/jrsteele09/taxappeal-client/internal/utils"
	"github.com/pkg/errors"
)

const userPath = "/api/v1/user/"

type User struct {
	ID                 string `json:"id"`
	FullName           string `json:"fullName"`
	Email              string `json:"email"`
	Title              string `json:"title"`
	PhoneNumber        string `json:"phoneNumber"`
	CommitteeRole      string `json:"committeeRole"`
	CommitteeGroup     string `json:"committeeGroup"`
	AvailabilityStatus bool   `json:"availabilityStatus"`
}

// ProfileUpdate is the body of a profile change. The backend reads the role
// in snake case on this endpoint only.
type ProfileUpdate struct {
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phoneNumber"`
	Title          string `json:"title"`
	CommitteeRole  string `json:"committee_role"`
	CommitteeGroup string `json:"committeeGroup"`
}

// ProxyCredentials is a temporary login a committee member hands to a delegate.
type ProxyCredentials struct {
	Email             string `json:"email"`
	TemporaryPassword string `json:"temporaryPassword"`
}

// CurrentUser returns the profile of the logged in staff member.
func (s *Service) CurrentUser(ctx context.Context) (*User, error) {
	u, err := getData[User](ctx, s.client, userPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.CurrentUser]")
	}
	return &u, nil
}

func (s *Service) User(ctx context.Context, userID string) (*User, error) {
	if err := requireID("user id", userID); err != nil {
		return nil, err
	}
	u, err := getData[User](ctx, s.client, userPath+escape(userID), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "[Service.User] user %s", userID)
	}
	return &u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, update *ProfileUpdate) error {
	if err := requireID("user id", userID); err != nil {
		return err
	}
	if err := s.client.Put(ctx, userPath+escape(userID), update, nil); err != nil {
		return errors.Wrapf(err, "[Service.UpdateProfile] user %s", userID)
	}
	return nil
}

// SetAvailability sends the bare boolean as the body.
func (s *Service) SetAvailability(ctx context.Context, userID string, available bool) error {
	if err := requireID("user id", userID); err != nil {
		return err
	}
	if err := s.client.Put(ctx, userPath+escape(userID)+"/availability-status", available, nil); err != nil {
		return errors.Wrapf(err, "[Service.SetAvailability] user %s", userID)
	}
	return nil
}

func (s *Service) GenerateProxy(ctx context.Context) (*ProxyCredentials, error) {
	var resp Response[*ProxyCredentials]
	if err := s.client.Post(ctx, userPath+"generate-proxy", nil, &resp); err != nil {
		return nil, errors.Wrap(err, "[Service.GenerateProxy]")
	}
	creds := utils.Value(resp.Data)
	if creds.Email == "" {
		return nil, errors.New("[Service.GenerateProxy] response carried no credentials")
	}
	return &creds, nil
}
