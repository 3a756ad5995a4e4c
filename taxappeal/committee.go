package taxappeal

import (
	"context"

	"github.com/pkg/errors"
)

const (
	membersAvailabilityPath = "/api/v1/committee/members-availability"
	committeeMemberPath     = "/api/v1/committee/member/"
)

type MemberAvailability struct {
	ID                 string `json:"id"`
	FullName           string `json:"fullName"`
	Title              string `json:"title"`
	CommitteeRole      string `json:"committeeRole"`
	AvailabilityStatus bool   `json:"availabilityStatus"`
}

func (s *Service) MembersAvailability(ctx context.Context) ([]MemberAvailability, error) {
	var members []MemberAvailability
	if err := s.client.Get(ctx, membersAvailabilityPath, nil, &members); err != nil {
		return nil, errors.Wrap(err, "[Service.MembersAvailability]")
	}
	return members, nil
}

// SetMemberAvailability is used by the committee leader to mark a member
// available or not.
func (s *Service) SetMemberAvailability(ctx context.Context, memberID string, available bool) error {
	if err := requireID("member id", memberID); err != nil {
		return err
	}
	body := map[string]bool{"availabilityStatus": available}
	if err := s.client.Put(ctx, committeeMemberPath+escape(memberID)+"/availability", body, nil); err != nil {
		return errors.Wrapf(err, "[Service.SetMemberAvailability] member %s", memberID)
	}
	return nil
}
