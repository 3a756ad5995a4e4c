package taxappeal

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jrsteele09/taxappeal-client/apiclient"
	"github.com/pkg/errors"
)

const (
	meetingInfoPath     = "/api/v1/meeting-info/"
	calendarConsentPath = "/oauth2/authorization/google"
)

// ErrCalendarAuthorizationRequired means the backend has no calendar grant
// for the user. It is not a session problem: the user must visit the consent
// URL in CalendarAuthorizationError and try again.
var ErrCalendarAuthorizationRequired = errors.New("calendar authorization required")

type CalendarAuthorizationError struct {
	URL string
}

func (e *CalendarAuthorizationError) Error() string {
	return fmt.Sprintf("%s: visit %s", ErrCalendarAuthorizationRequired, e.URL)
}

func (e *CalendarAuthorizationError) Is(target error) bool {
	return target == ErrCalendarAuthorizationRequired
}

// MeetingInfo is the venue and time printed on committee invitations.
type MeetingInfo struct {
	Venue       string `json:"venue"`
	MeetingTime string `json:"meetingTime"` // HH:mm:ss
}

// CreateMeeting asks the backend for a video meeting and returns its link.
func (s *Service) CreateMeeting(ctx context.Context) (string, error) {
	var resp struct {
		MeetLink string `json:"meetLink"`
	}
	err := s.client.Post(ctx, apiclient.MeetingCreatePath, nil, &resp)
	if apiclient.IsStatus(err, http.StatusUnauthorized) {
		return "", &CalendarAuthorizationError{URL: s.client.BaseURL() + calendarConsentPath}
	}
	if err != nil {
		return "", errors.Wrap(err, "[Service.CreateMeeting]")
	}
	if resp.MeetLink == "" {
		return "", errors.New("[Service.CreateMeeting] response carried no meeting link")
	}
	return resp.MeetLink, nil
}

// UpdateMeetingInfo changes the invitation template. meetingTime may be
// given as HH:mm, seconds are appended.
func (s *Service) UpdateMeetingInfo(ctx context.Context, id string, info MeetingInfo) error {
	if err := requireID("meeting info id", id); err != nil {
		return err
	}
	if len(info.MeetingTime) == len("15:04") {
		info.MeetingTime += ":00"
	}
	if err := s.client.Put(ctx, meetingInfoPath+escape(id), info, nil); err != nil {
		return errors.Wrapf(err, "[Service.UpdateMeetingInfo] %s", id)
	}
	return nil
}
