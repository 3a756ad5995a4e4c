package taxappeal

import (
	"context"

	"github.com/pkg/errors"
)

const appealsPath = "/api/appeals/"

// Decision is a committee member's verdict on an appeal point.
type Decision string

const (
	WithBasis Decision = "WITHBASIS"
	NoBasis   Decision = "NOBASIS"
	Abstain   Decision = "ABSTAIN"
)

func (d Decision) Valid() bool {
	switch d {
	case WithBasis, NoBasis, Abstain:
		return true
	}
	return false
}

// Vote is a committee member's decision on one appeal point. Only the
// committee leader's vote carries a comment.
type Vote struct {
	CommitteeMemberID   string   `json:"committeeMemberId,omitempty"`
	CommitteeMemberName string   `json:"committeeMemberName"`
	CommitteeDecision   Decision `json:"committeeDecision"`
	VoteComment         string   `json:"voteComment,omitempty"`
}

// Tally counts votes per decision.
func Tally(votes []Vote) map[Decision]int {
	out := make(map[Decision]int, 3)
	for _, v := range votes {
		out[v.CommitteeDecision]++
	}
	return out
}

func (s *Service) SubmitVote(ctx context.Context, appealID string, vote *Vote) error {
	if err := requireID("appeal id", appealID); err != nil {
		return err
	}
	if vote == nil || !vote.CommitteeDecision.Valid() {
		return errors.New("[Service.SubmitVote] a valid decision is required")
	}
	if err := s.client.Post(ctx, appealsPath+escape(appealID)+"/vote", vote, nil); err != nil {
		return errors.Wrapf(err, "[Service.SubmitVote] appeal %s", appealID)
	}
	return nil
}

// VotedAppeals reports, per appeal id, whether the logged in member has voted.
func (s *Service) VotedAppeals(ctx context.Context, appealIDs []string) (map[string]bool, error) {
	if len(appealIDs) == 0 {
		return map[string]bool{}, nil
	}
	out := make(map[string]bool, len(appealIDs))
	if err := s.client.Post(ctx, appealsPath+"are-all-appeals-voted", appealIDs, &out); err != nil {
		return nil, errors.Wrap(err, "[Service.VotedAppeals]")
	}
	return out, nil
}

// AppealVotes lists every vote cast on an appeal point. Committee leaders only.
func (s *Service) AppealVotes(ctx context.Context, appealID string) ([]Vote, error) {
	if err := requireID("appeal id", appealID); err != nil {
		return nil, err
	}
	var votes []Vote
	if err := s.client.Get(ctx, appealsPath+escape(appealID)+"/all-votes", nil, &votes); err != nil {
		return nil, errors.Wrapf(err, "[Service.AppealVotes] appeal %s", appealID)
	}
	return votes, nil
}
